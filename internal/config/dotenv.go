package config

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

func loadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

// loadDotenv loads a .env file into the process environment.
// Priority: ENV_FILE if set, otherwise .env in the working directory.
// Existing variables win unless DOTENV_OVERLOAD=1. Skipped when NO_DOTENV=1.
func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}

	path := ".env"
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		path = envFile
	}

	// A missing file is the normal case in production.
	if os.Getenv("DOTENV_OVERLOAD") == "1" {
		_ = godotenv.Overload(path)
		return
	}
	_ = godotenv.Load(path)
}
