// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A .env file is loaded first (see loadDotenv), so ${VAR} may come from either source.
package config
