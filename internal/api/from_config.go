package api

import (
	"fmt"

	"github.com/rickgao/kalshi-rankings/internal/auth"
	"github.com/rickgao/kalshi-rankings/internal/config"
)

// FromConfig builds a Client from the api config section. Request signing is
// enabled when an API key is configured. opts are applied last.
func FromConfig(cfg config.APIConfig, opts ...ClientOption) (*Client, error) {
	base := []ClientOption{
		WithTimeout(cfg.Timeout),
		WithRetries(cfg.MaxAttempts, cfg.InitialBackoff, cfg.MaxBackoff),
	}

	if cfg.APIKey != "" {
		creds, err := auth.LoadCredentials(cfg.APIKey, cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load api credentials: %w", err)
		}
		base = append(base, WithCredentials(creds))
	}

	return NewClient(cfg.RestURL, append(base, opts...)...), nil
}
