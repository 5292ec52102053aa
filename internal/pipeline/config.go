package pipeline

import (
	"fmt"
	"time"

	"github.com/rickgao/kalshi-rankings/internal/config"
	"github.com/rickgao/kalshi-rankings/internal/granularity"
)

// ConfigFrom converts the pipeline config section.
func ConfigFrom(cfg config.PipelineConfig) (Config, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	return Config{
		Location:    loc,
		MarketDelay: cfg.MarketDelay,
		Granularity: granularity.Config{
			MinuteCapDays: cfg.MinuteCapDays,
			HourCapDays:   cfg.HourCapDays,
		},
	}, nil
}
