package pipeline

import (
	"testing"
	"time"

	"github.com/rickgao/kalshi-rankings/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFrom(t *testing.T) {
	cfg, err := ConfigFrom(config.Default().Pipeline)
	require.NoError(t, err)

	assert.Equal(t, "America/New_York", cfg.Location.String())
	assert.Equal(t, 500*time.Millisecond, cfg.MarketDelay)
	assert.Equal(t, 3.0, cfg.Granularity.MinuteCapDays)
	assert.Equal(t, 55.0, cfg.Granularity.HourCapDays)

	_, err = ConfigFrom(config.PipelineConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}
