package observability

import (
	"testing"

	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigReadsLogSampling(t *testing.T) {
	t.Setenv("LOG_SAMPLING_INITIAL", "10")
	t.Setenv("LOG_SAMPLING_THEREAFTER", "bogus")
	t.Setenv("LOG_CALLER", "off")
	t.Setenv("OTEL_ENABLED", "")

	cfg := LoadConfig(config.Config{AppName: " ", Environment: "production"})
	assert.Equal(t, "creditledger", cfg.ServiceName)
	assert.Equal(t, 10, cfg.LogSamplingInitial)
	assert.Equal(t, 100, cfg.LogSamplingThereafter)
	assert.False(t, cfg.LogCaller)
	assert.True(t, cfg.OtelEnabled)

	logCfg := provideLoggerConfig(cfg)
	assert.Equal(t, 10, logCfg.SamplingInitial)
	assert.False(t, logCfg.IncludeCaller)
}
