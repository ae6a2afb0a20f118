package observability

import (
	"testing"

	"github.com/smallbiznis/cemtrack/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaultsServiceName(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: " production ",
		AppVersion:  "1.2.3",
		Log:         config.LogConfig{Level: "info", Format: "json"},
		Telemetry:   config.TelemetryConfig{Protocol: "grpc"},
	})

	assert.Equal(t, "cemtrack", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)
	assert.False(t, cfg.Debug())
}

func TestDebugFollowsLevelAndEnvironment(t *testing.T) {
	assert.True(t, LoadConfig(config.Config{Log: config.LogConfig{Level: "debug"}, Environment: "production"}).Debug())
	assert.True(t, LoadConfig(config.Config{Log: config.LogConfig{Level: "info"}, Environment: "development"}).Debug())
	assert.False(t, LoadConfig(config.Config{Log: config.LogConfig{Level: "warn"}, Environment: "staging"}).Debug())
}
