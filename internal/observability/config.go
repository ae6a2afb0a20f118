package observability

import (
	"strings"

	"github.com/smallbiznis/cemtrack/internal/config"
)

// Config is the slice of application config the observability stack reads.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	Log       config.LogConfig
	Telemetry config.TelemetryConfig

	debug bool
}

func LoadConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = "cemtrack"
	}
	return Config{
		ServiceName: name,
		Environment: strings.TrimSpace(cfg.Environment),
		Version:     strings.TrimSpace(cfg.AppVersion),
		Log:         cfg.Log,
		Telemetry:   cfg.Telemetry,
		debug:       cfg.Debug(),
	}
}

func (c Config) Debug() bool {
	return c.debug
}
