package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config is the server configuration, populated from environment variables.
type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Evolution struct {
		Workers        int     `env:"EVO_WORKER_COUNT" envDefault:"4"`
		PopulationSize int     `env:"EVO_POPULATION_SIZE" envDefault:"100"`
		Generations    int     `env:"EVO_GENERATIONS" envDefault:"500"`
		VarianceMin    float64 `env:"EVO_VARIANCE_MIN" envDefault:"0.2"`
		VarianceMax    float64 `env:"EVO_VARIANCE_MAX" envDefault:"0.8"`
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Development defaults to verbose logging.
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}
