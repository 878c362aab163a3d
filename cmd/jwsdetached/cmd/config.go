package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envPrefix prefixes every environment variable read by the CLI.
const envPrefix = "JWSDETACHED_"

// Config holds CLI defaults loaded from the environment. Flags override it.
type Config struct {
	// Key is the path of the JWK or JWK Set file.
	Key string `env:"KEY"`

	// Output is the result format: text, json or yaml.
	Output string `env:"OUTPUT" envDefault:"text"`

	// LogLevel is the slog level name.
	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`
}

// loadConfig reads Config from environ, or from the process environment
// when environ is nil.
func loadConfig(environ map[string]string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{
		Prefix:      envPrefix,
		Environment: environ,
	})
	if err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.Output {
	case outputText, outputJSON, outputYAML:
	default:
		return fmt.Errorf("unknown output format %q: want text, json or yaml", c.Output)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}

	return level, nil
}
