// Package config loads replkitd's configuration: defaults, overlaid by an
// optional YAML file, overlaid by REPLKIT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	// HistoryPath is the bbolt database holding command history.
	HistoryPath string `yaml:"history_path" envconfig:"HISTORY_PATH"`
	// RuntimeURL is how to reach the runtime: "stdio" for a pipe on
	// stdin/stdout, or a ws:// / wss:// URL.
	RuntimeURL string `yaml:"runtime_url" envconfig:"RUNTIME_URL"`
	// DebugAdapterAutoStart starts the base debug adapter as soon as the
	// runtime connects.
	DebugAdapterAutoStart bool `yaml:"debug_adapter_auto_start" envconfig:"DEBUG_ADAPTER_AUTO_START"`
	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HistoryPath: defaultHistoryPath(),
		RuntimeURL:  "stdio",
		LogLevel:    "info",
	}
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "history.bolt"
	}
	return filepath.Join(dir, "replkit", "history.bolt")
}

// Load builds the configuration from defaults, the YAML file at path if it
// exists (a missing file is not an error; an empty path skips the file), and
// finally REPLKIT_* environment variables.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return Config{}, fmt.Errorf("config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &c); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if err := envconfig.Process("replkit", &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}
