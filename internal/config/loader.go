package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"appkeeper/pkg/logging"

	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// LoadConfig loads config.yaml from configPath on top of the defaults.
// A missing file is not an error.
func LoadConfig(configPath string) (AppkeeperConfig, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("Config", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return AppkeeperConfig{}, fmt.Errorf("failed to read %s: %w", configFilePath, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return AppkeeperConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	if err := Validate(config); err != nil {
		return AppkeeperConfig{}, fmt.Errorf("invalid config %s: %w", configFilePath, err)
	}
	logging.Debug("Config", "Loaded configuration from %s", configFilePath)
	return config, nil
}
