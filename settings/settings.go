package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"comfynodes/logger"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// ErrConfigNotFound is returned by LoadConfig when the main file is missing.
var ErrConfigNotFound = errors.New("config file not found")

// Environment variables that override file settings.
const (
	EnvLoraPath  = "COMFYNODES_LORA_PATH"
	EnvCachePath = "COMFYNODES_CACHE_PATH"
	EnvLogLevel  = "COMFYNODES_LOG_LEVEL"
	EnvAddr      = "COMFYNODES_ADDR"
	EnvPercent   = "COMFYNODES_DEFAULT_PERCENT"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Loras: LorasConfig{
			Path:            "models/loras",
			DefaultPercent:  20,
			ScanConcurrency: 4,
		},
		Attributes: AttributesConfig{
			LowWeightMax:    0.35,
			MediumWeightMax: 0.7,
			Separator:       ", ",
		},
		Cache: CacheConfig{
			Path:        "comfynodes.db",
			ExpireHours: 24 * 7,
			HotEntries:  256,
			MergeHours:  24,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8189",
			Mode: "release",
		},
		Logging: logger.DefaultConfig(),
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(c)
}

// LoadConfig loads configPath over the defaults, then the optional service
// files under settings/ next to it, then environment overrides (a .env file
// in the working directory is honoured).
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	// Check if main config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}

	// Get absolute path for better error messages
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		absPath = configPath // fallback to relative path
	}

	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", absPath, err)
	}

	// Load service-specific configs
	if err := loadServiceConfigs(filepath.Dir(configPath), config); err != nil {
		return nil, fmt.Errorf("error loading service configs: %w", err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadServiceConfigs loads all individual service configuration files
func loadServiceConfigs(baseDir string, config *Config) error {
	serviceConfigs := map[string]interface{}{
		"settings/loras.toml":      &config.Loras,
		"settings/attributes.toml": &config.Attributes,
		"settings/cache.toml":      &config.Cache,
		"settings/server.toml":     &config.Server,
		"settings/logging.toml":    &config.Logging,
	}

	for name, configStruct := range serviceConfigs {
		configPath := filepath.Join(baseDir, name)
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			// This is not a fatal error, just a warning
			continue
		}

		_, err := toml.DecodeFile(configPath, configStruct)
		if err != nil {
			return fmt.Errorf("error parsing service config file %s: %w", configPath, err)
		}
	}

	return nil
}

// ApplyEnv overlays COMFYNODES_* variables onto config.
func ApplyEnv(config *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to load .env file", "error", err)
	}

	if v := os.Getenv(EnvLoraPath); v != "" {
		config.Loras.Path = v
	}
	if v := os.Getenv(EnvCachePath); v != "" {
		config.Cache.Path = v
		config.Cache.Enabled = true
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.Logging.Level = logger.LogLevel(v)
	}
	if v := os.Getenv(EnvAddr); v != "" {
		config.Server.Addr = v
	}
	if v := os.Getenv(EnvPercent); v != "" {
		percent, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPercent, v, err)
		}
		config.Loras.DefaultPercent = percent
	}

	return nil
}
