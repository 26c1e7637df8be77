package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const (
	defaultPort             = "8080"
	defaultDBDriver         = "sqlite"
	defaultMedicinesTimeout = 10 * time.Second
	defaultHighlightTTL     = 5 * time.Second
	defaultScrollDelay      = 150 * time.Millisecond
	defaultSweepInterval    = time.Minute
	defaultRedisChannel     = "clinicsearch-highlights"
)

type Config struct {
	config *viper.Viper
}

func Load() (*Config, error) {

	env := os.Getenv(keyEnv)
	if len(env) == 0 {
		env = envLocal
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

// Env returns the environment the config was loaded for.
func (c *Config) Env() string {
	if env := os.Getenv(keyEnv); len(env) > 0 {
		return env
	}
	return envLocal
}

func (c *Config) GetPort() string {
	port := c.getString("PORT", "server.port")
	if len(port) == 0 {
		port = defaultPort
	}

	return port
}

func (c *Config) GetLogLevel() string {
	return c.getString("LOG_LEVEL", "server.log_level")
}

func (c *Config) GetKVDBPath() string {
	kvdbPath := c.getString("KVDB_PATH", "database.kvdb_path")
	if len(kvdbPath) == 0 || filepath.IsAbs(kvdbPath) {
		return kvdbPath
	}

	return filepath.Join(c.GetStoragePath(), kvdbPath)
}

// GetIndexPath returns the on-disk location of the full-text catalog. An empty
// value keeps the catalog in memory.
func (c *Config) GetIndexPath() string {
	indexPath := c.getString("INDEX_PATH", "database.index_path")
	if len(indexPath) == 0 || filepath.IsAbs(indexPath) {
		return indexPath
	}

	return filepath.Join(c.GetStoragePath(), indexPath)
}

func (c *Config) GetStoragePath() string {
	return c.getString("STORAGE_PATH", "database.storage_path")
}

func (c *Config) GetDBDriver() string {
	driver := c.getString("DB_DRIVER", "database.driver")
	if len(driver) == 0 {
		driver = defaultDBDriver
	}

	return driver
}

func (c *Config) GetDBDSN() string {
	dsn := c.getString("DB_DSN", "database.dsn")
	if len(dsn) == 0 || c.GetDBDriver() != defaultDBDriver || filepath.IsAbs(dsn) {
		return dsn
	}

	return filepath.Join(c.GetStoragePath(), dsn)
}

func (c *Config) GetFixturesPath() string {
	return c.getString("FIXTURES_PATH", "database.fixtures_path")
}

func (c *Config) GetMedicinesURL() string {
	return c.getString("MEDICINES_URL", "sources.medicines_url")
}

func (c *Config) GetMedicinesTimeout() time.Duration {
	return c.getDuration("MEDICINES_TIMEOUT", "sources.medicines_timeout", defaultMedicinesTimeout)
}

// GetMedicinesRefreshCron returns a cron expression; empty disables scheduled refreshes.
func (c *Config) GetMedicinesRefreshCron() string {
	return c.getString("MEDICINES_REFRESH_CRON", "sources.medicines_refresh_cron")
}

func (c *Config) GetHighlightTTL() time.Duration {
	return c.getDuration("HIGHLIGHT_TTL", "highlight.ttl", defaultHighlightTTL)
}

func (c *Config) GetHighlightScrollDelay() time.Duration {
	return c.getDuration("HIGHLIGHT_SCROLL_DELAY", "highlight.scroll_delay", defaultScrollDelay)
}

// GetHighlightSweepInterval is how often requests nobody picked up are removed from storage.
func (c *Config) GetHighlightSweepInterval() time.Duration {
	return c.getDuration("HIGHLIGHT_SWEEP_INTERVAL", "highlight.sweep_interval", defaultSweepInterval)
}

// GetRedisAddr returns the redis address for the cross-instance event bus.
// Empty keeps events in process.
func (c *Config) GetRedisAddr() string {
	return c.getString("REDIS_ADDR", "bus.redis_addr")
}

func (c *Config) GetRedisChannel() string {
	channel := c.getString("REDIS_CHANNEL", "bus.redis_channel")
	if len(channel) == 0 {
		channel = defaultRedisChannel
	}

	return channel
}

// Set overrides a config key. Used by tests to point storage at temp dirs.
func (c *Config) Set(key string, value any) {
	c.config.Set(key, value)
}

func (c *Config) getString(envKey string, fileKey string) string {
	value := c.config.GetString(envKey)
	if len(value) == 0 {
		value = c.config.GetString(fileKey)
	}

	return value
}

func (c *Config) getDuration(envKey string, fileKey string, fallback time.Duration) time.Duration {
	value := c.getString(envKey, fileKey)
	if len(value) == 0 {
		return fallback
	}

	duration, err := time.ParseDuration(value)
	if err != nil || duration <= 0 {
		slog.Warn("invalid duration in config, using default", "key", fileKey, "value", value, "default", fallback.String())
		return fallback
	}

	return duration
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
