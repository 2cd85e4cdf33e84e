package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/target-san/demo-webserver/pkg/metrics"
)

type Config struct {
	Server   ServerConfig  `mapstructure:"server" json:"server"`
	Features FeatureFlags  `mapstructure:"features" json:"features"`
	Logging  LoggingConfig `mapstructure:"logging" json:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" json:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout" json:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout" json:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout" json:"idleTimeout"`
}

type FeatureFlags struct {
	EnableProfiling    bool            `mapstructure:"enableProfiling" json:"enableProfiling"`
	EnableTracing      bool            `mapstructure:"enableTracing" json:"enableTracing"`
	EnableMetrics      bool            `mapstructure:"enableMetrics" json:"enableMetrics"`
	EnableDebugLogging bool            `mapstructure:"enableDebugLogging" json:"enableDebugLogging"`
	LogLevel           string          `mapstructure:"logLevel" json:"logLevel"`
	ExperimentalFlags  map[string]bool `mapstructure:"experimental" json:"experimental"`
}

type LoggingConfig struct {
	Loki LokiConfig `mapstructure:"loki" json:"loki"`
}

// LokiConfig enables log shipping when URL is set.
type LokiConfig struct {
	URL      string            `mapstructure:"url" json:"url"`
	Labels   map[string]string `mapstructure:"labels" json:"labels"`
	MinLevel string            `mapstructure:"minLevel" json:"minLevel"`
}

type ConfigManager struct {
	mu              sync.RWMutex
	config          *Config
	changeCallbacks []func(*Config)
}

// NewConfigManager loads configPath on top of the defaults and starts
// watching it. A missing file is not an error.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	cfg, err := load(configPath)
	if err != nil {
		return nil, err
	}

	cm := &ConfigManager{config: cfg}

	// Kubernetes ConfigMap updates are picked up by the watcher
	go cm.watchConfigFile(configPath)

	return cm, nil
}

// NewDefaultConfigManager serves the defaults and never reloads.
func NewDefaultConfigManager() *ConfigManager {
	return &ConfigManager{config: Defaults()}
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	cfg, err := decode(newViper(""))
	if err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	return cfg
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	v.SetConfigType("yaml")
	setDefaults(v)
	return v
}

func load(configPath string) (*Config, error) {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "60s")
	v.SetDefault("server.idleTimeout", "120s")

	v.SetDefault("features.enableProfiling", false)
	v.SetDefault("features.enableTracing", false)
	v.SetDefault("features.enableMetrics", true)
	v.SetDefault("features.enableDebugLogging", false)
	v.SetDefault("features.logLevel", "info")
	v.SetDefault("features.experimental", map[string]bool{})

	v.SetDefault("logging.loki.url", "")
	v.SetDefault("logging.loki.labels", map[string]string{"app": "demo-webserver"})
	v.SetDefault("logging.loki.minLevel", "info")
}

func (cm *ConfigManager) watchConfigFile(configPath string) {
	// Kubernetes mounts ConfigMaps using symlinks
	// We need to watch the directory for changes, not just the file
	dir := filepath.Dir(configPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error().Err(err).Msg("Failed to create file watcher")
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close file watcher")
		}
	}()

	if err := watcher.Add(dir); err != nil {
		log.Debug().Err(err).Str("dir", dir).Msg("Failed to watch config directory")
		return
	}
	log.Info().Str("path", configPath).Str("dir", dir).Msg("Watching config file for changes")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if event.Name != configPath && filepath.Base(event.Name) != "..data" {
				continue
			}

			log.Info().Str("event", event.String()).Msg("Config file change detected")

			// Let the writer finish before re-reading
			time.Sleep(100 * time.Millisecond)

			if err := cm.reloadFromFile(configPath); err != nil {
				metrics.ConfigReloads.WithLabelValues("error").Inc()
				log.Error().Err(err).Msg("Failed to reload config")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("File watcher error")
		}
	}
}

func (cm *ConfigManager) reloadFromFile(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Debug().Msg("Config file temporarily missing, likely being updated")
		return nil
	}

	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading updated config: %w", err)
	}
	newConfig, err := decode(v)
	if err != nil {
		return err
	}

	cm.mu.Lock()
	cm.config = newConfig
	callbacks := append([]func(*Config){}, cm.changeCallbacks...)
	cm.mu.Unlock()

	metrics.ConfigReloads.WithLabelValues("success").Inc()
	log.Info().Msg("Configuration reloaded successfully from file")

	for _, cb := range callbacks {
		go func(cb func(*Config)) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Panic in config change callback")
				}
			}()
			cb(newConfig)
		}(cb)
	}
	return nil
}

func (cm *ConfigManager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

func (cm *ConfigManager) OnChange(callback func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.changeCallbacks = append(cm.changeCallbacks, callback)
}

func (cm *ConfigManager) GetServer() ServerConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Server
}

func (cm *ConfigManager) GetFeatures() FeatureFlags {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Features
}

func (cm *ConfigManager) GetLogging() LoggingConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Logging
}

func (cm *ConfigManager) IsFeatureEnabled(feature string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Features.ExperimentalFlags[feature]
}
