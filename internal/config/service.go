package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jaofeng/cctvgw/internal/logger"
)

// Service provides configuration management with environment variable
// support and live reload.
type Service struct {
	config     *Config
	configPath string
	logger     *logger.Logger
	mu         sync.RWMutex
	watchers   []ConfigWatcher
}

// ConfigWatcher is called when configuration changes.
type ConfigWatcher func(ctx context.Context, oldConfig, newConfig *Config) error

// NewService loads, overrides, and validates the configuration at
// configPath.
func NewService(configPath string, log *logger.Logger) (*Service, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: load initial configuration: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return &Service{
		config:     cfg,
		configPath: configPath,
		logger:     log,
		watchers:   make([]ConfigWatcher, 0),
	}, nil
}

// Get returns the current configuration.
func (s *Service) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Reload re-reads the configuration file and notifies watchers.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldConfig := s.config

	newConfig, err := Load(s.configPath)
	if err != nil {
		return fmt.Errorf("config: reload: %w", err)
	}
	applyEnvOverrides(newConfig)
	if err := newConfig.Validate(); err != nil {
		return fmt.Errorf("config: invalid reloaded configuration: %w", err)
	}

	s.config = newConfig
	for _, watcher := range s.watchers {
		if err := watcher(ctx, oldConfig, newConfig); err != nil {
			s.logger.Error("config watcher error", "error", err)
		}
	}

	s.logger.Info("configuration reloaded", "path", s.configPath)
	return nil
}

// Watch registers a configuration change watcher.
func (s *Service) Watch(watcher ConfigWatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, watcher)
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CCTVGW_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv("CCTVGW_LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
	if val := os.Getenv("CCTVGW_LOG_OUTPUT"); val != "" {
		cfg.Log.Output = val
	}

	if val := os.Getenv("CCTVGW_DISCOVERY_ENABLED"); val != "" {
		cfg.Discovery.Enabled = val == "true" || val == "1"
	}
	if val := os.Getenv("CCTVGW_DISCOVERY_SEARCH_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Discovery.SearchInterval = d
		}
	}
	if val := os.Getenv("CCTVGW_DISCOVERY_NOTIFY_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Discovery.NotifyInterval = d
		}
	}

	if val := os.Getenv("CCTVGW_FANOUT_WS_PORT"); val != "" {
		if n, err := parseInt(val); err == nil {
			cfg.Fanout.WSPort = n
		}
	}
	if val := os.Getenv("CCTVGW_FANOUT_HTTP_PORT"); val != "" {
		if n, err := parseInt(val); err == nil {
			cfg.Fanout.HTTPPort = n
		}
	}
	if val := os.Getenv("CCTVGW_FANOUT_JPEG_QUALITY"); val != "" {
		if n, err := parseInt(val); err == nil {
			cfg.Fanout.JPEGQuality = n
		}
	}
	if val := os.Getenv("CCTVGW_FFMPEG_PATH"); val != "" {
		cfg.Fanout.FFmpegPath = val
	}
}

func parseInt(s string) (int, error) {
	var result int
	_, err := fmt.Sscanf(s, "%d", &result)
	return result, err
}

// GetEnvWithDefault returns an environment variable or a fallback.
func GetEnvWithDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// GetEnvBool returns a boolean environment variable or a fallback.
func GetEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	val = strings.ToLower(val)
	return val == "true" || val == "1" || val == "yes" || val == "on"
}

// GetEnvInt returns an integer environment variable or a fallback.
func GetEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	n, err := parseInt(val)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetEnvDuration returns a duration environment variable or a fallback.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return defaultValue
}
