// Package config loads and validates the gateway's YAML configuration,
// adapted from the teacher's internal/config package: same load-then-
// validate shape and default-path search, a trimmed section list.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Fanout    FanoutConfig    `yaml:"fanout"`
	State     StateConfig     `yaml:"state"`
	Seed      []SeedCamera    `yaml:"seed"`
}

// StateConfig controls the sqlite-backed registry recovery cache.
type StateConfig struct {
	Enabled bool   `yaml:"enabled"`
	DataDir string `yaml:"data_dir"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DiscoveryConfig controls SSDP, WS-Discovery, and the ONVIF
// credential-cascade probe.
type DiscoveryConfig struct {
	Enabled          bool          `yaml:"enabled"`
	SearchInterval   time.Duration `yaml:"search_interval"`
	NotifyInterval   time.Duration `yaml:"notify_interval"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	WSProbeTimeout   time.Duration `yaml:"ws_probe_timeout"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
	ProbeJoinTimeout time.Duration `yaml:"probe_join_timeout"`
	Credentials      []Credential  `yaml:"credentials"`
}

// Credential is one entry in the ONVIF credential-cascade list.
type Credential struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// FanoutConfig controls the WebSocket/MJPEG video fanout server.
type FanoutConfig struct {
	WSHost           string        `yaml:"ws_host"`
	WSPort           int           `yaml:"ws_port"`
	HTTPHost         string        `yaml:"http_host"`
	HTTPPort         int           `yaml:"http_port"`
	DefaultWidth     int           `yaml:"default_width"`
	DefaultHeight    int           `yaml:"default_height"`
	JPEGQuality      int           `yaml:"jpeg_quality"`
	FrameInterval    time.Duration `yaml:"frame_interval"`
	ChunkSize        int           `yaml:"chunk_size"`
	FFmpegPath       string        `yaml:"ffmpeg_path"`
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
}

// SeedCamera is a statically configured camera, bypassing discovery.
// Mirrors cctvAgent.py's _IpCams list shape (ID/IP/Profile/User/Passwd).
type SeedCamera struct {
	ID       string `yaml:"id"`
	IP       string `yaml:"ip"`
	Port     int    `yaml:"port"`
	Profile  string `yaml:"profile"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Load reads and parses the configuration file at configPath, applying
// defaults for any zero-valued field. An empty configPath searches the
// default locations.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func getDefaultConfigPath() string {
	paths := []string{
		"./config/config.dev.yaml",
		"./config/config.yaml",
		"../config/config.yaml",
		"/etc/cctvgw/config.yaml",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return paths[0]
}

func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Discovery.SearchInterval == 0 {
		c.Discovery.SearchInterval = 30 * time.Second
	}
	if c.Discovery.NotifyInterval == 0 {
		c.Discovery.NotifyInterval = 60 * time.Second
	}
	if c.Discovery.SweepInterval == 0 {
		c.Discovery.SweepInterval = 10 * time.Second
	}
	if c.Discovery.WSProbeTimeout == 0 {
		c.Discovery.WSProbeTimeout = 3 * time.Second
	}
	if c.Discovery.ProbeTimeout == 0 {
		c.Discovery.ProbeTimeout = 5 * time.Second
	}
	if c.Discovery.ProbeJoinTimeout == 0 {
		c.Discovery.ProbeJoinTimeout = 5 * time.Second
	}
	if len(c.Discovery.Credentials) == 0 {
		// DEF_AUTHS from the source: try anonymous, then admin/"", then admin/admin.
		c.Discovery.Credentials = []Credential{
			{User: "", Password: ""},
			{User: "admin", Password: ""},
			{User: "admin", Password: "admin"},
		}
	}

	if c.Fanout.WSHost == "" {
		c.Fanout.WSHost = "0.0.0.0"
	}
	if c.Fanout.WSPort == 0 {
		c.Fanout.WSPort = 8001
	}
	if c.Fanout.HTTPHost == "" {
		c.Fanout.HTTPHost = "0.0.0.0"
	}
	if c.Fanout.HTTPPort == 0 {
		c.Fanout.HTTPPort = 8000
	}
	if c.Fanout.DefaultWidth == 0 {
		c.Fanout.DefaultWidth = 640
	}
	if c.Fanout.DefaultHeight == 0 {
		c.Fanout.DefaultHeight = 480
	}
	if c.Fanout.JPEGQuality == 0 {
		c.Fanout.JPEGQuality = 80
	}
	if c.Fanout.FrameInterval == 0 {
		c.Fanout.FrameInterval = 50 * time.Millisecond
	}
	if c.Fanout.ChunkSize == 0 {
		c.Fanout.ChunkSize = 32 * 1024
	}
	if c.Fanout.FFmpegPath == "" {
		c.Fanout.FFmpegPath = "ffmpeg"
	}
	if c.Fanout.ReconnectBackoff == 0 {
		c.Fanout.ReconnectBackoff = 5 * time.Second
	}

	if c.State.DataDir == "" {
		c.State.DataDir = "./data"
	}
}
