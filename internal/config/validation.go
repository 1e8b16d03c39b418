package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks the configuration for internally-inconsistent or
// out-of-range values, collecting every problem found rather than
// stopping at the first one.
func (c *Config) Validate() error {
	var errs []string

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level invalid: %s (must be debug, info, warn, error, fatal)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format invalid: %s (must be text or json)", c.Log.Format))
	}

	if c.Discovery.SearchInterval <= 0 {
		errs = append(errs, "discovery.search_interval must be > 0")
	}
	if c.Discovery.NotifyInterval <= 0 {
		errs = append(errs, "discovery.notify_interval must be > 0")
	}
	if len(c.Discovery.Credentials) == 0 {
		errs = append(errs, "discovery.credentials must not be empty")
	}

	if c.Fanout.WSPort <= 0 || c.Fanout.WSPort > 65535 {
		errs = append(errs, fmt.Sprintf("fanout.ws_port out of range: %d", c.Fanout.WSPort))
	}
	if c.Fanout.HTTPPort <= 0 || c.Fanout.HTTPPort > 65535 {
		errs = append(errs, fmt.Sprintf("fanout.http_port out of range: %d", c.Fanout.HTTPPort))
	}
	if c.Fanout.WSPort == c.Fanout.HTTPPort {
		errs = append(errs, "fanout.ws_port and fanout.http_port must differ")
	}
	if c.Fanout.JPEGQuality < 1 || c.Fanout.JPEGQuality > 100 {
		errs = append(errs, fmt.Sprintf("fanout.jpeg_quality must be 1-100, got: %d", c.Fanout.JPEGQuality))
	}
	if c.Fanout.ChunkSize <= 0 {
		errs = append(errs, "fanout.chunk_size must be > 0")
	}

	for i, seed := range c.Seed {
		if seed.ID == "" {
			errs = append(errs, fmt.Sprintf("seed[%d].id is required", i))
		}
		if net.ParseIP(seed.IP) == nil {
			errs = append(errs, fmt.Sprintf("seed[%d].ip invalid: %q", i, seed.IP))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %d validation error(s):\n  - %s", len(errs), strings.Join(errs, "\n  - "))
	}
	return nil
}
