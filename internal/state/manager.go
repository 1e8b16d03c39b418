// Package state is the registry's sqlite-backed recovery cache: it lets a
// restart repopulate the in-memory camera.Registry without waiting out a
// full SSDP/WS-Discovery sweep. The registry stays the single source of
// truth at runtime; this package only ever mirrors it to disk and reads it
// back once, at startup.
//
// Grounded on the teacher's internal/state package (Database/Manager split,
// WAL-mode sqlite, NewManager(cfg, log) constructor shape), with the
// AI-detection schema (events/telemetry/storage/screenshots) replaced by
// the one table this spec's recovery-cache role needs.
package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/jaofeng/cctvgw/internal/camera"
	"github.com/jaofeng/cctvgw/internal/logger"
)

// Manager owns the sqlite connection backing the recovery cache.
type Manager struct {
	db     *Database
	logger *logger.Logger
	mu     sync.RWMutex
}

// NewManager opens (creating if absent) the cache database under dataDir.
func NewManager(dataDir string, log *logger.Logger) (*Manager, error) {
	dbPath := filepath.Join(dataDir, "registry.db")

	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return &Manager{db: db, logger: log}, nil
}

// Close closes the underlying database connection.
func (m *Manager) Close() error {
	return m.db.Close()
}

// RecoverCameras loads every cached camera, for the Agent to Seed into its
// registry before discovery starts filling in the rest. Returns an empty
// slice, not an error, on a cache with nothing in it yet.
func (m *Manager) RecoverCameras(ctx context.Context) ([]camera.Camera, error) {
	cams, err := m.ListCameras(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover cameras: %w", err)
	}
	m.logger.Info("recovered cameras from state cache", "count", len(cams))
	return cams, nil
}

// SyncCamera writes cam's current record to the cache. Called from main's
// subscription to every registry lifecycle event (found/joined/update/online/offline)
// so a crash loses at most the last write, not the whole cache.
func (m *Manager) SyncCamera(ctx context.Context, cam camera.Camera) {
	if err := m.SaveCamera(ctx, cam); err != nil {
		m.logger.Warn("failed to sync camera to state cache", "ip", cam.IP, "port", cam.Port, "error", err)
	}
}
