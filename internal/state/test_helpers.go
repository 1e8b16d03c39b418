package state

import (
	"testing"

	"github.com/jaofeng/cctvgw/internal/logger"
)

func setupTestManager(t *testing.T) *Manager {
	tmpDir := t.TempDir()

	log, _ := logger.New(logger.LogConfig{Level: "info", Format: "text"})

	mgr, err := NewManager(tmpDir, log)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	return mgr
}
