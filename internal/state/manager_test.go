package state

import (
	"context"
	"testing"

	"github.com/jaofeng/cctvgw/internal/camera"
	"github.com/jaofeng/cctvgw/internal/logger"
)

func TestNewManager(t *testing.T) {
	mgr := setupTestManager(t)

	if mgr.db.GetDB() == nil {
		t.Error("database should be initialized")
	}
}

func TestManager_RecoverCameras_Empty(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	recovered, err := mgr.RecoverCameras(ctx)
	if err != nil {
		t.Fatalf("RecoverCameras failed: %v", err)
	}
	if len(recovered) != 0 {
		t.Errorf("expected empty cache on first run, got %d", len(recovered))
	}
}

func TestManager_RecoverCameras_SurvivesReopen(t *testing.T) {
	tmpDir := t.TempDir()
	log, _ := logger.New(logger.LogConfig{Level: "info", Format: "text"})

	mgr, err := NewManager(tmpDir, log)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ctx := context.Background()
	cam := camera.Camera{IP: "10.0.0.5", Port: 80, ID: "A-1", HostName: "cam1"}
	if err := mgr.SaveCamera(ctx, cam); err != nil {
		t.Fatalf("SaveCamera failed: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	mgr2, err := NewManager(tmpDir, log)
	if err != nil {
		t.Fatalf("reopening manager failed: %v", err)
	}
	defer mgr2.Close()

	recovered, err := mgr2.RecoverCameras(ctx)
	if err != nil {
		t.Fatalf("RecoverCameras failed: %v", err)
	}
	if len(recovered) != 1 || recovered[0].ID != "A-1" {
		t.Errorf("expected camera A-1 to survive reopen, got %+v", recovered)
	}
}

func TestManager_SyncCamera_SwallowsErrorsAfterClose(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()
	mgr.Close()

	// SyncCamera logs and swallows errors rather than panicking callers
	// mid-registry-update; this must not panic even against a closed db.
	mgr.SyncCamera(ctx, camera.Camera{IP: "10.0.0.5", Port: 80})
}

func TestManager_ConcurrentSync(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(idx int) {
			mgr.SyncCamera(ctx, camera.Camera{IP: "10.0.0.5", Port: idx})
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	recovered, err := mgr.RecoverCameras(ctx)
	if err != nil {
		t.Fatalf("RecoverCameras failed: %v", err)
	}
	if len(recovered) != 10 {
		t.Errorf("expected 10 cameras, got %d", len(recovered))
	}
}
