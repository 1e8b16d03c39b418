package state

import (
	"context"
	"sync"
	"testing"

	"github.com/jaofeng/cctvgw/internal/camera"
)

func TestManager_SaveAndListCamera(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	cam := camera.Camera{
		IP:       "10.0.0.5",
		Port:     80,
		HostName: "cam1",
		ID:       "A-1",
		Profiles: []camera.Profile{
			{Name: "main", StreamURL: "rtsp://10.0.0.5/profile1", Selected: true},
		},
		Alive: true,
	}

	if err := mgr.SaveCamera(ctx, cam); err != nil {
		t.Fatalf("SaveCamera failed: %v", err)
	}

	got, err := mgr.ListCameras(ctx)
	if err != nil {
		t.Fatalf("ListCameras failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 camera, got %d", len(got))
	}
	if got[0].ID != "A-1" || got[0].IP != "10.0.0.5" {
		t.Errorf("unexpected camera: %+v", got[0])
	}
	if len(got[0].Profiles) != 1 || !got[0].Profiles[0].Selected {
		t.Errorf("expected profile round-trip with Selected=true, got %+v", got[0].Profiles)
	}
}

func TestManager_SaveCamera_Update(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	cam := camera.Camera{IP: "10.0.0.5", Port: 80, HostName: "original"}
	if err := mgr.SaveCamera(ctx, cam); err != nil {
		t.Fatalf("SaveCamera failed: %v", err)
	}

	cam.HostName = "updated"
	cam.Alive = true
	if err := mgr.SaveCamera(ctx, cam); err != nil {
		t.Fatalf("SaveCamera update failed: %v", err)
	}

	got, err := mgr.ListCameras(ctx)
	if err != nil {
		t.Fatalf("ListCameras failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected upsert to keep one row, got %d", len(got))
	}
	if got[0].HostName != "updated" || !got[0].Alive {
		t.Errorf("expected update to stick, got %+v", got[0])
	}
}

func TestManager_ListCameras_Empty(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	got, err := mgr.ListCameras(ctx)
	if err != nil {
		t.Fatalf("ListCameras failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty cache, got %d cameras", len(got))
	}
}

func TestManager_DeleteCamera(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	cam := camera.Camera{IP: "10.0.0.5", Port: 80}
	if err := mgr.SaveCamera(ctx, cam); err != nil {
		t.Fatalf("SaveCamera failed: %v", err)
	}

	if err := mgr.DeleteCamera(ctx, "10.0.0.5", 80); err != nil {
		t.Fatalf("DeleteCamera failed: %v", err)
	}

	got, err := mgr.ListCameras(ctx)
	if err != nil {
		t.Fatalf("ListCameras failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected camera gone after delete, got %d", len(got))
	}
}

func TestManager_DeleteCamera_NotFoundIsNotError(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	if err := mgr.DeleteCamera(ctx, "10.0.0.9", 80); err != nil {
		t.Errorf("deleting an absent camera should not error: %v", err)
	}
}

func TestManager_RecoverCameras(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	for i, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		cam := camera.Camera{IP: ip, Port: 80, ID: string(rune('A' + i))}
		if err := mgr.SaveCamera(ctx, cam); err != nil {
			t.Fatalf("SaveCamera failed: %v", err)
		}
	}

	recovered, err := mgr.RecoverCameras(ctx)
	if err != nil {
		t.Fatalf("RecoverCameras failed: %v", err)
	}
	if len(recovered) != 3 {
		t.Errorf("expected 3 recovered cameras, got %d", len(recovered))
	}
}

func TestManager_SaveCamera_Concurrent(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			cam := camera.Camera{IP: "10.0.0.1", Port: idx}
			if err := mgr.SaveCamera(ctx, cam); err != nil {
				t.Errorf("concurrent SaveCamera failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := mgr.ListCameras(ctx)
	if err != nil {
		t.Fatalf("ListCameras failed: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("expected 10 distinct-port cameras, got %d", len(got))
	}
}
