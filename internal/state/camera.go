package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jaofeng/cctvgw/internal/camera"
)

// SaveCamera upserts cam's current record into the cache, keyed by
// (ip, port) as the registry itself is keyed.
func (m *Manager) SaveCamera(ctx context.Context, cam camera.Camera) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.Marshal(cam)
	if err != nil {
		return fmt.Errorf("failed to encode camera: %w", err)
	}

	query := `
		INSERT INTO cameras (ip, port, data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(ip, port) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`
	if _, err := m.db.GetDB().ExecContext(ctx, query, cam.IP, cam.Port, string(data)); err != nil {
		return fmt.Errorf("failed to save camera: %w", err)
	}
	return nil
}

// DeleteCamera removes the cached record at (ip, port), if any.
func (m *Manager) DeleteCamera(ctx context.Context, ip string, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	query := `DELETE FROM cameras WHERE ip = ? AND port = ?`
	if _, err := m.db.GetDB().ExecContext(ctx, query, ip, port); err != nil {
		return fmt.Errorf("failed to delete camera: %w", err)
	}
	return nil
}

// ListCameras returns every cached camera, in no particular order.
func (m *Manager) ListCameras(ctx context.Context) ([]camera.Camera, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.GetDB().QueryContext(ctx, `SELECT data FROM cameras`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}
	defer rows.Close()

	var out []camera.Camera
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var cam camera.Camera
		if err := json.Unmarshal([]byte(raw), &cam); err != nil {
			return nil, fmt.Errorf("failed to decode cached camera: %w", err)
		}
		out = append(out, cam)
	}
	return out, rows.Err()
}
