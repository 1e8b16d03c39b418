package fanout

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jaofeng/cctvgw/internal/camera"
)

// Viewer is one WebSocket client attached to a CameraDecoder. Grounded on
// original_source/cctv/rtspProxy.py's per-client entries in _Camera's
// client list (keyed by connection id, carrying resolution/quality).
type Viewer struct {
	ID      string
	Address string

	conn *websocket.Conn
	mu   sync.Mutex // serializes writes; gorilla/websocket forbids concurrent writers

	stateMu    sync.RWMutex
	resolution camera.Resolution
	quality    int
	chunkSize  int
}

// NewViewer wraps an upgraded WebSocket connection. chunkSize is the
// base64 chunk size used by Deliver (internal/config.FanoutConfig.ChunkSize);
// 0 falls back to defaultChunkSize.
func NewViewer(id string, conn *websocket.Conn, chunkSize int) *Viewer {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Viewer{
		ID:        id,
		Address:   conn.RemoteAddr().String(),
		conn:      conn,
		chunkSize: chunkSize,
	}
}

// SinkID implements fanout.Sink.
func (v *Viewer) SinkID() string { return v.ID }

// Deliver implements fanout.Sink: it frames jpegData per the §4.6 wire
// protocol (a chunk-count control message, then base64 chunks) and writes
// each as its own text frame.
func (v *Viewer) Deliver(jpegData []byte) error {
	for _, msg := range frameMessages(jpegData, v.chunkSize) {
		if err := v.sendText(msg); err != nil {
			return err
		}
	}
	return nil
}

// SetResolution updates the resolution this viewer wants frames resized
// to. (0,0) means native.
func (v *Viewer) SetResolution(r camera.Resolution) {
	v.stateMu.Lock()
	defer v.stateMu.Unlock()
	v.resolution = r
}

// Resolution returns the viewer's currently requested resolution.
func (v *Viewer) Resolution() camera.Resolution {
	v.stateMu.RLock()
	defer v.stateMu.RUnlock()
	return v.resolution
}

// SetQuality updates the JPEG re-encode quality this viewer wants. 0
// means "use the decoder's default".
func (v *Viewer) SetQuality(q int) {
	v.stateMu.Lock()
	defer v.stateMu.Unlock()
	v.quality = q
}

// Quality returns the viewer's currently requested JPEG quality.
func (v *Viewer) Quality() int {
	v.stateMu.RLock()
	defer v.stateMu.RUnlock()
	return v.quality
}

// sendText writes a text frame. Failures are the caller's problem to
// drop silently per SPEC_FULL §4.6 — a viewer stays attached across a
// failed send and is only removed when its socket closes.
func (v *Viewer) sendText(msg string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// Close closes the underlying connection.
func (v *Viewer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conn.Close()
}
