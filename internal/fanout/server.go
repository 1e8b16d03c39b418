package fanout

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jaofeng/cctvgw/internal/camera"
	"github.com/jaofeng/cctvgw/internal/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the WebSocket-only HTTP server described in SPEC_FULL §4.6.
// It speaks no other protocol: a GET without a WebSocket upgrade header
// is rejected by the upgrader itself.
//
// Grounded on original_source/cctv/rtspProxy.py::RtspProxy's
// __newClient/__clientLeft/__msgReceived routing, with the handshake
// mechanics taken from the teacher-adjacent
// bluenviron-mediamtx/internal/websocket/serverconn.go's gorilla/websocket
// upgrader usage.
type Server struct {
	manager   *Manager
	log       *logger.Logger
	chunkSize int

	mu      sync.Mutex
	viewers map[string]*viewerSession
}

type viewerSession struct {
	viewer *Viewer
	url    string
}

// NewServer constructs a Server backed by manager. chunkSize sets the
// base64 chunk size (internal/config.FanoutConfig.ChunkSize) new viewers
// are created with; 0 falls back to defaultChunkSize.
func NewServer(manager *Manager, chunkSize int, log *logger.Logger) *Server {
	return &Server{
		manager:   manager,
		log:       log,
		chunkSize: chunkSize,
		viewers:   make(map[string]*viewerSession),
	}
}

// ServeHTTP upgrades the connection and runs the per-viewer message loop
// until the socket closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.log != nil {
			s.log.Warn("fanout: websocket upgrade failed", "error", err)
		}
		return
	}

	id := uuid.NewString()
	v := NewViewer(id, conn, s.chunkSize)
	s.registerViewer(id, v)
	defer s.closeViewer(id)

	if s.log != nil {
		s.log.Info("fanout: viewer connected", "viewer_id", id, "remote", v.Address)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			if s.log != nil {
				s.log.Debug("fanout: malformed client message", "viewer_id", id, "error", err)
			}
			continue
		}
		s.handleMessage(id, v, msg)
	}
}

func (s *Server) handleMessage(id string, v *Viewer, msg clientMessage) {
	switch msg.Act {
	case "open":
		s.handleOpen(id, v, msg)
	case "resize":
		v.SetResolution(camera.Resolution{Width: msg.Resolution[0], Height: msg.Resolution[1]})
		if msg.Quality != 0 {
			v.SetQuality(msg.Quality)
		}
	default:
		if s.log != nil {
			s.log.Debug("fanout: unknown act", "viewer_id", id, "act", msg.Act)
		}
	}
}

func (s *Server) handleOpen(id string, v *Viewer, msg clientMessage) {
	s.mu.Lock()
	prev, had := s.viewers[id]
	s.mu.Unlock()
	if had && prev.url != "" && prev.url != msg.URL {
		s.manager.Release(prev.url, id)
	}

	v.SetResolution(camera.Resolution{Width: msg.Resolution[0], Height: msg.Resolution[1]})
	if msg.Quality != 0 {
		v.SetQuality(msg.Quality)
	}

	decoder, err := s.manager.Acquire(msg.URL)
	if err != nil {
		if s.log != nil {
			s.log.Warn("fanout: acquire decoder failed", "viewer_id", id, "url", msg.URL, "error", err)
		}
		return
	}
	decoder.Attach(v)

	s.mu.Lock()
	s.viewers[id] = &viewerSession{viewer: v, url: msg.URL}
	s.mu.Unlock()
}

func (s *Server) registerViewer(id string, v *Viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewers[id] = &viewerSession{viewer: v}
}

func (s *Server) closeViewer(id string) {
	s.mu.Lock()
	session, ok := s.viewers[id]
	delete(s.viewers, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	if session.url != "" {
		s.manager.Release(session.url, id)
	}
	session.viewer.Close()

	if s.log != nil {
		s.log.Info("fanout: viewer disconnected", "viewer_id", id)
	}
}
