package fanout

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jaofeng/cctvgw/internal/logger"
	"github.com/jaofeng/cctvgw/internal/video"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (addr string, srv *Server, stop func()) {
	log := logger.NewNopLogger()
	ffmpeg, err := video.NewFFmpegWrapper(log)
	if err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}
	mgr := NewManager(ffmpeg, DecoderConfig{}, log)
	srv = NewServer(mgr, 0, log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	httpSrv := &http.Server{Handler: srv}
	go httpSrv.Serve(ln)

	return ln.Addr().String(), srv, func() {
		httpSrv.Shutdown(context.Background())
		mgr.StopAll()
	}
}

func TestServer_UpgradesWebSocketConnection(t *testing.T) {
	addr, _, stop := startTestServer(t)
	defer stop()

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
}

func TestServer_OpenMessageAcquiresDecoder(t *testing.T) {
	addr, srv, stop := startTestServer(t)
	defer stop()

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	err = conn.WriteJSON(clientMessage{Act: "open", URL: "rtsp://127.0.0.1:9999/nonexistent", Resolution: [2]int{320, 240}})
	require.NoError(t, err)

	// Give the server goroutine a moment to process the message.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.manager.DecoderCount() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected a decoder to be acquired for the opened URL")
}
