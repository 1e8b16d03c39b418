package mjpeg

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jaofeng/cctvgw/internal/camera"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPusher_WritesMultipartHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	p, err := NewPusher("p1", rec, camera.Resolution{}, 0)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, "multipart/x-mixed-replace;boundary=--jpgboundary", rec.Header().Get("Content-Type"))
	assert.Equal(t, 200, rec.Code)
}

func TestPusher_DeliverWritesFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	p, err := NewPusher("p1", rec, camera.Resolution{Width: 320, Height: 240}, 60)
	require.NoError(t, err)

	frame := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	require.NoError(t, p.Deliver(frame))

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "--jpgboundary\r\n"))
	assert.True(t, strings.Contains(body, "Content-Type: image/jpeg\r\n"))
	assert.True(t, strings.Contains(body, "Content-Length: 4\r\n"))
}

func TestPusher_SinkAccessors(t *testing.T) {
	rec := httptest.NewRecorder()
	p, err := NewPusher("p2", rec, camera.Resolution{Width: 640, Height: 480}, 75)
	require.NoError(t, err)

	assert.Equal(t, "p2", p.SinkID())
	assert.Equal(t, camera.Resolution{Width: 640, Height: 480}, p.Resolution())
	assert.Equal(t, 75, p.Quality())
}

func TestPusher_CloseSignalsDone(t *testing.T) {
	rec := httptest.NewRecorder()
	p, err := NewPusher("p3", rec, camera.Resolution{}, 0)
	require.NoError(t, err)

	select {
	case <-p.Done():
		t.Fatal("expected Done to be open before Close")
	default:
	}

	p.Close()
	<-p.Done()

	assert.Error(t, p.Deliver([]byte{0x01}))
}
