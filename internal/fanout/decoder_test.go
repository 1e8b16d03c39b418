package fanout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecoderConfig_WithDefaults(t *testing.T) {
	cfg := DecoderConfig{}.withDefaults()
	assert.Equal(t, 50*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, 80, cfg.DefaultQuality)
	assert.Equal(t, 5*time.Second, cfg.ReconnectBackoff)
}

func TestDecoderConfig_WithDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := DecoderConfig{FrameInterval: time.Second, DefaultQuality: 50, ReconnectBackoff: time.Minute}.withDefaults()
	assert.Equal(t, time.Second, cfg.FrameInterval)
	assert.Equal(t, 50, cfg.DefaultQuality)
	assert.Equal(t, time.Minute, cfg.ReconnectBackoff)
}

func TestCameraDecoder_AttachDetachViewer(t *testing.T) {
	d := NewCameraDecoder("rtsp://127.0.0.1:9999/cam", nil, DecoderConfig{}, nil)
	v := &Viewer{ID: "v1"}
	d.Attach(v)
	assert.Equal(t, 1, d.ViewerCount())

	d.Detach("v1")
	assert.Equal(t, 0, d.ViewerCount())
}

func TestCameraDecoder_URL(t *testing.T) {
	d := NewCameraDecoder("rtsp://10.0.0.5/profile1", nil, DecoderConfig{}, nil)
	assert.Equal(t, "rtsp://10.0.0.5/profile1", d.URL())
}

func TestProbeRTSP_RejectsMalformedURL(t *testing.T) {
	err := probeRTSP("not a url at all")
	assert.Error(t, err)
}

func TestProbeRTSP_ErrorsOnUnreachableHost(t *testing.T) {
	err := probeRTSP("rtsp://127.0.0.1:1/nope")
	assert.Error(t, err)
}
