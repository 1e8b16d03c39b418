package fanout

import (
	"context"
	"sync"

	"github.com/jaofeng/cctvgw/internal/logger"
	"github.com/jaofeng/cctvgw/internal/video"
)

// Manager enforces the at-most-one-CameraDecoder-per-URL invariant
// (SPEC_FULL §5): the find-or-insert step happens under a single lock, so
// two viewers opening the same URL concurrently share one decoder.
type Manager struct {
	ffmpeg *video.FFmpegWrapper
	log    *logger.Logger
	cfg    DecoderConfig

	mu       sync.Mutex
	decoders map[string]*CameraDecoder

	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewManager constructs an empty Manager. Decoders it starts run under
// their own long-lived context (canceled only by StopAll), not under any
// one viewer's request context — the decode loop is shared by every
// viewer of a URL and must not die when the first one disconnects.
func NewManager(ffmpeg *video.FFmpegWrapper, cfg DecoderConfig, log *logger.Logger) *Manager {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ffmpeg:     ffmpeg,
		log:        log,
		cfg:        cfg,
		decoders:   make(map[string]*CameraDecoder),
		baseCtx:    baseCtx,
		baseCancel: cancel,
	}
}

// Acquire returns the CameraDecoder for url, creating and starting it if
// none exists yet.
func (m *Manager) Acquire(url string) (*CameraDecoder, error) {
	m.mu.Lock()
	d, ok := m.decoders[url]
	if ok {
		m.mu.Unlock()
		return d, nil
	}
	d = NewCameraDecoder(url, m.ffmpeg, m.cfg, m.log)
	m.decoders[url] = d
	m.mu.Unlock()

	if err := d.Start(m.baseCtx); err != nil {
		m.mu.Lock()
		delete(m.decoders, url)
		m.mu.Unlock()
		return nil, err
	}
	return d, nil
}

// Release detaches viewer from the decoder serving url. The decoder is
// left running and cached even once its viewer set empties: per the
// source's behavior (rtspProxy.py's __clientLeft keeps the camera thread
// alive after the last client leaves), teardown happens only in StopAll.
func (m *Manager) Release(url string, viewerID string) {
	m.mu.Lock()
	d, ok := m.decoders[url]
	m.mu.Unlock()
	if !ok {
		return
	}
	d.Detach(viewerID)
}

// DecoderCount reports how many distinct URLs currently have a decoder.
func (m *Manager) DecoderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.decoders)
}

// StopAll stops every decoder. Used on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	decoders := make([]*CameraDecoder, 0, len(m.decoders))
	for _, d := range m.decoders {
		decoders = append(decoders, d)
	}
	m.decoders = make(map[string]*CameraDecoder)
	m.mu.Unlock()

	m.baseCancel()
	for _, d := range decoders {
		d.Stop()
	}
}
