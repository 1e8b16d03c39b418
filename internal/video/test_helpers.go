package video

import (
	"testing"

	"github.com/jaofeng/cctvgw/internal/logger"
)

func setupTestFFmpeg(t *testing.T) *FFmpegWrapper {
	log := logger.NewNopLogger()
	ffmpeg, err := NewFFmpegWrapper(log)
	if err != nil {
		t.Skipf("FFmpeg not available, skipping test: %v", err)
	}
	return ffmpeg
}
