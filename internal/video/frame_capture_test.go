package video

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptureFrameJPEG_InvalidInputErrors(t *testing.T) {
	ffmpeg := setupTestFFmpeg(t)
	_, err := ffmpeg.CaptureFrameJPEG(context.Background(), "invalid://not-a-valid-url", 85)
	assert.Error(t, err)
}

func TestCaptureFrameJPEGFast_InvalidInputErrors(t *testing.T) {
	ffmpeg := setupTestFFmpeg(t)
	_, err := ffmpeg.CaptureFrameJPEGFast(context.Background(), "invalid://not-a-valid-url", 0)
	assert.Error(t, err)
}
