// Package video wraps the ffmpeg binary used to pull still frames off an
// RTSP stream for the WebSocket and MJPEG fanout paths.
//
// Grounded on the teacher's internal/video/ffmpeg.go: NewFFmpegWrapper's
// PATH-probing construction and BuildCommand/ValidateInput/GetVersion
// survive unchanged. Hardware-accelerated transcoding
// (HardwareAcceleration, checkVAAPI/checkNVENC, detectCodecs,
// GetPreferredDecoder/GetPreferredEncoder) is dropped: this gateway never
// transcodes to another codec, it only asks ffmpeg for a single MJPEG
// frame per tick, so there is nothing for an encoder/decoder preference
// to apply to.
package video

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/jaofeng/cctvgw/internal/logger"
)

// FFmpegWrapper locates the ffmpeg binary and builds commands against it.
type FFmpegWrapper struct {
	logger     *logger.Logger
	ffmpegPath string
}

// NewFFmpegWrapper locates ffmpeg on PATH or a handful of common install
// locations.
func NewFFmpegWrapper(log *logger.Logger) (*FFmpegWrapper, error) {
	return NewFFmpegWrapperWithPath(log, "")
}

// NewFFmpegWrapperWithPath is like NewFFmpegWrapper but tries preferredPath
// first, falling back to PATH/common locations. preferredPath is typically
// FanoutConfig.FFmpegPath from internal/config.
func NewFFmpegWrapperWithPath(log *logger.Logger, preferredPath string) (*FFmpegWrapper, error) {
	wrapper := &FFmpegWrapper{logger: log}

	path, err := wrapper.detectFFmpeg(preferredPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	wrapper.ffmpegPath = path

	if log != nil {
		log.Info("ffmpeg wrapper initialized", "path", path)
	}
	return wrapper, nil
}

func (f *FFmpegWrapper) detectFFmpeg(preferredPath string) (string, error) {
	paths := []string{"ffmpeg", "/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg"}
	if preferredPath != "" {
		paths = append([]string{preferredPath}, paths...)
	}
	for _, path := range paths {
		if err := exec.Command(path, "-version").Run(); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("ffmpeg not found in PATH or common locations")
}

// BuildCommand builds an ffmpeg invocation bound to ctx, so a viewer
// disconnect or decoder shutdown kills the process.
func (f *FFmpegWrapper) BuildCommand(ctx context.Context, args []string) *exec.Cmd {
	return exec.CommandContext(ctx, f.ffmpegPath, args...)
}

// GetVersion returns the first line of `ffmpeg -version`.
func (f *FFmpegWrapper) GetVersion() (string, error) {
	output, err := exec.Command(f.ffmpegPath, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}

// ValidateInput does a short probe of input (an RTSP URL) to fail fast on
// an unreachable or malformed source before a CameraDecoder commits to it.
func (f *FFmpegWrapper) ValidateInput(input string) error {
	args := []string{
		"-hide_banner",
		"-probesize", "32",
		"-analyzeduration", "1000000",
		"-i", input,
		"-f", "null",
		"-",
	}

	cmd := f.BuildCommand(context.Background(), args)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "Connection refused") ||
			strings.Contains(string(output), "No such file") ||
			strings.Contains(string(output), "Invalid data found") {
			return fmt.Errorf("invalid input: %s: %w", string(output), err)
		}
		return fmt.Errorf("input validation failed: %w", err)
	}
	return nil
}
