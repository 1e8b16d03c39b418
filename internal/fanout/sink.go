package fanout

import "github.com/jaofeng/cctvgw/internal/camera"

// Sink receives frames from a CameraDecoder after any per-sink resize.
// Viewer (WebSocket, chunked base64 frames) and internal/mjpeg.Pusher
// (HTTP multipart, raw JPEG bytes) both implement it, so one decoder
// fans out to both transports without knowing which is attached.
type Sink interface {
	SinkID() string
	Resolution() camera.Resolution
	Quality() int
	Deliver(jpegData []byte) error
}
