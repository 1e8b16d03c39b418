package fanout

import (
	"encoding/base64"
	"fmt"
)

// defaultChunkSize matches FanoutConfig.ChunkSize's default (32 KiB).
const defaultChunkSize = 32 * 1024

// frameMessages builds the wire messages for one JPEG frame: a control
// message announcing the chunk count, then the chunks themselves in
// order. Grounded on original_source/cctv/rtspProxy.py's
// __encodingImage/__sendPackages: a control message `::<n>::` followed by
// `~<seq>~<chunk>` frames of base64-encoded, data-URI-prefixed JPEG.
func frameMessages(jpegData []byte, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	payload := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)

	var chunks []string
	for i := 0; i < len(payload); i += chunkSize {
		end := i + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[i:end])
	}

	messages := make([]string, 0, len(chunks)+1)
	messages = append(messages, fmt.Sprintf("::%d::", len(chunks)))
	for i, c := range chunks {
		messages = append(messages, fmt.Sprintf("~%d~%s", i+1, c))
	}
	return messages
}

// clientMessage is a viewer's inbound control message.
type clientMessage struct {
	Act        string `json:"act"`
	URL        string `json:"url,omitempty"`
	Resolution [2]int `json:"resolution,omitempty"`
	Quality    int    `json:"quality,omitempty"`
}
