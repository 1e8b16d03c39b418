package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaofeng/cctvgw/internal/camera"
	"github.com/jaofeng/cctvgw/internal/mjpeg"
)

// cameraDTO is the JSON shape of a registry Camera, grounded on teacher
// internal/web/handlers.go's CameraResponse pattern (re-shape the domain
// struct rather than serialize it directly).
type cameraDTO struct {
	ID       string       `json:"id"`
	IP       string       `json:"ip"`
	Port     int          `json:"port"`
	HostName string       `json:"host_name"`
	Alive    bool         `json:"alive"`
	JoinTime time.Time    `json:"join_time"`
	LastSeen time.Time    `json:"last_seen"`
	Profiles []profileDTO `json:"profiles"`
}

type profileDTO struct {
	Name      string `json:"name"`
	Token     string `json:"token"`
	Encoding  string `json:"encoding"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Quality   int    `json:"quality"`
	FrameRate int    `json:"frame_rate"`
	StreamURL string `json:"stream_url"`
	Selected  bool   `json:"selected"`
}

func toCameraDTO(cam camera.Camera) cameraDTO {
	profiles := make([]profileDTO, 0, len(cam.Profiles))
	for _, p := range cam.Profiles {
		profiles = append(profiles, profileDTO{
			Name:      p.Name,
			Token:     p.Token,
			Encoding:  string(p.Encoding),
			Width:     p.Resolution.Width,
			Height:    p.Resolution.Height,
			Quality:   p.Quality,
			FrameRate: p.FrameRate,
			StreamURL: p.StreamURL,
			Selected:  p.Selected,
		})
	}
	return cameraDTO{
		ID:       cam.ID,
		IP:       cam.IP,
		Port:     cam.Port,
		HostName: cam.HostName,
		Alive:    cam.Alive,
		JoinTime: cam.JoinTime,
		LastSeen: cam.LastSeen,
		Profiles: profiles,
	}
}

// handleListCameras implements GET /api/cameras.
func (s *Server) handleListCameras(c *gin.Context) {
	cams := s.agent.Registry().All()
	out := make([]cameraDTO, 0, len(cams))
	for _, cam := range cams {
		out = append(out, toCameraDTO(cam))
	}
	c.JSON(http.StatusOK, out)
}

// handleGetCamera implements GET /api/cameras/:id.
func (s *Server) handleGetCamera(c *gin.Context) {
	cam, ok := s.agent.Registry().GetByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}
	c.JSON(http.StatusOK, toCameraDTO(cam))
}

// handleStatus implements GET /api/status: counts plus process uptime.
func (s *Server) handleStatus(c *gin.Context) {
	cams := s.agent.Registry().All()
	alive := 0
	for _, cam := range cams {
		if cam.Alive {
			alive++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"cameras_total":  len(cams),
		"cameras_alive":  alive,
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
	})
}

// handleLive implements GET /live/:id?size=WxH&q=Q per SPEC_FULL §4.7:
// acquires (or shares) the CameraDecoder for the camera's stream URL,
// attaches an mjpeg.Pusher as a fanout.Sink, and blocks until the client
// disconnects or the pusher's own write fails.
func (s *Server) handleLive(c *gin.Context) {
	cam, ok := s.agent.Registry().GetByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}

	streamURL, ok := streamURLForCamera(cam)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera has no stream url"})
		return
	}

	decoder, err := s.fanoutMgr.Acquire(streamURL)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	pusherID := uuid.NewString()
	pusher, err := mjpeg.NewPusher(pusherID, c.Writer, parseSize(c.Query("size")), parseQuality(c.Query("q")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	decoder.Attach(pusher)
	defer s.fanoutMgr.Release(streamURL, pusherID)

	select {
	case <-c.Request.Context().Done():
	case <-pusher.Done():
	}
}

// streamURLForCamera picks the seed-list-selected profile's stream_url,
// falling back to the first profile that has one, per SPEC_FULL §2.3's
// selected-marking rule.
func streamURLForCamera(cam camera.Camera) (string, bool) {
	for _, p := range cam.Profiles {
		if p.Selected && p.StreamURL != "" {
			return p.StreamURL, true
		}
	}
	for _, p := range cam.Profiles {
		if p.StreamURL != "" {
			return p.StreamURL, true
		}
	}
	return "", false
}

// parseSize parses a "WxH" query value into a Resolution, defaulting to
// (0,0) ("native") on anything malformed.
func parseSize(raw string) camera.Resolution {
	parts := strings.SplitN(raw, "x", 2)
	if len(parts) != 2 {
		return camera.Resolution{}
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return camera.Resolution{}
	}
	return camera.Resolution{Width: w, Height: h}
}

// parseQuality parses the q query value, defaulting to 0 ("decoder
// default") on anything malformed.
func parseQuality(raw string) int {
	q, err := strconv.Atoi(raw)
	if err != nil || q < 0 {
		return 0
	}
	return q
}
