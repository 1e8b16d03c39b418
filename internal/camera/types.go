// Package camera holds the registry of known cameras: the central record
// the SSDP engine, the WS-Discovery sweep, the ONVIF probe, and the seed
// list all feed into and the fanout/web layers read from.
//
// Grounded on internal/camera/manager.go's struct-per-concern style, with
// the fields replaced end to end by the camera/profile/video-source model.
package camera

import (
	"time"

	"github.com/jaofeng/cctvgw/internal/onvif"
)

// Encoding mirrors onvif.Encoding; re-exported here so callers of this
// package don't need to import internal/onvif for the enum alone.
type Encoding = onvif.Encoding

const (
	EncodingH264 = onvif.EncodingH264
	EncodingH265 = onvif.EncodingH265
	EncodingMJPEG = onvif.EncodingMJPEG
	EncodingJPEG = onvif.EncodingJPEG
)

// Resolution is a frame width/height pair. (0, 0) means "native" where it
// appears in a viewer request.
type Resolution struct {
	Width  int
	Height int
}

// Profile is one ONVIF media profile advertised by a camera.
type Profile struct {
	Name       string
	Token      string
	Encoding   Encoding
	Resolution Resolution
	Quality    int
	FrameRate  int
	StreamURL  string

	// Selected marks the profile matching the seed list's configured
	// Profile field. At most one profile per camera is selected, and
	// only cameras that came from the seed list have one at all.
	Selected bool
}

// VideoSource is a camera's raw video source, independent of any encoder
// profile built on top of it.
type VideoSource struct {
	Name       string
	Resolution Resolution
}

// Camera is the registry entity: everything known about one device,
// keyed by (IP, Port).
type Camera struct {
	IP         string
	Port       int
	ServiceURL string
	HostName   string
	ID         string
	User       string
	Password   string
	Source     *VideoSource
	// Profiles is nil before the first successful probe, and a
	// (possibly empty) slice after — the two are distinguished
	// deliberately, so don't collapse nil into len()==0 checks.
	Profiles  []Profile
	JoinTime  time.Time
	LastSeen  time.Time
	Alive     bool
	MaxAge    int
}

// FromProbeProfile converts an onvif.Profile (as returned by
// internal/probe) into the registry's Profile shape.
func FromProbeProfile(p onvif.Profile) Profile {
	return Profile{
		Name:       p.Name,
		Token:      p.Token,
		Encoding:   p.Encoding,
		Resolution: Resolution(p.Resolution),
		Quality:    p.Quality,
		FrameRate:  p.FrameRate,
		StreamURL:  p.StreamURL,
	}
}

// FromProbeProfiles converts a slice of onvif.Profile in order.
func FromProbeProfiles(ps []onvif.Profile) []Profile {
	out := make([]Profile, len(ps))
	for i, p := range ps {
		out[i] = FromProbeProfile(p)
	}
	return out
}

// FromProbeSource converts an onvif.VideoSource pointer, passing nil through.
func FromProbeSource(s *onvif.VideoSource) *VideoSource {
	if s == nil {
		return nil
	}
	return &VideoSource{Name: s.Name, Resolution: Resolution(s.Resolution)}
}
