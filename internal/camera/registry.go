package camera

import (
	"sync"
	"time"

	"github.com/jaofeng/cctvgw/internal/eventbus"
)

// Kind enumerates the lifecycle events the registry fires. Grounded on
// SPEC_FULL.md §4.5's FOUND/UPDATE/JOINED/ONLINE/OFFLINE vocabulary.
type Kind string

const (
	// KindFound fires when DiscoverAndProbe meets a device at an IP the
	// registry has never seen.
	KindFound Kind = "found"
	// KindJoined fires when an SSDP ALIVE announces a brand-new device.
	KindJoined Kind = "joined"
	// KindUpdated fires when an existing camera's service_url or
	// profiles are overwritten by a fresh probe.
	KindUpdated Kind = "update"
	// KindOnline fires when a camera transitions from not-alive to alive.
	KindOnline Kind = "online"
	// KindOffline fires when a camera transitions from alive to not-alive.
	KindOffline Kind = "offline"
)

// Event carries the camera record a Kind applies to.
type Event struct {
	Camera Camera
}

type key struct {
	ip   string
	port int
}

// Registry is the (ip,port)-keyed camera table. The Agent owns one
// Registry and is the only component permitted to mutate it; the fanout
// and web layers read it via Get/All/FindByIP.
//
// Grounded on internal/camera/manager.go's mutex+map shape, rekeyed from
// a string ID to (ip,port) per the data model's uniqueness invariant, and
// on original_source/cctv/agent.py::CCTV_Worker's registry list, which
// this replaces with a map for O(1) (ip,port) lookup instead of a linear
// scan (Find(ip=) still scans, since lookup-by-IP can match multiple
// ports).
type Registry struct {
	mu      sync.RWMutex
	bus     *eventbus.Bus[Kind, Event]
	cameras map[key]Camera
}

// NewRegistry creates an empty registry that emits lifecycle events on bus.
func NewRegistry(bus *eventbus.Bus[Kind, Event]) *Registry {
	return &Registry{
		bus:     bus,
		cameras: make(map[key]Camera),
	}
}

// Bus returns the eventbus the registry emits lifecycle events on.
func (r *Registry) Bus() *eventbus.Bus[Kind, Event] { return r.bus }

func (r *Registry) emit(kind Kind, cam Camera) {
	if r.bus != nil {
		r.bus.Emit(kind, Event{Camera: cam})
	}
}

// Get returns the camera at (ip,port), if known.
func (r *Registry) Get(ip string, port int) (Camera, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cam, ok := r.cameras[key{ip, port}]
	return cam, ok
}

// GetByID returns the camera whose operator-assigned ID matches, if any.
func (r *Registry) GetByID(id string) (Camera, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cam := range r.cameras {
		if cam.ID == id {
			return cam, true
		}
	}
	return Camera{}, false
}

// FindByIP returns every camera at ip, across all ports.
func (r *Registry) FindByIP(ip string) []Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Camera
	for k, cam := range r.cameras {
		if k.ip == ip {
			out = append(out, cam)
		}
	}
	return out
}

// All returns every camera currently in the registry, in no particular order.
func (r *Registry) All() []Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Camera, 0, len(r.cameras))
	for _, cam := range r.cameras {
		out = append(out, cam)
	}
	return out
}

// Seed inserts a camera from the static seed list at startup. No event is
// fired: the seed list is configuration, not a discovery that happened.
func (r *Registry) Seed(cam Camera) Camera {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	cam.JoinTime = now
	cam.LastSeen = now
	r.cameras[key{cam.IP, cam.Port}] = cam
	return cam
}

// Join records a device discovered via SSDP or a WS-Discovery/probe sweep.
// If (ip,port) is unknown, it is inserted and kind fires (KindFound or
// KindJoined, per the caller's discovery path). If already known, its
// last_seen is refreshed and alive is set true — ONLINE fires if it had
// gone offline — but no FOUND/JOINED/UPDATE event fires for a re-seen
// device; use ApplyProbe to refresh its profiles.
func (r *Registry) Join(cam Camera, kind Kind) (Camera, bool) {
	r.mu.Lock()
	k := key{cam.IP, cam.Port}
	existing, ok := r.cameras[k]
	now := time.Now()

	if !ok {
		cam.JoinTime = now
		cam.LastSeen = now
		cam.Alive = true
		r.cameras[k] = cam
		r.mu.Unlock()
		r.emit(kind, cam)
		return cam, true
	}

	wasOffline := !existing.Alive
	existing.LastSeen = now
	existing.Alive = true
	if cam.HostName != "" {
		existing.HostName = cam.HostName
	}
	if cam.MaxAge != 0 {
		existing.MaxAge = cam.MaxAge
	}
	r.cameras[k] = existing
	r.mu.Unlock()

	if wasOffline {
		r.emit(KindOnline, existing)
	}
	return existing, false
}

// ApplyProbe merges a successful ONVIF probe into the camera at (ip,port).
// service_url and profiles are overwritten, and KindUpdated fires, when
// the camera has no profiles yet or force is true (the DiscoverAndProbe
// byProc=false path); otherwise the probe's host_name/source are still
// recorded but profiles are left untouched.
func (r *Registry) ApplyProbe(ip string, port int, serviceURL, hostName string, source *VideoSource, profiles []Profile, force bool) (Camera, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{ip, port}
	cam, ok := r.cameras[k]
	if !ok {
		return Camera{}, false
	}

	cam.LastSeen = time.Now()
	cam.Alive = true
	if hostName != "" {
		cam.HostName = hostName
	}
	if source != nil {
		cam.Source = source
	}

	updated := false
	if len(cam.Profiles) == 0 || force {
		cam.ServiceURL = serviceURL
		cam.Profiles = profiles
		updated = true
	}

	r.cameras[k] = cam
	if updated {
		r.emit(KindUpdated, cam)
	}
	return cam, updated
}

// SetCredentials records the (user,password) pair that successfully
// authenticated against the camera at (ip,port).
func (r *Registry) SetCredentials(ip string, port int, user, password string) (Camera, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{ip, port}
	cam, ok := r.cameras[k]
	if !ok {
		return Camera{}, false
	}
	cam.User = user
	cam.Password = password
	r.cameras[k] = cam
	return cam, true
}

// MarkSelectedProfile sets Selected=true on the profile named profileName
// and false on every other profile of the camera at (ip,port).
func (r *Registry) MarkSelectedProfile(ip string, port int, profileName string) (Camera, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{ip, port}
	cam, ok := r.cameras[k]
	if !ok {
		return Camera{}, false
	}
	for i := range cam.Profiles {
		cam.Profiles[i].Selected = cam.Profiles[i].Name == profileName
	}
	r.cameras[k] = cam
	return cam, true
}

// SetAlive flips the alive flag for (ip,port), firing ONLINE/OFFLINE only
// on an actual transition. Used for SSDP BYEBYE (alive=false) and max-age
// expiry sweeps.
func (r *Registry) SetAlive(ip string, port int, alive bool) (Camera, bool) {
	r.mu.Lock()
	k := key{ip, port}
	cam, ok := r.cameras[k]
	if !ok {
		r.mu.Unlock()
		return Camera{}, false
	}
	changed := cam.Alive != alive
	cam.Alive = alive
	if alive {
		cam.LastSeen = time.Now()
	}
	r.cameras[k] = cam
	r.mu.Unlock()

	if changed {
		if alive {
			r.emit(KindOnline, cam)
		} else {
			r.emit(KindOffline, cam)
		}
	}
	return cam, true
}

// Remove deletes the camera at (ip,port) outright, with no event.
func (r *Registry) Remove(ip string, port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{ip, port}
	if _, ok := r.cameras[k]; !ok {
		return false
	}
	delete(r.cameras, k)
	return true
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cameras = make(map[key]Camera)
}
