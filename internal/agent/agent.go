// Package agent wires the SSDP engine, the WS-Discovery sweep, the ONVIF
// credential-cascade probe, and a static seed list into one camera
// registry.
//
// Grounded on original_source/cctv/agent.py's CCTV_Worker in full: the
// FOUND/JOINED/UPDATE/ONLINE/OFFLINE event set, start/stop,
// discoveryOnvif/__onJoined/__appedIpCam/__getDevInfoFromSsdp. The BYEBYE
// path diverges from the source's no-op __onLeaved: per the Open Question
// resolution recorded in DESIGN.md, a BYEBYE (or an SSDP cache-timeout
// sweep) sets alive=false and keeps the record, instead of being ignored.
package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jaofeng/cctvgw/internal/camera"
	"github.com/jaofeng/cctvgw/internal/eventbus"
	"github.com/jaofeng/cctvgw/internal/logger"
	"github.com/jaofeng/cctvgw/internal/probe"
	"github.com/jaofeng/cctvgw/internal/ssdp"
	"github.com/jaofeng/cctvgw/internal/wsdiscovery"
)

// defaultNotifyFilterPattern mirrors setNotifyFilter(r'upnp_NetworkCamera')
// from the source: only NOTIFYs whose NT matches are handled.
const defaultNotifyFilterPattern = `upnp_NetworkCamera`

// SeedCamera is one statically configured camera, bypassing discovery.
type SeedCamera struct {
	ID       string
	IP       string
	Port     int
	Profile  string
	User     string
	Password string
}

// Config controls the Agent's timing and credential policy.
type Config struct {
	NotifyFilterPattern string
	SearchInterval      time.Duration
	SweepInterval       time.Duration
	WSProbeTimeout      time.Duration
	ProbeTimeout        time.Duration
	Credentials         []probe.Credential
	Seed                []SeedCamera
}

func (c Config) withDefaults() Config {
	if c.NotifyFilterPattern == "" {
		c.NotifyFilterPattern = defaultNotifyFilterPattern
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 10 * time.Second
	}
	if c.WSProbeTimeout == 0 {
		c.WSProbeTimeout = 3 * time.Second
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if len(c.Credentials) == 0 {
		c.Credentials = probe.DefaultCredentials
	}
	return c
}

// Agent owns the camera registry and stitches together SSDP, WS-Discovery,
// the ONVIF probe, and the seed list.
type Agent struct {
	cfg      Config
	log      *logger.Logger
	ssdp     *ssdp.Service
	registry *camera.Registry

	notifyFilter *regexp.Regexp

	mu        sync.Mutex
	usnToIP   map[string]string
	stopSweep chan struct{}
	sweepDone chan struct{}
}

// New constructs an idle Agent. Call Start to begin discovery.
func New(cfg Config, log *logger.Logger) *Agent {
	cfg = cfg.withDefaults()
	return &Agent{
		cfg:          cfg,
		log:          log,
		ssdp:         ssdp.NewService(log),
		registry:     camera.NewRegistry(eventbus.New[camera.Kind, camera.Event]()),
		notifyFilter: regexp.MustCompile(cfg.NotifyFilterPattern),
		usnToIP:      make(map[string]string),
	}
}

// Registry returns the camera registry. Read-only consumers (the fanout
// and web layers) call Get/All/FindByIP/GetByID on it directly.
func (a *Agent) Registry() *camera.Registry { return a.registry }

// Bus returns the eventbus consumers subscribe to for
// FOUND/JOINED/UPDATE/ONLINE/OFFLINE notifications.
func (a *Agent) Bus() *eventbus.Bus[camera.Kind, camera.Event] {
	return a.registry.Bus()
}

// Start begins SSDP listening, loads the seed list, and — if search is
// true — kicks an initial WS-Discovery sweep in the background. It
// returns once the SSDP receiver socket is up and every seed probe has
// finished.
func (a *Agent) Start(ctx context.Context, search bool) error {
	a.ssdp.SetNotifyFilter(func(c ssdp.Content) bool {
		return a.notifyFilter.MatchString(c.Get("NT"))
	})
	a.ssdp.Bus.On(ssdp.KindDeviceJoined, a.onSSDPJoined)
	a.ssdp.Bus.On(ssdp.KindDeviceLeaved, a.onSSDPLeaved)

	if err := a.ssdp.Start(ctx); err != nil {
		return fmt.Errorf("agent: start ssdp: %w", err)
	}

	a.RenewSeedList(ctx)

	a.mu.Lock()
	a.stopSweep = make(chan struct{})
	a.sweepDone = make(chan struct{})
	stop, done := a.stopSweep, a.sweepDone
	a.mu.Unlock()
	go a.sweepLoop(stop, done)

	if search {
		go func() {
			if err := a.DiscoverAndProbe(ctx, true); err != nil && a.log != nil {
				a.log.Warn("agent: initial discovery failed", "error", err)
			}
		}()
	}

	if a.log != nil {
		a.log.Info("cctv agent started")
	}
	return nil
}

// Stop halts the SSDP engine and drains the registry.
func (a *Agent) Stop() {
	a.mu.Lock()
	stop, done := a.stopSweep, a.sweepDone
	a.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
	a.ssdp.Stop()
	a.registry.Clear()
	if a.log != nil {
		a.log.Warn("cctv agent stopped")
	}
}

func (a *Agent) sweepLoop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.ssdp.Sweep()
		}
	}
}

// RenewSeedList probes every seed camera concurrently and merges the
// results into the registry, the way the source's renewIpCamInfo does at
// startup.
func (a *Agent) RenewSeedList(ctx context.Context) {
	var wg sync.WaitGroup
	for _, seed := range a.cfg.Seed {
		seed := seed
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.renewSeedCamera(ctx, seed)
		}()
	}
	wg.Wait()
}

func (a *Agent) renewSeedCamera(ctx context.Context, seed SeedCamera) {
	port := seed.Port
	if port == 0 {
		port = 80
	}
	svcURL := probe.ServiceURL(seed.IP, port)

	cam := camera.Camera{
		IP:         seed.IP,
		Port:       port,
		ServiceURL: svcURL,
		ID:         seed.ID,
		User:       seed.User,
		Password:   seed.Password,
	}
	a.registry.Seed(cam)

	creds := a.cfg.Credentials
	if seed.User != "" || seed.Password != "" {
		creds = []probe.Credential{{User: seed.User, Password: seed.Password}}
	}

	pctx, cancel := context.WithTimeout(ctx, a.cfg.ProbeTimeout)
	defer cancel()

	result, err := probe.Probe(pctx, svcURL, creds)
	if err != nil {
		if a.log != nil {
			a.log.Warn("agent: seed probe failed", "ip", seed.IP, "error", err)
		}
		return
	}

	a.registry.ApplyProbe(seed.IP, port, result.ServiceURL, result.HostName,
		camera.FromProbeSource(result.Source), camera.FromProbeProfiles(result.Profiles), true)
	a.registry.SetCredentials(seed.IP, port, result.User, result.Password)
	if seed.Profile != "" {
		a.registry.MarkSelectedProfile(seed.IP, port, seed.Profile)
	}
}

// Discover runs a WS-Discovery sweep and returns the discovered ONVIF
// service URLs. Errors are logged and swallowed per SPEC_FULL §4.4; the
// returned list may be empty.
func (a *Agent) Discover(ctx context.Context) []string {
	matches, err := wsdiscovery.Discover(ctx, a.cfg.WSProbeTimeout)
	if err != nil {
		if a.log != nil {
			a.log.Warn("agent: ws-discovery failed", "error", err)
		}
		return nil
	}
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		urls = append(urls, m.ServiceURL)
	}
	return urls
}

// DiscoverAndProbe runs Discover, then probes every returned URL
// concurrently. For a URL whose ip:port isn't already in the registry, it
// fires FOUND and appends a record. For a known ip:port, it refreshes
// last_seen/host_name, and overwrites service_url/profiles (firing
// UPDATE) only when the record has no profiles yet or byProc is false.
func (a *Agent) DiscoverAndProbe(ctx context.Context, byProc bool) error {
	urls := a.Discover(ctx)
	if len(urls) == 0 {
		if a.log != nil {
			a.log.Debug("agent: no ip cams found")
		}
		return nil
	}

	var wg sync.WaitGroup
	for _, u := range urls {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.probeAndMerge(ctx, u, byProc)
		}()
	}
	wg.Wait()
	return nil
}

func (a *Agent) probeAndMerge(ctx context.Context, serviceURL string, byProc bool) {
	ip, port, err := splitServiceURL(serviceURL)
	if err != nil {
		if a.log != nil {
			a.log.Warn("agent: bad discovered service url", "url", serviceURL, "error", err)
		}
		return
	}

	result, err := probe.Probe(ctx, serviceURL, a.cfg.Credentials)
	if err != nil {
		if a.log != nil {
			a.log.Debug("agent: discovered device did not authenticate", "url", serviceURL, "error", err)
		}
		return
	}

	if _, existed := a.registry.Get(ip, port); !existed {
		a.registry.Join(camera.Camera{
			IP:         ip,
			Port:       port,
			ServiceURL: result.ServiceURL,
			HostName:   result.HostName,
		}, camera.KindFound)
	}

	a.registry.ApplyProbe(ip, port, result.ServiceURL, result.HostName,
		camera.FromProbeSource(result.Source), camera.FromProbeProfiles(result.Profiles), !byProc)
	a.registry.SetCredentials(ip, port, result.User, result.Password)
}

// Clear empties both the SSDP device table and the camera registry.
func (a *Agent) Clear() {
	a.ssdp.Stop()
	a.registry.Clear()
}

// GetOnvifInfo is a pass-through credential-cascade probe against an
// arbitrary service URL, independent of the registry.
func (a *Agent) GetOnvifInfo(ctx context.Context, serviceURL string, creds []probe.Credential) (*probe.Result, error) {
	if len(creds) == 0 {
		creds = a.cfg.Credentials
	}
	return probe.Probe(ctx, serviceURL, creds)
}

// Find returns every registered camera at ip.
func (a *Agent) Find(ip string) []camera.Camera { return a.registry.FindByIP(ip) }

// onSSDPJoined handles an SSDP DEVICE_JOINED event: look up by the
// announcing IP; if unknown, fetch the LOCATION description to refine
// host/name, derive a device-service URL, append, and fire JOINED; if
// known, refresh liveness and probe it if it still lacks profiles.
func (a *Agent) onSSDPJoined(e ssdp.Event) {
	ip := hostFromRemote(e.Remote)
	if ip == "" {
		return
	}

	a.mu.Lock()
	a.usnToIP[e.Device.USN] = ip
	a.mu.Unlock()

	existing := a.registry.FindByIP(ip)
	if len(existing) > 0 {
		port := existing[0].Port
		_, isNew := a.registry.Join(camera.Camera{IP: ip, Port: port}, camera.KindJoined)
		if !isNew && len(existing[0].Profiles) == 0 {
			go a.probeKnownDevice(ip, port, existing[0].ServiceURL)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ProbeTimeout)
	defer cancel()

	host := ip
	var name string
	if e.Device.Location != "" {
		fn, endpoint, err := fetchDeviceDescription(ctx, e.Device.Location)
		if err != nil {
			if a.log != nil {
				a.log.Warn("agent: device description fetch failed", "location", e.Device.Location, "error", err)
			}
		} else {
			name = fn
			if endpoint != "" {
				host = endpoint
			}
		}
	}

	hostIP, hostPort := splitHostPort(host)
	svcURL := probe.ServiceURL(hostIP, hostPort)

	cam, isNew := a.registry.Join(camera.Camera{
		IP:         hostIP,
		Port:       hostPort,
		ServiceURL: svcURL,
		HostName:   name,
		MaxAge:     maxAgeSeconds(e.Device),
	}, camera.KindJoined)
	if isNew {
		go a.probeKnownDevice(cam.IP, cam.Port, cam.ServiceURL)
	}
}

func (a *Agent) probeKnownDevice(ip string, port int, serviceURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ProbeTimeout)
	defer cancel()

	result, err := probe.Probe(ctx, serviceURL, a.cfg.Credentials)
	if err != nil {
		if a.log != nil {
			a.log.Debug("agent: probe failed", "ip", ip, "error", err)
		}
		return
	}
	a.registry.ApplyProbe(ip, port, result.ServiceURL, result.HostName,
		camera.FromProbeSource(result.Source), camera.FromProbeProfiles(result.Profiles), false)
	a.registry.SetCredentials(ip, port, result.User, result.Password)
}

// onSSDPLeaved handles both an explicit ssdp:byebye and an SSDP
// cache-timeout sweep. A sweep-triggered event carries no Remote, so the
// announcing IP is recovered from the USN recorded at JOIN time.
func (a *Agent) onSSDPLeaved(e ssdp.Event) {
	ip := hostFromRemote(e.Remote)
	if ip == "" {
		a.mu.Lock()
		ip = a.usnToIP[e.Device.USN]
		delete(a.usnToIP, e.Device.USN)
		a.mu.Unlock()
	}
	if ip == "" {
		return
	}

	for _, cam := range a.registry.FindByIP(ip) {
		a.registry.SetAlive(cam.IP, cam.Port, false)
	}
}

func maxAgeSeconds(d ssdp.Device) int {
	if d.ExpiresAt.IsZero() {
		return 0
	}
	seconds := int(time.Until(d.ExpiresAt).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

func hostFromRemote(remote string) string {
	idx := strings.LastIndex(remote, ":")
	if idx < 0 {
		return remote
	}
	return remote[:idx]
}

func splitHostPort(host string) (string, int) {
	parts := strings.SplitN(host, ":", 2)
	if len(parts) == 1 {
		return parts[0], 80
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return parts[0], 80
	}
	return parts[0], port
}

func splitServiceURL(serviceURL string) (string, int, error) {
	const prefix = "http://"
	rest := serviceURL
	if strings.HasPrefix(rest, prefix) {
		rest = rest[len(prefix):]
	} else if strings.HasPrefix(rest, "https://") {
		rest = rest[len("https://"):]
	} else {
		return "", 0, errors.New("agent: service url missing scheme")
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}
	if rest == "" {
		return "", 0, errors.New("agent: service url missing host")
	}
	ip, port := splitHostPort(rest)
	return ip, port, nil
}
