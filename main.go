package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaofeng/cctvgw/internal/agent"
	"github.com/jaofeng/cctvgw/internal/camera"
	"github.com/jaofeng/cctvgw/internal/config"
	"github.com/jaofeng/cctvgw/internal/fanout"
	"github.com/jaofeng/cctvgw/internal/logger"
	"github.com/jaofeng/cctvgw/internal/probe"
	"github.com/jaofeng/cctvgw/internal/service"
	"github.com/jaofeng/cctvgw/internal/state"
	"github.com/jaofeng/cctvgw/internal/video"
	"github.com/jaofeng/cctvgw/internal/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (short)")
	flag.Parse()

	bootCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.LogConfig{
		Level:  bootCfg.Log.Level,
		Format: bootCfg.Log.Format,
		Output: bootCfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Re-load through the config service so env overrides and Validate
	// run the same way a later Reload() would.
	configSvc, err := config.NewService(configPath, log)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	cfg := configSvc.Get()

	log.Info("starting cctv gateway",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// State cache: recovers the registry from a prior run before discovery
	// has a chance to rebuild it from scratch.
	var stateMgr *state.Manager
	if cfg.State.Enabled {
		stateMgr, err = state.NewManager(cfg.State.DataDir, log)
		if err != nil {
			log.Error("failed to create state manager", "error", err)
			os.Exit(1)
		}
		defer stateMgr.Close()
	}

	ag := agent.New(agent.Config{
		SearchInterval: cfg.Discovery.SearchInterval,
		SweepInterval:  cfg.Discovery.SweepInterval,
		WSProbeTimeout: cfg.Discovery.WSProbeTimeout,
		ProbeTimeout:   cfg.Discovery.ProbeTimeout,
		Credentials:    toProbeCredentials(cfg.Discovery.Credentials),
		Seed:           toAgentSeed(cfg.Seed),
	}, log)

	if stateMgr != nil {
		recovered, err := stateMgr.RecoverCameras(ctx)
		if err != nil {
			log.Warn("failed to recover cameras from state cache", "error", err)
		}
		for _, cam := range recovered {
			ag.Registry().Seed(cam)
		}
		subscribeStateSync(ag, stateMgr)
	}

	if cfg.Discovery.Enabled {
		if err := ag.Start(ctx, true); err != nil {
			log.Error("failed to start discovery agent", "error", err)
			os.Exit(1)
		}
		defer ag.Stop()
	}

	ffmpeg, err := video.NewFFmpegWrapperWithPath(log, cfg.Fanout.FFmpegPath)
	if err != nil {
		log.Warn("ffmpeg not available, live view will be unavailable", "error", err)
	}

	fanoutCfg := fanout.DecoderConfig{
		FrameInterval:    cfg.Fanout.FrameInterval,
		DefaultQuality:   cfg.Fanout.JPEGQuality,
		ReconnectBackoff: cfg.Fanout.ReconnectBackoff,
	}
	fanoutMgr := fanout.NewManager(ffmpeg, fanoutCfg, log)
	defer fanoutMgr.StopAll()

	svcMgr := service.NewManager(log)

	wsServer := fanout.NewServer(fanoutMgr, cfg.Fanout.ChunkSize, log)
	wsHTTP := newHTTPService("fanout-ws", cfg.Fanout.WSHost, cfg.Fanout.WSPort, wsServer, log)
	svcMgr.Register(wsHTTP)

	webServer := web.NewServer(cfg.Fanout, ag, fanoutMgr, log)
	svcMgr.Register(webServer)

	if err := svcMgr.Start(ctx); err != nil {
		log.Error("failed to start services", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	for {
		sig = <-sigChan
		if sig != syscall.SIGHUP {
			break
		}
		if err := configSvc.Reload(ctx); err != nil {
			log.Error("config reload failed", "error", err)
		}
	}
	log.Info("received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svcMgr.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("shutdown complete")
}

func toProbeCredentials(creds []config.Credential) []probe.Credential {
	out := make([]probe.Credential, 0, len(creds))
	for _, c := range creds {
		out = append(out, probe.Credential{User: c.User, Password: c.Password})
	}
	return out
}

func toAgentSeed(seed []config.SeedCamera) []agent.SeedCamera {
	out := make([]agent.SeedCamera, 0, len(seed))
	for _, s := range seed {
		out = append(out, agent.SeedCamera{
			ID:       s.ID,
			IP:       s.IP,
			Port:     s.Port,
			Profile:  s.Profile,
			User:     s.User,
			Password: s.Password,
		})
	}
	return out
}

// subscribeStateSync mirrors every registry lifecycle event back to the
// state cache, best-effort (SyncCamera never returns an error to the bus).
func subscribeStateSync(ag *agent.Agent, stateMgr *state.Manager) {
	onEvent := func(evt camera.Event) {
		stateMgr.SyncCamera(context.Background(), evt.Camera)
	}
	bus := ag.Bus()
	bus.On(camera.KindFound, onEvent)
	bus.On(camera.KindJoined, onEvent)
	bus.On(camera.KindUpdated, onEvent)
	bus.On(camera.KindOnline, onEvent)
	bus.On(camera.KindOffline, onEvent)
}

// httpService adapts a plain http.Handler (fanout.Server has no Start/Stop
// of its own) to service.Service, the way web.Server wraps its own
// http.Server inline; kept separate here since the WS and HTTP listeners
// run on independent host:port pairs per SPEC_FULL §4.6/§6.
type httpService struct {
	name   string
	addr   string
	server *http.Server
	log    *logger.Logger
}

func newHTTPService(name, host string, port int, handler http.Handler, log *logger.Logger) *httpService {
	return &httpService{
		name: name,
		addr: fmt.Sprintf("%s:%d", host, port),
		server: &http.Server{
			Handler: handler,
		},
		log: log,
	}
}

func (s *httpService) Name() string { return s.name }

func (s *httpService) Start(ctx context.Context) error {
	s.server.Addr = s.addr
	go func() {
		s.log.Info("starting http service", "service", s.name, "address", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("http service error", "service", s.name, "error", err)
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (s *httpService) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
