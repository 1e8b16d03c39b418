// Package web hosts the gateway's read-only HTTP surface: the registry
// JSON API (SPEC_FULL §6 "Registry read API") and the MJPEG live-view
// route (SPEC_FULL §4.7). Adapted from the teacher's internal/web/server.go
// — the same gin.New()+middleware+ServiceBase shape — trimmed to this
// spec's three JSON routes plus /live/:id; the teacher's AI/screenshot/
// clip/telemetry/config-service routes have no counterpart here and are
// dropped rather than carried as dead code.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaofeng/cctvgw/internal/agent"
	"github.com/jaofeng/cctvgw/internal/config"
	"github.com/jaofeng/cctvgw/internal/fanout"
	"github.com/jaofeng/cctvgw/internal/logger"
	"github.com/jaofeng/cctvgw/internal/service"
)

// Server is the gateway's HTTP surface.
type Server struct {
	*service.ServiceBase
	cfg        config.FanoutConfig
	logger     *logger.Logger
	httpServer *http.Server
	router     *gin.Engine
	agent      *agent.Agent
	fanoutMgr  *fanout.Manager
	startTime  time.Time
}

// NewServer constructs a Server. ag supplies the camera registry read by
// the JSON routes; fanoutMgr supplies the CameraDecoder /live/:id shares
// with any WebSocket viewers of the same stream.
func NewServer(cfg config.FanoutConfig, ag *agent.Agent, fanoutMgr *fanout.Manager, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	s := &Server{
		ServiceBase: service.NewServiceBase("web-server", log),
		cfg:         cfg,
		logger:      log,
		router:      router,
		agent:       ag,
		fanoutMgr:   fanoutMgr,
		startTime:   time.Now(),
	}
	s.setupRoutes()
	return s
}

// Start begins serving HTTP on cfg.HTTPHost:cfg.HTTPPort.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.HTTPHost, s.cfg.HTTPPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // disabled: /live/:id streams indefinitely
		IdleTimeout:  0,
	}

	go func() {
		s.LogInfo("starting web server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.LogError("web server error", err, "address", addr)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		s.LogInfo("web server started", "address", addr)
		return nil
	}
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.LogInfo("stopping web server")
	return s.httpServer.Shutdown(ctx)
}

// Name returns the service name.
func (s *Server) Name() string { return "web-server" }

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)

		cameras := api.Group("/cameras")
		{
			cameras.GET("", s.handleListCameras)
			cameras.GET("/:id", s.handleGetCamera)
		}
	}

	s.router.GET("/live/:id", s.handleLive)
}

func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		log.Debug("http request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", latency,
			"client_ip", c.ClientIP(),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
