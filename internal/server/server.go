// Package server wires the bridge into an HTTP surface: a WebSocket
// endpoint per sandbox connection, plus health and metrics endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/prismshell/prism/internal/api/middleware"
	"github.com/prismshell/prism/internal/bridge"
	"github.com/prismshell/prism/internal/contract"
	"github.com/prismshell/prism/internal/handlers"
	"github.com/prismshell/prism/internal/handlers/storage"
	"github.com/prismshell/prism/internal/handlers/system"
	"github.com/prismshell/prism/internal/handlers/telemetry"
	"github.com/prismshell/prism/internal/infrastructure/config"
	"github.com/prismshell/prism/internal/infrastructure/logging"
	"github.com/prismshell/prism/internal/infrastructure/monitoring"
	"github.com/prismshell/prism/internal/shared/id"
	transportws "github.com/prismshell/prism/internal/transport/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin policy is enforced by the CORS middleware
	},
}

// Server hosts the bridge endpoint and its HTTP surface.
type Server struct {
	engine   *gin.Engine
	httpSrv  *http.Server
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	store    *storage.Store
	contract *contract.Contract
	timeouts map[string]time.Duration
}

// NewServer builds a server from configuration. The declared channel set is
// fixed here, before any sandbox can connect.
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	logger.Info("Initializing bridge host",
		zap.String("port", cfg.Server.Port),
		zap.Duration("request_timeout", cfg.Bridge.RequestTimeout),
	)

	metrics := monitoring.NewMetrics()

	store, err := storage.OpenStore(cfg.Bridge.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	s := &Server{
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		store:    store,
		timeouts: make(map[string]time.Duration),
	}

	// The catalog declares the full channel set; the optional manifest may
	// disable channels or override request timeouts, once, at startup.
	ct, err := s.newCatalog().Contract()
	if err != nil {
		return nil, fmt.Errorf("build contract: %w", err)
	}
	if cfg.Bridge.ManifestPath != "" {
		manifest, err := config.LoadManifest(cfg.Bridge.ManifestPath)
		if err != nil {
			return nil, fmt.Errorf("load manifest: %w", err)
		}
		if disabled := manifest.Disabled(); len(disabled) > 0 {
			logger.Info("Channels disabled by manifest", zap.Strings("channels", disabled))
			ct = ct.Without(disabled...)
		}
		s.timeouts = manifest.Timeouts()
	}
	s.contract = ct
	logger.Info("Channel contract fixed", zap.Int("channels", ct.Len()))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(monitoring.Middleware(metrics))
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	engine.GET("/", s.handleRoot)
	engine.GET("/health", s.handleHealth)
	engine.GET("/channels", s.handleChannels)
	engine.GET("/bridge", s.handleBridge)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	s.engine = engine
	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server")
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(err))
			return err
		}
	}
	s.logger.Sync()
	return nil
}

// newCatalog builds the provider set for one connection. The storage
// backend is shared; routers are not.
func (s *Server) newCatalog() *handlers.Catalog {
	return handlers.NewCatalog(
		system.New(),
		storage.New(s.store),
		telemetry.New(s.logger, s.config.Bridge.HeartbeatInterval),
	)
}

func (s *Server) handleBridge(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	connID := id.NewConnID()
	s.logger.Info("Sandbox connected", zap.String("conn_id", connID.String()))
	s.metrics.Connections.Inc()
	defer func() {
		s.metrics.Connections.Dec()
		s.logger.Info("Sandbox disconnected", zap.String("conn_id", connID.String()))
	}()

	tr := transportws.New(conn, transportws.WithLogger(s.logger.Logger))
	defer tr.Close()

	router := bridge.NewRouter(tr, s.contract,
		bridge.WithLogger(s.logger),
		bridge.WithMetrics(s.metrics),
		bridge.WithRequestTimeout(s.config.Bridge.RequestTimeout),
		bridge.WithChannelTimeouts(s.timeouts),
	)

	catalog := s.newCatalog()
	if err := catalog.Attach(router); err != nil {
		s.logger.Error("Provider attach failed", zap.String("conn_id", connID.String()), zap.Error(err))
		return
	}
	// Handlers are in place; only now may inbound frames be dispatched.
	router.Start()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		<-tr.Done()
		cancel()
	}()

	// Blocks until the transport dies or the request context is canceled.
	catalog.Run(ctx)
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":  "prism-host",
		"channels": s.contract.Len(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime_ms": s.metrics.Uptime().Milliseconds(),
	})
}

func (s *Server) handleChannels(c *gin.Context) {
	type channelInfo struct {
		Name  string `json:"name"`
		Shape string `json:"shape"`
	}
	out := make([]channelInfo, 0, s.contract.Len())
	for _, ch := range s.contract.Channels() {
		out = append(out, channelInfo{Name: ch.Name, Shape: ch.Shape.String()})
	}
	c.JSON(http.StatusOK, gin.H{"channels": out})
}
