package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/pipebench/internal/api/http"
	"github.com/GriffinCanCode/pipebench/internal/api/middleware"
	"github.com/GriffinCanCode/pipebench/internal/api/ws"
	"github.com/GriffinCanCode/pipebench/internal/domain/bench"
	"github.com/GriffinCanCode/pipebench/internal/infrastructure/config"
	"github.com/GriffinCanCode/pipebench/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pipebench/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/pipebench/internal/infrastructure/resilience"
)

// Server wraps the HTTP server and its dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	manager *bench.Manager
	metrics *monitoring.Metrics
	logger  *logging.Logger
	config  *config.Config
	cancel  context.CancelFunc
}

// NewServer builds the control plane for cfg.
func NewServer(cfg *config.Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	logger.Info("Initializing pipebench control plane",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("stages", cfg.Pipeline.Stages),
		zap.Int("items", cfg.Pipeline.Items),
	)

	metrics := monitoring.NewMetrics()
	manager := bench.NewManager(cfg.Pipeline.Params(), logger).
		WithMetrics(metrics).
		WithHistory(cfg.Pipeline.History)
	if cfg.Pipeline.AbortTrip > 0 {
		guardLog := logger.Component("guard")
		manager.WithGuard(resilience.New(resilience.Settings{
			Trip:      cfg.Pipeline.AbortTrip,
			Cooldown:  time.Duration(cfg.Pipeline.AbortCooldown),
			IsFailure: bench.IsStall,
			OnStateChange: func(from, to resilience.State) {
				guardLog.Warn("Run guard state changed",
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
				metrics.GuardState.Set(float64(to))
			},
		}))
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	cors := middleware.DefaultCORSConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		cors.AllowOrigins = cfg.Server.CORSOrigins
	}
	router.Use(middleware.CORS(cors))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(manager, metrics, logger.Component("api"))
	wsHandler := ws.NewHandler(manager, metrics, logger.Component("ws"))

	router.GET("/health", handlers.Health)
	router.GET("/stats", handlers.Stats)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/runs", handlers.ListRuns)
	router.GET("/runs/:id", handlers.GetRun)
	router.POST("/runs", handlers.StartRun)
	router.GET("/report", handlers.Report)
	router.GET("/live", wsHandler.HandleConnection)

	logger.Info("Control plane initialized")

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		router:  router,
		manager: manager,
		metrics: metrics,
		logger:  logger,
		config:  cfg,
		cancel:  cancel,
		http: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
		},
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Manager returns the bench manager behind the routes.
func (s *Server) Manager() *bench.Manager {
	return s.manager
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, cancels request contexts so that a
// run in progress aborts and live feeds close, then waits for the handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.cancel()
	err := s.http.Shutdown(ctx)
	s.metrics.Close()
	_ = s.logger.Sync()
	return err
}
