package server

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/BrandHub/backend/internal/api/http"
	"github.com/GriffinCanCode/BrandHub/backend/internal/api/middleware"
	"github.com/GriffinCanCode/BrandHub/backend/internal/api/ws"
	"github.com/GriffinCanCode/BrandHub/backend/internal/assetapi"
	"github.com/GriffinCanCode/BrandHub/backend/internal/domain/view"
	"github.com/GriffinCanCode/BrandHub/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/BrandHub/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/BrandHub/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/BrandHub/backend/internal/infrastructure/store"
	"github.com/GriffinCanCode/BrandHub/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/catalog"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/host"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/runtime"
)

const (
	slowRequest = 2 * time.Second
	gzipMinSize = 1024
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *nethttp.Server
	views   *view.Manager
	store   *store.Store
	api     *assetapi.Client
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	logger.Info("Initializing BrandHub sandbox",
		zap.String("addr", cfg.Addr()),
		zap.String("asset_api", cfg.AssetAPI.BaseURL),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New(logger.Logger, slowRequest)

	api, err := assetapi.New(assetapi.Options{
		BaseURL: cfg.AssetAPI.BaseURL,
		Token:   cfg.AssetAPI.Token,
		Timeout: cfg.AssetAPI.Timeout,
		RPS:     cfg.AssetAPI.RateLimit,
		Retries: cfg.AssetAPI.Retries,
		Logger:  logger.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create asset api client: %w", err)
	}

	resolver, err := newResolver(ctx, cfg, api, logger)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open view store: %w", err)
	}

	publicAPI := cfg.Sandbox.PublicAPIURL
	if publicAPI == "" {
		publicAPI = api.BaseURL()
	}

	// Guest fetches get their own tokenless client so they cannot trip the
	// breaker guarding resolution and /api/brand.
	guestAPI, err := api.ForGuests()
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create guest api client: %w", err)
	}

	rt := runtime.DefaultConfig()
	rt.ScriptTimeout = cfg.Sandbox.ScriptTimeout
	rt.AllowedOrigins = append(rt.AllowedOrigins, cfg.Sandbox.AllowedOrigins...)
	rt.Fetcher = guestAPI

	views := view.NewManager(view.Options{
		Resolver: resolver,
		Frame:    host.Frame{APIBaseURL: publicAPI, Runtime: rt},
		Store:    st,
		Metrics:  metrics,
		Logger:   logger.Logger,
	})
	restored, err := views.Restore(ctx)
	if err != nil {
		logger.Warn("Failed to restore views", zap.Error(err))
	} else if restored > 0 {
		logger.Info("Restored views", zap.Int("count", restored))
	}

	handlers, err := http.NewHandlers(http.Options{
		Resolver:     resolver,
		Views:        views,
		API:          api,
		PublicAPIURL: publicAPI,
		Metrics:      metrics,
		Logger:       logger.Logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	wsHandler := ws.NewHandler(views, nil, logger.Logger)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	registerRoutes(router, handlers, wsHandler)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	root, err := middleware.Gzip(router, gzipMinSize)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to build gzip handler: %w", err)
	}

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &nethttp.Server{
			Addr:              cfg.Addr(),
			Handler:           root,
			ReadHeaderTimeout: 10 * time.Second,
		},
		views:   views,
		store:   st,
		api:     api,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// registerRoutes wires every endpoint onto r.
func registerRoutes(r *gin.Engine, h *http.Handlers, wsHandler *ws.Handler) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	// Sandboxed documents for iframes
	r.GET("/sandbox/:slug", h.ServeSandbox)

	api := r.Group("/api")
	api.GET("/tools", h.ListTools)
	api.GET("/capabilities", h.ListCapabilities)
	api.GET("/brand/:capability", h.BrandData)

	// Server-side views
	api.POST("/views", h.CreateView)
	api.GET("/views", h.ListViews)
	api.GET("/views/:id", h.GetView)
	api.PUT("/views/:id/selection", h.SelectTool)
	api.DELETE("/views/:id/selection", h.ClearSelection)
	api.PUT("/views/:id/navigation", h.Navigate)
	api.DELETE("/views/:id", h.CloseView)
	api.GET("/views/:id/stream", wsHandler.HandleConnection)
}

func newResolver(ctx context.Context, cfg *config.Config, api *assetapi.Client, logger *logging.Logger) (bundle.Resolver, error) {
	if cfg.Catalog.Dir == "" {
		return bundle.NewAPIResolver(api, logger.Logger), nil
	}
	static, err := catalog.Load(ctx, cfg.Catalog.Dir, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	logger.Info("Serving tools from catalog", zap.String("dir", cfg.Catalog.Dir))
	return static, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() nethttp.Handler {
	return s.http.Handler
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	s.views.Shutdown()
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
