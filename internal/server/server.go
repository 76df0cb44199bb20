// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stwalsh4118/airwave/internal/api"
	"github.com/stwalsh4118/airwave/internal/cache"
	"github.com/stwalsh4118/airwave/internal/channel"
	"github.com/stwalsh4118/airwave/internal/collection"
	"github.com/stwalsh4118/airwave/internal/config"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/middleware"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/playout"
	"github.com/stwalsh4118/airwave/internal/source"
	"github.com/stwalsh4118/airwave/internal/streaming"
)

const memoryCacheCleanupInterval = time.Minute

// Server represents the HTTP server
type Server struct {
	config          *config.Config
	db              *db.DB
	repos           *db.Repositories
	cache           cache.Cache
	closeCache      func()
	collections     *collection.CachingResolver
	sources         source.Resolver
	sessionManager  *streaming.Manager
	channelService  *channel.ChannelService
	scheduleHandler *api.ScheduleHandler
	router          *gin.Engine
	server          *http.Server
}

// New creates a new server instance and wires its dependencies
func New(ctx context.Context, cfg *config.Config, database *db.DB) (*Server, error) {
	repos := db.NewRepositories(database)
	c, closeCache := newCache(ctx, cfg.Cache)

	collections := collection.NewCachingResolver(collection.NewStoreResolver(repos), c, cfg.Cache.CollectionTTL)
	sources := newSourceResolver(cfg.Source, c, cfg.Cache.SourceTTL)

	genOpts := playout.Options{
		SeedMode: cfg.Schedule.SeedModeValue(),
		MaxDepth: cfg.Schedule.MaxDepth,
		Strict:   cfg.Schedule.Strict,
	}

	manager, err := streaming.NewManager(collections, streaming.Options{
		ScheduleDir: cfg.Schedule.Dir,
		Lookahead:   cfg.Schedule.Lookahead,
		History:     cfg.Schedule.History,
		Horizon:     cfg.Schedule.Horizon,
		MaxItems:    cfg.Schedule.MaxItems,
		MaxDepth:    cfg.Schedule.MaxDepth,
		Strict:      cfg.Schedule.Strict,
		SeedMode:    genOpts.SeedMode,
		Watch:       cfg.Schedule.Watch,
		RefreshSpec: cfg.Schedule.RefreshSpec,
		ExportDir:   cfg.Schedule.ExportDir,
	})
	if err != nil {
		closeCache()
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	s := &Server{
		config:          cfg,
		db:              database,
		repos:           repos,
		cache:           c,
		closeCache:      closeCache,
		collections:     collections,
		sources:         sources,
		sessionManager:  manager,
		channelService:  channel.NewChannelService(repos, manager, cfg.Schedule.Dir),
		scheduleHandler: api.NewScheduleHandler(collections, cfg.Schedule.Dir, cfg.Schedule.MaxItems, genOpts),
	}
	s.setupRouter()

	return s, nil
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Manager returns the channel session manager
func (s *Server) Manager() *streaming.Manager {
	return s.sessionManager
}

// newCache connects to Redis when configured, falling back to an in-process
// cache when it is unset or unreachable
func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, func()) {
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger.For("cache"))
		if err == nil {
			return rc, func() { _ = rc.Close() }
		}
		logger.Log.Warn().
			Err(err).
			Str("addr", cfg.RedisAddr).
			Msg("Redis unavailable, using in-memory cache")
	}

	mc := cache.NewMemoryCache(memoryCacheCleanupInterval)
	return mc, mc.Stop
}

// newSourceResolver builds the playable URL chain: per-kind resolvers behind
// retries and circuit breakers, behind a cache
func newSourceResolver(cfg config.SourceConfig, c cache.Cache, ttl time.Duration) source.Resolver {
	ytdlp := source.NewYtDlp(cfg.YtDlpPath, cfg.Timeout)
	if err := ytdlp.CheckInstalled(); err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("yt-dlp not available, YouTube items will not resolve")
	}

	router := source.NewRouter().
		Handle(models.SourceDirect, source.Direct{}).
		Handle(models.SourceArchiveOrg, source.NewArchiveOrg(cfg.ArchiveBaseURL, &http.Client{Timeout: cfg.Timeout})).
		Handle(models.SourceYouTube, ytdlp)

	resilient := source.NewResilient(router, source.ResilientOptions{
		MaxAttempts:      cfg.MaxAttempts,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerTimeout:   cfg.BreakerTimeout,
	})
	return source.NewCaching(resilient, c, ttl)
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create new Gin router
	s.router = gin.New()

	// Add middleware stack
	s.router.Use(middleware.RequestLogger()) // Custom zerolog request logger
	s.router.Use(gin.Recovery())             // Panic recovery
	s.router.Use(cors.Default())             // CORS support (allows all origins)

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Create API route group
	apiGroup := s.router.Group("/api")

	// Register service routes
	api.SetupHealthRoutes(apiGroup, s.db, s.sessionManager, s.cache)
	api.SetupCatalogRoutes(apiGroup, s.repos, s.collections)
	api.SetupChannelRoutes(apiGroup, s.channelService)
	api.SetupPlayoutRoutes(apiGroup, s.sessionManager, s.sources)
	api.SetupScheduleRoutes(apiGroup, s.scheduleHandler)
}

// Start puts enabled channels on air and serves HTTP until shutdown
func (s *Server) Start(ctx context.Context) error {
	// Start session manager
	if err := s.sessionManager.Open(); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}
	if _, err := s.channelService.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Str("schedule_dir", s.config.Schedule.Dir).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// Check if server was started before attempting shutdown
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	// Stop every channel session
	if s.sessionManager != nil {
		s.sessionManager.Close()
	}

	if s.closeCache != nil {
		s.closeCache()
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
