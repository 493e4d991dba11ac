package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"VibingStorage/cache"
	"VibingStorage/config"
	"VibingStorage/core/audio"
	"VibingStorage/db"
	"VibingStorage/logger"
	"VibingStorage/repository"
	"VibingStorage/storage"

	"github.com/gorilla/mux"
)

// Start connects every collaborator named in cfg and serves until SIGINT or
// SIGTERM.
func Start(cfg *config.Config) error {
	ctx := context.Background()

	pool, err := db.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.AutoMigrate(); err != nil {
		return err
	}

	store, extractor, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}

	var guard cache.VoteGuard
	if cfg.RedisEnabled() {
		client, err := cache.ConnectRedis(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer client.Close()
		guard = cache.NewRedisVoteGuard(client, cfg.VoteCooldown)
		logger.Info("Successfully connected to Redis")
	} else {
		guard = cache.NewMemoryVoteGuard(cfg.VoteCooldown)
		logger.Warn("REDIS_HOST not set, vote cooldowns are kept in memory")
	}

	apiHandler := NewAPIHandler(
		repository.NewTrackRepository(pool),
		repository.NewVibeRepository(pool),
		store,
		extractor,
		guard,
		cfg,
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:     NewRouter(apiHandler),
		ReadTimeout: 30 * time.Second,
		// 0: audio streams last as long as the track.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			logger.String("addr", server.Addr),
			logger.String("storage", store.Name()),
			logger.Bool("auth", cfg.AuthEnabled()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// OpenStore builds the configured storage provider. Tags can only be read
// from local files, so the extractor is nil for the MinIO backend.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Provider, repository.MetadataExtractor, error) {
	switch cfg.StorageBackend {
	case config.StorageMinio:
		store, err := storage.NewMinio(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize MinIO: %w", err)
		}
		return store, nil, nil
	default:
		store, err := storage.NewLocal(cfg.ResourceDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open resource dir: %w", err)
		}
		return store, audio.NewID3Extractor(store.Root()), nil
	}
}

// NewRouter registers every route on a gorilla/mux router.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger, corsMiddleware(h.cfg.AllowedOrigins))

	router.HandleFunc("/", h.RootHandler).Methods(http.MethodGet)

	// OPTIONS is listed once per path so preflights reach the CORS middleware.
	router.HandleFunc("/tracks", h.GetTracksHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/tracks", h.AdminMiddleware(h.PatchTrackHandler)).Methods(http.MethodPatch)
	router.HandleFunc("/tracks", h.AdminMiddleware(h.DeleteTrackHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/tracks/upload", h.AdminMiddleware(h.UploadTrackHandler)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/tracks/vote", h.VoteHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/tracks/download", h.DownloadHandler).Methods(http.MethodGet)
	router.HandleFunc("/tracks/stream", h.StreamHandler).Methods(http.MethodGet)
	router.HandleFunc("/tracks/{id:[0-9]+}", h.GetTrackHandler).Methods(http.MethodGet)

	router.HandleFunc("/vibes", h.GetVibesHandler).Methods(http.MethodGet)
	router.HandleFunc("/vibe-groups", h.GetVibeGroupsHandler).Methods(http.MethodGet)

	if h.tokens != nil {
		router.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost, http.MethodOptions)
	}
	return router
}
