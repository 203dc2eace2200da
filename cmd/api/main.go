package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"credentialing/api/internal/app"
	"credentialing/api/internal/blob"
	"credentialing/api/internal/config"
	"credentialing/api/internal/export"
	"credentialing/api/internal/fields"
	"credentialing/api/internal/gitrepo"
	"credentialing/api/internal/logging"
	"credentialing/api/internal/metrics"
	"credentialing/api/internal/querycache"
	"credentialing/api/internal/search"
	"credentialing/api/internal/session"
	"credentialing/api/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.Must(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()
	ctx := context.Background()

	pool := store.DefaultPool()
	pool.MaxOpen, pool.MaxIdle = cfg.DBMaxOpen, cfg.DBMaxIdle
	db, err := store.Open(ctx, cfg.DatabaseURL, pool)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	applied, err := store.Migrate(ctx, db, cfg.MigrationsDir)
	if err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}
	if len(applied) > 0 {
		logger.Info("applied migrations", zap.Strings("versions", applied))
	}

	registry, err := fields.Default()
	if err != nil {
		logger.Fatal("field configuration invalid", zap.Error(err))
	}

	m := metrics.New()
	cacheOpts := []querycache.Option{
		querycache.WithLogger(logger),
		querycache.WithLookupHooks(m.CacheHit, m.CacheMiss),
	}

	var (
		cache  *querycache.Cache
		tokens app.TokenStore
	)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		client, err := session.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		defer client.Close()
		logger.Info("using redis for query cache and sessions")
		cache = querycache.New(querycache.NewRedis(client, "credentialing:query:"), cfg.CacheTTL, cacheOpts...)
		tokens = session.NewRedisStoreWithClient(client)
	} else {
		logger.Info("using in-memory query cache and sessions")
		cache = querycache.New(querycache.NewMemory(), cfg.CacheTTL, cacheOpts...)
		tokens = session.NewMemoryStore()
	}

	var blobs blob.Store
	if strings.TrimSpace(cfg.StorageAccessKey) != "" {
		minioStore, err := blob.NewMinio(ctx, blob.MinioConfig{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			Bucket:    cfg.StorageBucket,
			UseSSL:    cfg.StorageUseSSL,
		})
		if err != nil {
			logger.Fatal("object storage connection failed", zap.Error(err))
		}
		blobs = minioStore
	} else {
		logger.Warn("STORAGE_ACCESS_KEY not set, documents are kept in memory")
		blobs = blob.NewMemory()
	}

	dataStore := store.NewPostgresStore(db)
	pgfts := search.NewPgFTS(db)
	var searchService *search.Service
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
		searchService = search.NewService(meiliClient, pgfts, logger)
	} else {
		searchService = search.NewService(nil, pgfts, logger)
	}
	go searchService.ReindexAll(ctx)

	service := app.New(cfg, app.Deps{
		Store:   dataStore,
		Cache:   cache,
		Blobs:   blobs,
		Tokens:  tokens,
		Search:  searchService,
		Fields:  registry,
		Branch:  gitrepo.New(cfg.GitRepoDir, cfg.GitBranch),
		Reports: export.NewService(export.WithBrowser(cfg.ChromePath)),
		Metrics: m,
		Logger:  logger,
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("credentialing API listening", zap.String("addr", cfg.Addr), zap.String("branch", service.CurrentBranch()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
