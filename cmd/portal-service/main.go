package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carb/portal_service/internal/api"
	"github.com/carb/portal_service/internal/cache"
	"github.com/carb/portal_service/internal/config"
	"github.com/carb/portal_service/internal/imagestore"
	"github.com/carb/portal_service/internal/logging"
	"github.com/carb/portal_service/internal/service"
	"github.com/carb/portal_service/internal/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err := run(cfg, logger); err != nil {
		logger.Error(context.Background(), "server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.SlogLogger) error {
	ctx := context.Background()

	dialect, err := store.ParseDialect(cfg.DB.Dialect)
	if err != nil {
		return err
	}
	repo, err := store.Open(dialect, cfg.DataSource())
	if err != nil {
		return err
	}
	defer repo.Close()

	// the db might still be starting in docker
	err = repo.PingWithRetry(ctx, cfg.DB.ConnectAttempts, cfg.DB.ConnectDelay, func(attempt int, err error) {
		logger.Warn(ctx, "waiting for db", "attempt", attempt, "err", err)
	})
	if err != nil {
		return err
	}
	if err := repo.RunMigrations(ctx); err != nil {
		return err
	}

	var listings service.Cache
	if cfg.RedisAddr != "" && cfg.CacheTTL > 0 {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn(ctx, "redis ping failed, listing cache disabled", "addr", cfg.RedisAddr, "err", err)
		} else {
			listings = cache.NewRedisCache(rdb)
		}
	}

	images, err := newImageStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	svc := service.NewService(repo, listings, images, logger.With("component", "service"))
	svc.SetCacheTTL(cfg.CacheTTL)

	if cfg.APIKey == "" {
		logger.Warn(ctx, "API_KEY is not set; /api/upload will answer 500 until it is")
	}

	staticDir := ""
	if cfg.ServeStatic {
		staticDir = cfg.StaticDir
		logger.Info(ctx, "standalone mode: serving front-end", "dir", staticDir)
	}

	handler := api.NewHandler(svc, api.Options{APIKey: cfg.APIKey, Mode: cfg.Mode()}, logger.With("component", "api"))
	router := api.NewRouter(handler, staticDir, logger.With("component", "http"))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", httpServer.Addr, "mode", cfg.Mode(), "db", cfg.DB.Dialect)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-stop:
	}

	logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newImageStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (imagestore.Store, error) {
	switch cfg.UploadBackend {
	case "s3":
		st, err := imagestore.NewS3Store(ctx, imagestore.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "uploads stored in s3", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
		return st, nil
	case "local":
		st, err := imagestore.NewLocalStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "uploads stored on disk", "dir", st.Root())
		return st, nil
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.UploadBackend)
	}
}
