package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carb/portal_service/internal/cache"
	"github.com/carb/portal_service/internal/config"
	"github.com/carb/portal_service/internal/seed"
	"github.com/carb/portal_service/internal/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	fixturePath := flag.String("fixture", "seed.yaml", "YAML file with avisos, vagas, acervo and noticias")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	fixture, err := seed.Load(*fixturePath)
	if err != nil {
		log.Fatalf("fixture: %v", err)
	}

	dialect, err := store.ParseDialect(cfg.DB.Dialect)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	repo, err := store.Open(dialect, cfg.DataSource())
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	err = repo.PingWithRetry(ctx, cfg.DB.ConnectAttempts, cfg.DB.ConnectDelay, func(attempt int, err error) {
		log.Printf("waiting for db: attempt %d, err: %v", attempt, err)
	})
	if err != nil {
		log.Fatalf("could not connect to db: %v", err)
	}
	if err := repo.RunMigrations(ctx); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	n, err := seed.Apply(ctx, repo, fixture)
	if err != nil {
		log.Fatalf("seed: %v (created so far: %+v)", err, n)
	}
	log.Printf("seeded %d avisos, %d vagas, %d acervo, %d noticias",
		n.Announcements, n.JobPostings, n.ArchiveItems, n.Articles)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := seed.Invalidate(cctx, cache.NewRedisCache(rdb)); err != nil {
			log.Printf("warning: %v (cached listings expire after %s)", err, cfg.CacheTTL)
		}
	}
}
