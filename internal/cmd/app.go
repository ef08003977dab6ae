package cmd

import (
	"context"
	"fmt"

	"catalogsync/internal/config"
	"catalogsync/internal/erp"
	"catalogsync/internal/infra"
	"catalogsync/internal/repository"
	"catalogsync/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// app holds the infrastructure shared by the serve and sync commands.
type app struct {
	cfg  *config.Config
	db   *gorm.DB
	rdb  *redis.Client
	erp  *erp.Client // nil when ERP_BASE_URL is empty
	sync service.SyncService
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := infra.Migrate(ctx, db); err != nil {
		return nil, err
	}

	rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if rdb == nil {
		log.Warn().Msg("REDIS_URL is empty, caching disabled")
	}

	a := &app{cfg: cfg, db: db, rdb: rdb}
	if cfg.ERPBaseURL == "" {
		log.Warn().Msg("ERP_BASE_URL is empty, synchronization disabled")
		return a, nil
	}

	client, err := erp.NewClient(erp.ClientConfig{
		BaseURL:    cfg.ERPBaseURL,
		ListPath:   cfg.ERPListPath,
		DetailPath: cfg.ERPDetailPath,
		Credentials: erp.Credentials{
			Username: cfg.ERPUsername,
			Password: cfg.ERPPassword,
			APIKey:   cfg.ERPAPIKey,
			APIToken: cfg.ERPAPIToken,
		},
		Timeout:     cfg.ERPTimeout(),
		Retries:     cfg.ERPRetries,
		BaseBackoff: cfg.ERPBackoff(),
	})
	if err != nil {
		return nil, err
	}
	sizes, _ := cfg.PageSizes() // validated by config.Load
	pager := erp.NewPager(client, sizes, cfg.StepDownPause())

	a.erp = client
	a.sync = service.NewSyncService(pager, client, repository.NewProductRepository(db), rdb, service.SyncOptions{
		ItemDelay:        cfg.SyncItemDelay(),
		BreakerThreshold: cfg.SyncBreakerThreshold,
	})
	return a, nil
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
