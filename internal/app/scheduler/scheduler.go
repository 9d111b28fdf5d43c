// Package scheduler приложение фонового отзыва доступа у заявок с истёкшим периодом.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/medicaidready/internal/config"
	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/services/access"
	schedulerservice "github.com/magabrotheeeer/medicaidready/internal/services/scheduler"
	submissionservice "github.com/magabrotheeeer/medicaidready/internal/services/submission"
	"github.com/magabrotheeeer/medicaidready/internal/storage/cache"
	"github.com/magabrotheeeer/medicaidready/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	sweeper *schedulerservice.SweeperService
	db      *repository.Storage
	cache   *cache.Cache
	logger  *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(db); err != nil {
		_ = db.DB.Close()
		return nil, err
	}

	a := &App{db: db, logger: logger}

	// Кэш нужен только для инвалидации ключей отозванных заявок.
	var subCache submissionservice.Cache
	if cfg.AddressRedis != "" {
		a.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			_ = db.DB.Close()
			return nil, fmt.Errorf("cache not initialized: %w", err)
		}
		subCache = a.cache
	}

	submissions := submissionservice.New(db, subCache, logger, cfg.CacheTTL)
	expiry := access.NewExpiryEvaluator(submissions, logger)
	a.sweeper = schedulerservice.NewSweeperService(db, expiry, nil, logger, cfg.Interval, cfg.BatchSize)
	return a, nil
}

// Run запускает планировщик и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.sweeper.Run(ctx)

	a.logger.Info("shutting down scheduler service")
	if a.cache != nil {
		if err := a.cache.Db.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	return nil
}
