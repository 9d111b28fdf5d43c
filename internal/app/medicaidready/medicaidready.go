package medicaidready

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/medicaidready/internal/billing"
	"github.com/magabrotheeeer/medicaidready/internal/config"
	"github.com/magabrotheeeer/medicaidready/internal/http/handlers/billingwebhook"
	"github.com/magabrotheeeer/medicaidready/internal/http/handlers/health"
	"github.com/magabrotheeeer/medicaidready/internal/lib/identity"
	"github.com/magabrotheeeer/medicaidready/internal/lib/jwt"
	"github.com/magabrotheeeer/medicaidready/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/metrics"
	"github.com/magabrotheeeer/medicaidready/internal/migrations"
	"github.com/magabrotheeeer/medicaidready/internal/services/access"
	"github.com/magabrotheeeer/medicaidready/internal/services/audit"
	"github.com/magabrotheeeer/medicaidready/internal/services/reconcile"
	submissionservice "github.com/magabrotheeeer/medicaidready/internal/services/submission"
	"github.com/magabrotheeeer/medicaidready/internal/storage/cache"
	"github.com/magabrotheeeer/medicaidready/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	sink   *audit.AsyncSink
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New поднимает зависимости и собирает HTTP-сервер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.DB.Close()
		return nil, err
	}

	a := &App{logger: logger, db: db}

	var subCache submissionservice.Cache
	healthChecks := map[string]health.Pinger{"postgres": db}
	if cfg.AddressRedis != "" {
		a.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("cache not initialized: %w", err)
		}
		subCache = a.cache
		healthChecks["redis"] = a.cache
	} else {
		logger.Warn("redis address is empty, submission cache disabled")
	}

	m := metrics.New()
	submissions := submissionservice.New(db, subCache, logger, cfg.CacheTTL)

	publisher, err := a.auditPublisher(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.sink = audit.NewAsyncSink(publisher, logger, audit.Options{
		BufferSize:     cfg.BufferSize,
		Workers:        cfg.Workers,
		PublishTimeout: cfg.PublishTimeout,
	}, m)

	if cfg.StripeSecretKey == "" {
		logger.Warn("stripe secret key is empty, checkout approvals use fallback status")
	}
	reconciler := reconcile.New(submissions, billing.NewClientFromKey(cfg.StripeSecretKey, cfg.APITimeout), logger)
	webhook := billingwebhook.New(logger, billing.NewVerifier(cfg.WebhookSecret, cfg.WebhookTolerance), reconciler, m)

	expiry := access.NewExpiryEvaluator(submissions, logger)
	// Гейт читает мимо кэша, кэш обслуживает только статус и админские чтения.
	gate := access.NewGate(identity.Default(), submissions.Direct(), expiry, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:      logger,
		Submissions: submissions,
		Tokens:      jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Gate:        gate,
		Audit:       a.sink,
		Webhook:     webhook,
		Metrics:     m,
		Health:      healthChecks,
		RateRPS:     cfg.RateLimitRPS,
		RateBurst:   cfg.RateLimitBurst,
	})

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

// auditPublisher выбирает доставку аудита: брокер, если он настроен, иначе база.
func (a *App) auditPublisher(cfg *config.Config) (audit.Publisher, error) {
	if cfg.RabbitMQURL == "" {
		a.logger.Info("rabbitmq url is empty, audit records go directly to storage")
		return audit.NewStorePublisher(a.db), nil
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.AuditTopology())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	a.conn, a.ch = conn, ch
	return audit.NewAMQPPublisher(ch), nil
}

// Run запускает сервер и корректно останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if a.sink != nil {
			if sinkErr := a.sink.Close(timeoutCtx); sinkErr != nil {
				a.logger.Error("audit sink did not drain", sl.Err(sinkErr))
			}
		}
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Db.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
