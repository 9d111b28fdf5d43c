// Package auditwriter потребитель очереди аудита: сохраняет решения гейта
// доступа в журнал access_audit_log.
package auditwriter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/medicaidready/internal/config"
	"github.com/magabrotheeeer/medicaidready/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/services/audit"
	"github.com/magabrotheeeer/medicaidready/internal/storage/repository"
)

type App struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	db          *repository.Storage
	writer      *audit.Writer
	concurrency int
	logger      *slog.Logger
}

func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("rabbitmq url is not configured")
	}
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := repository.CheckDatabaseReady(db); err != nil {
		_ = db.DB.Close()
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.AuditTopology())
	if err != nil {
		_ = conn.Close()
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	return &App{
		conn:        conn,
		ch:          ch,
		db:          db,
		writer:      audit.NewWriter(db, logger, cfg.PublishTimeout),
		concurrency: cfg.Workers,
		logger:      logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.AuditQueue, a.concurrency, a.writer.Consume)
	if err != nil {
		a.logger.Error("failed to start audit consumer", sl.Err(err))
		a.close()
		return err
	}

	<-ctx.Done()
	a.logger.Info("audit writer shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
