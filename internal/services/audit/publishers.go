package audit

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/medicaidready/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/medicaidready/internal/models"
)

// AMQPPublisher публикует записи в обменник аудита RabbitMQ.
type AMQPPublisher struct {
	ch         rabbitmq.Channel
	exchange   string
	routingKey string
}

func NewAMQPPublisher(ch rabbitmq.Channel) *AMQPPublisher {
	return &AMQPPublisher{
		ch:         ch,
		exchange:   rabbitmq.AuditExchange,
		routingKey: rabbitmq.AuditRoutingKey,
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, rec models.AuditRecord) error {
	const op = "audit.AMQPPublisher.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := rabbitmq.PublishMessage(p.ch, p.exchange, p.routingKey, rec); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Inserter пишет запись аудита в базу.
type Inserter interface {
	InsertAuditRecord(ctx context.Context, rec models.AuditRecord) error
}

// StorePublisher пишет записи напрямую в базу, когда брокер не настроен.
type StorePublisher struct {
	store Inserter
}

func NewStorePublisher(store Inserter) *StorePublisher {
	return &StorePublisher{store: store}
}

func (p *StorePublisher) Publish(ctx context.Context, rec models.AuditRecord) error {
	return p.store.InsertAuditRecord(ctx, rec)
}
