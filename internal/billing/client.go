package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/magabrotheeeer/medicaidready/internal/lib/periodend"
)

// ErrNotConfigured ключ Stripe не задан.
var ErrNotConfigured = errors.New("stripe client is not configured")

// SubscriptionSnapshot живое состояние подписки у Stripe.
type SubscriptionSnapshot struct {
	ID               string
	CustomerID       string
	Status           string
	CurrentPeriodEnd *time.Time
}

// SubscriptionGetter часть API Stripe, которой пользуется Client.
type SubscriptionGetter interface {
	Get(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

// Client читает подписки через явно созданный экземпляр API, без глобального ключа.
type Client struct {
	subs SubscriptionGetter
}

// NewClient создаёт клиент поверх готового client.API.
func NewClient(api *client.API) *Client {
	if api == nil {
		return &Client{}
	}
	return &Client{subs: api.Subscriptions}
}

// NewClientFromKey создаёт client.API с HTTP-клиентом с таймаутом.
// Пустой ключ даёт клиент, который всегда возвращает ErrNotConfigured.
func NewClientFromKey(secretKey string, timeout time.Duration) *Client {
	if secretKey == "" {
		return &Client{}
	}
	httpClient := &http.Client{Timeout: timeout}
	return NewClient(client.New(secretKey, stripe.NewBackends(httpClient)))
}

// GetSubscription возвращает снимок подписки.
func (c *Client) GetSubscription(ctx context.Context, id string) (*SubscriptionSnapshot, error) {
	const op = "billing.GetSubscription"
	if c.subs == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.subs.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	snap := &SubscriptionSnapshot{
		ID:               sub.ID,
		Status:           string(sub.Status),
		CurrentPeriodEnd: periodend.ParsePtr(sub.CurrentPeriodEnd),
	}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	return snap, nil
}
