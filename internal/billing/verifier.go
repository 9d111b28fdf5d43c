// Package billing граница со Stripe: проверка подписи вебхуков,
// разбор событий в явные варианты и чтение подписки через API.
package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// SignatureHeader заголовок с подписью Stripe.
const SignatureHeader = "Stripe-Signature"

// ErrInvalidSignature подпись не прошла проверку или секрет не настроен.
var ErrInvalidSignature = errors.New("invalid signature")

// Verifier проверяет подпись вебхука общим секретом.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier создаёт Verifier. tolerance допустимый возраст подписи.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

// Verify проверяет подпись и разбирает конверт события.
// Любая ошибка оборачивает ErrInvalidSignature.
func (v *Verifier) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
	const op = "billing.Verify"
	if v.secret == "" {
		return stripe.Event{}, fmt.Errorf("%s: webhook secret is not configured: %w", op, ErrInvalidSignature)
	}
	if sigHeader == "" {
		return stripe.Event{}, fmt.Errorf("%s: missing %s header: %w", op, SignatureHeader, ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidSignature, err)
	}
	return event, nil
}
