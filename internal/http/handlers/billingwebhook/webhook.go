// Package billingwebhook принимает вебхуки Stripe.
//
// Подпись проверяется по сырому телу. После успешной проверки Stripe всегда
// получает 200: ошибки сверки логируются и не возвращаются, иначе Stripe
// будет бесконечно повторять доставку.
package billingwebhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/stripe/stripe-go/v79"

	"github.com/magabrotheeeer/medicaidready/internal/billing"
	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/services/reconcile"
)

// MaxBodyBytes предел размера тела вебхука.
const MaxBodyBytes = 1 << 20

const (
	errInvalidSignature = "invalid_signature"
	errHandlerFailed    = "webhook_handler_failed"
)

// Verifier проверяет подпись и разбирает конверт события.
type Verifier interface {
	Verify(payload []byte, sigHeader string) (stripe.Event, error)
}

// Router применяет событие к заявкам.
type Router interface {
	Handle(ctx context.Context, event billing.Event) reconcile.Outcome
}

// EventCounter считает обработанные события.
type EventCounter interface {
	WebhookEvent(eventType, outcome string)
}

// Ack тело ответа Stripe.
type Ack struct {
	Received bool   `json:"received"`
	Error    string `json:"error,omitempty"`
}

type Handler struct {
	log      *slog.Logger
	verifier Verifier
	router   Router
	counter  EventCounter
}

// New создаёт Handler. counter может быть nil.
func New(log *slog.Logger, verifier Verifier, router Router, counter EventCounter) *Handler {
	return &Handler{
		log:      log,
		verifier: verifier,
		router:   router,
		counter:  counter,
	}
}

// ServeHTTP godoc
// @Summary      Вебхук Stripe
// @Description  Проверяет подпись Stripe-Signature и применяет событие к заявкам
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature  header  string  true  "Подпись Stripe"
// @Success      200  {object}  Ack
// @Failure      400  {object}  Ack
// @Failure      500  {object}  Ack
// @Router       /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billingwebhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("webhook body too large", slog.Int64("limit", tooLarge.Limit))
		} else {
			log.Error("failed to read webhook body", sl.Err(err))
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Ack{Error: errInvalidSignature})
		return
	}

	event, err := h.verifier.Verify(body, r.Header.Get(billing.SignatureHeader))
	if err != nil {
		log.Warn("webhook signature verification failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Ack{Error: errInvalidSignature})
		return
	}
	log = log.With(slog.String("event_id", event.ID), slog.String("event_type", string(event.Type)))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("webhook handler panicked", slog.Any("panic", rec))
			h.count(string(event.Type), reconcile.OutcomeFailed)
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, Ack{Error: errHandlerFailed})
		}
	}()

	outcome := h.dispatch(context.WithoutCancel(r.Context()), log, event)
	h.count(string(event.Type), outcome)
	log.Info("webhook processed", slog.String("outcome", string(outcome)))

	render.JSON(w, r, Ack{Received: true})
}

func (h *Handler) dispatch(ctx context.Context, log *slog.Logger, event stripe.Event) reconcile.Outcome {
	decoded, err := billing.Decode(event)
	if err != nil {
		log.Error("failed to decode webhook event", sl.Err(err))
		return reconcile.OutcomeFailed
	}
	return h.router.Handle(ctx, decoded)
}

func (h *Handler) count(eventType string, outcome reconcile.Outcome) {
	if h.counter != nil {
		h.counter.WebhookEvent(eventType, string(outcome))
	}
}
