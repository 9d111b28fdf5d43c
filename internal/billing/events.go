package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/stripe/stripe-go/v79"

	"github.com/magabrotheeeer/medicaidready/internal/lib/periodend"
	"github.com/magabrotheeeer/medicaidready/internal/models"
)

// Типы событий Stripe, которые что-то меняют.
const (
	TypeCheckoutSessionCompleted = "checkout.session.completed"
	TypeSubscriptionUpdated      = "customer.subscription.updated"
	TypeSubscriptionDeleted      = "customer.subscription.deleted"
	TypeInvoicePaymentFailed     = "invoice.payment_failed"
	TypeInvoicePaid              = "invoice.paid"
	TypeInvoicePaymentSucceeded  = "invoice.payment_succeeded"
)

// ErrMalformedEvent тело события не соответствует ожидаемой форме.
var ErrMalformedEvent = errors.New("malformed event")

var validate = validator.New()

// Event разобранное событие. Конкретный тип один из:
// CheckoutCompleted, SubscriptionUpdated, SubscriptionDeleted,
// InvoicePaymentFailed, InvoicePaid, Unrecognized.
type Event interface {
	EventID() string
	EventType() string
	isEvent()
}

// Meta общие поля конверта.
type Meta struct {
	ID   string
	Type string
}

func (m Meta) EventID() string   { return m.ID }
func (m Meta) EventType() string { return m.Type }
func (Meta) isEvent()            {}

type CheckoutCompleted struct {
	Meta
	Session CheckoutSession
}

type SubscriptionUpdated struct {
	Meta
	Subscription Subscription
}

type SubscriptionDeleted struct {
	Meta
	Subscription Subscription
}

type InvoicePaymentFailed struct {
	Meta
	Invoice Invoice
}

type InvoicePaid struct {
	Meta
	Invoice Invoice
}

// Unrecognized событие, которое подтверждается без изменений.
type Unrecognized struct {
	Meta
}

// ExpandableID ссылка на объект Stripe: строка id или развёрнутый объект с полем id.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = ExpandableID(strings.TrimSpace(s))
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = ExpandableID(strings.TrimSpace(obj.ID))
	return nil
}

func (e ExpandableID) String() string { return string(e) }

// CheckoutSession объект checkout.session.
type CheckoutSession struct {
	ID              string            `json:"id" validate:"required"`
	PaymentStatus   string            `json:"payment_status"`
	Metadata        map[string]string `json:"metadata"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerDetails *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Subscription ExpandableID `json:"subscription"`
	Customer     ExpandableID `json:"customer"`
}

// Paid сообщает, что оплата прошла.
func (s CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid"
}

// SubmissionID id заявки из metadata.
func (s CheckoutSession) SubmissionID() string {
	return strings.TrimSpace(s.Metadata["submission_id"])
}

// Email плательщика: сначала customer_details, затем customer_email.
func (s CheckoutSession) Email() string {
	if s.CustomerDetails != nil {
		if e := models.NormalizeEmail(s.CustomerDetails.Email); e != "" {
			return e
		}
	}
	return models.NormalizeEmail(s.CustomerEmail)
}

// Subscription объект customer.subscription.
type Subscription struct {
	ID               string       `json:"id" validate:"required"`
	Status           string       `json:"status" validate:"required"`
	Customer         ExpandableID `json:"customer"`
	CurrentPeriodEnd any          `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd any `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// PeriodEnd окончание периода. В новых версиях API поле лежит в позициях подписки.
func (s Subscription) PeriodEnd() *time.Time {
	if t := periodend.ParsePtr(s.CurrentPeriodEnd); t != nil {
		return t
	}
	for _, item := range s.Items.Data {
		if t := periodend.ParsePtr(item.CurrentPeriodEnd); t != nil {
			return t
		}
	}
	return nil
}

// Invoice объект invoice.
type Invoice struct {
	ID            string       `json:"id" validate:"required"`
	Subscription  ExpandableID `json:"subscription"`
	Customer      ExpandableID `json:"customer"`
	CustomerEmail string       `json:"customer_email"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription ExpandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// SubscriptionID ссылка на подписку, если счёт к ней относится.
func (i Invoice) SubscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription.String()
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return i.Parent.SubscriptionDetails.Subscription.String()
	}
	return ""
}

// Email плательщика.
func (i Invoice) Email() string {
	return models.NormalizeEmail(i.CustomerEmail)
}

// Decode разбирает проверенное событие в конкретный вариант.
// Неизвестный тип даёт Unrecognized без ошибки.
func Decode(event stripe.Event) (Event, error) {
	const op = "billing.Decode"
	meta := Meta{ID: event.ID, Type: string(event.Type)}

	var raw []byte
	if event.Data != nil {
		raw = event.Data.Raw
	}

	switch meta.Type {
	case TypeCheckoutSessionCompleted:
		var ev CheckoutCompleted
		ev.Meta = meta
		if err := decodeObject(raw, &ev.Session); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, meta.Type, err)
		}
		return ev, nil
	case TypeSubscriptionUpdated:
		var ev SubscriptionUpdated
		ev.Meta = meta
		if err := decodeObject(raw, &ev.Subscription); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, meta.Type, err)
		}
		return ev, nil
	case TypeSubscriptionDeleted:
		var ev SubscriptionDeleted
		ev.Meta = meta
		if err := decodeObject(raw, &ev.Subscription); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, meta.Type, err)
		}
		return ev, nil
	case TypeInvoicePaymentFailed:
		var ev InvoicePaymentFailed
		ev.Meta = meta
		if err := decodeObject(raw, &ev.Invoice); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, meta.Type, err)
		}
		return ev, nil
	case TypeInvoicePaid, TypeInvoicePaymentSucceeded:
		var ev InvoicePaid
		ev.Meta = meta
		if err := decodeObject(raw, &ev.Invoice); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, meta.Type, err)
		}
		return ev, nil
	default:
		return Unrecognized{Meta: meta}, nil
	}
}

func decodeObject(raw []byte, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: empty data.object", ErrMalformedEvent)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}
