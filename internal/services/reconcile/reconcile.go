// Package reconcile применяет проверенные события Stripe к записям заявок.
// Ошибки сверки только логируются: вызывающий всегда подтверждает получение,
// чтобы Stripe не повторял доставку бесконечно.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/medicaidready/internal/billing"
	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/models"
	"github.com/magabrotheeeer/medicaidready/internal/services/submission"
)

// Outcome итог обработки события, используется в логах и метриках.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeFailed    Outcome = "failed"
)

// Submissions операции с заявками, которые нужны сверке.
type Submissions interface {
	Approve(ctx context.Context, id string, patch *models.MirrorPatch) ([]string, error)
	ApproveBySubscriptionID(ctx context.Context, subscriptionID string, patch *models.MirrorPatch) ([]string, error)
	ApproveLatestByEmail(ctx context.Context, email string, patch *models.MirrorPatch) ([]string, error)
	RevokeBySubscriptionID(ctx context.Context, subscriptionID, reason string, patch *models.MirrorPatch) ([]string, error)
	RevokeLatestByEmail(ctx context.Context, email, reason string, patch *models.MirrorPatch) ([]string, error)
	HasSubscription(ctx context.Context, subscriptionID string) (bool, error)
}

// SubscriptionFetcher читает живое состояние подписки у Stripe.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*billing.SubscriptionSnapshot, error)
}

// Service маршрутизирует события по обработчикам.
type Service struct {
	submissions Submissions
	provider    SubscriptionFetcher
	log         *slog.Logger
}

// New создаёт Service.
func New(submissions Submissions, provider SubscriptionFetcher, log *slog.Logger) *Service {
	return &Service{
		submissions: submissions,
		provider:    provider,
		log:         log,
	}
}

// Handle обрабатывает одно событие.
func (s *Service) Handle(ctx context.Context, event billing.Event) Outcome {
	log := s.log.With(slog.String("event_id", event.EventID()), slog.String("event_type", event.EventType()))

	switch ev := event.(type) {
	case billing.CheckoutCompleted:
		return s.checkoutCompleted(ctx, log, ev.Session)
	case billing.SubscriptionUpdated:
		return s.subscriptionUpdated(ctx, log, ev.Subscription)
	case billing.SubscriptionDeleted:
		return s.subscriptionDeleted(ctx, log, ev.Subscription)
	case billing.InvoicePaymentFailed:
		return s.invoicePaymentFailed(ctx, log, ev.Invoice)
	case billing.InvoicePaid:
		return s.invoicePaid(ctx, log, ev.Invoice)
	default:
		log.Debug("event acknowledged without changes")
		return OutcomeIgnored
	}
}

func (s *Service) checkoutCompleted(ctx context.Context, log *slog.Logger, session billing.CheckoutSession) Outcome {
	const op = "reconcile.checkoutCompleted"
	log = log.With(slog.String("session_id", session.ID), slog.String("submission_id", session.SubmissionID()))

	if !session.Paid() {
		log.Info("checkout completed without payment", slog.String("payment_status", session.PaymentStatus))
		return OutcomeIgnored
	}

	// Статус остаётся active, если подписку не удалось прочитать.
	patch := &models.MirrorPatch{
		SubscriptionID:     models.StringPtr(session.Subscription.String()),
		CustomerID:         models.StringPtr(session.Customer.String()),
		SubscriptionStatus: models.StringPtr(models.SubscriptionActive),
	}
	if subID := session.Subscription.String(); subID != "" {
		snap, err := s.provider.GetSubscription(ctx, subID)
		if err != nil {
			log.Error("failed to fetch subscription, approving with fallback status",
				sl.Op(op), slog.String("subscription_id", subID), sl.Err(err))
		} else {
			applySnapshot(patch, snap)
		}
	}

	if id := session.SubmissionID(); id != "" {
		ids, err := s.submissions.Approve(ctx, id, patch)
		if err != nil {
			log.Error("failed to approve submission", sl.Op(op), sl.Err(err))
			return OutcomeFailed
		}
		if len(ids) > 0 {
			return OutcomeApplied
		}
		log.Warn("submission from metadata not found, falling back to email")
	}

	return s.approveByEmail(ctx, log, op, session.Email(), patch)
}

func applySnapshot(patch *models.MirrorPatch, snap *billing.SubscriptionSnapshot) {
	if snap == nil {
		return
	}
	if v := models.StringPtr(snap.Status); v != nil {
		patch.SubscriptionStatus = v
	}
	if v := models.StringPtr(snap.CustomerID); v != nil {
		patch.CustomerID = v
	}
	if v := models.StringPtr(snap.ID); v != nil {
		patch.SubscriptionID = v
	}
	if snap.CurrentPeriodEnd != nil {
		patch.CurrentPeriodEnd = snap.CurrentPeriodEnd
	}
}

func (s *Service) subscriptionUpdated(ctx context.Context, log *slog.Logger, sub billing.Subscription) Outcome {
	const op = "reconcile.subscriptionUpdated"
	log = log.With(slog.String("subscription_id", sub.ID), slog.String("status", sub.Status))

	patch := &models.MirrorPatch{
		CustomerID:         models.StringPtr(sub.Customer.String()),
		SubscriptionStatus: models.StringPtr(sub.Status),
		CurrentPeriodEnd:   sub.PeriodEnd(),
	}

	var (
		ids []string
		err error
	)
	if models.IsGoodSubscriptionStatus(sub.Status) {
		ids, err = s.submissions.ApproveBySubscriptionID(ctx, sub.ID, patch)
	} else {
		ids, err = s.submissions.RevokeBySubscriptionID(ctx, sub.ID, models.RevokeSubscriptionStatus(sub.Status), patch)
	}
	return s.result(log, op, ids, err)
}

func (s *Service) subscriptionDeleted(ctx context.Context, log *slog.Logger, sub billing.Subscription) Outcome {
	const op = "reconcile.subscriptionDeleted"
	log = log.With(slog.String("subscription_id", sub.ID))

	patch := &models.MirrorPatch{
		SubscriptionStatus: models.StringPtr(models.SubscriptionCanceled),
		CurrentPeriodEnd:   sub.PeriodEnd(),
	}
	ids, err := s.submissions.RevokeBySubscriptionID(ctx, sub.ID, models.RevokeSubscriptionDeleted, patch)
	return s.result(log, op, ids, err)
}

func (s *Service) invoicePaymentFailed(ctx context.Context, log *slog.Logger, inv billing.Invoice) Outcome {
	const op = "reconcile.invoicePaymentFailed"
	subID := inv.SubscriptionID()
	log = log.With(slog.String("invoice_id", inv.ID), slog.String("subscription_id", subID))

	patch := &models.MirrorPatch{SubscriptionStatus: models.StringPtr(models.SubscriptionPastDue)}

	if subID != "" {
		outcome, matched := s.bySubscription(ctx, log, op, subID, func() ([]string, error) {
			return s.submissions.RevokeBySubscriptionID(ctx, subID, models.RevokeInvoicePaymentFailed, patch)
		})
		if matched {
			return outcome
		}
		log.Warn("no submission for subscription, falling back to email")
	}

	email := inv.Email()
	if email == "" {
		log.Warn("invoice has neither matching subscription nor email")
		return OutcomeUnmatched
	}
	ids, err := s.submissions.RevokeLatestByEmail(ctx, email, models.RevokeInvoicePaymentFailedByEmail, patch)
	return s.result(log.With(slog.String("email", email)), op, ids, err)
}

func (s *Service) invoicePaid(ctx context.Context, log *slog.Logger, inv billing.Invoice) Outcome {
	const op = "reconcile.invoicePaid"
	subID := inv.SubscriptionID()
	log = log.With(slog.String("invoice_id", inv.ID), slog.String("subscription_id", subID))

	patch := &models.MirrorPatch{
		SubscriptionStatus: models.StringPtr(models.SubscriptionActive),
		CustomerID:         models.StringPtr(inv.Customer.String()),
	}

	if subID != "" {
		outcome, matched := s.bySubscription(ctx, log, op, subID, func() ([]string, error) {
			return s.submissions.ApproveBySubscriptionID(ctx, subID, patch)
		})
		if matched {
			return outcome
		}
		log.Warn("no submission for subscription, falling back to email")
		patch.SubscriptionID = models.StringPtr(subID)
	}

	return s.approveByEmail(ctx, log, op, inv.Email(), patch)
}

// bySubscription применяет запись к строкам подписки. matched=false значит,
// что ни одна строка не несёт subscriptionID и можно искать заявку по email.
// Пустой результат при существующих строках означает, что они уже в целевом
// состоянии: повторная или запоздавшая доставка не уходит в fallback.
func (s *Service) bySubscription(ctx context.Context, log *slog.Logger, op, subscriptionID string,
	write func() ([]string, error),
) (Outcome, bool) {
	ids, err := write()
	if err != nil {
		log.Error("failed to write by subscription", sl.Op(op), sl.Err(err))
		return OutcomeFailed, true
	}
	if len(ids) > 0 {
		log.Info("submission reconciled", sl.Op(op), slog.Any("ids", ids))
		return OutcomeApplied, true
	}

	known, err := s.submissions.HasSubscription(ctx, subscriptionID)
	if err != nil {
		log.Error("failed to check subscription rows", sl.Op(op), sl.Err(err))
		return OutcomeFailed, true
	}
	if known {
		log.Info("subscription rows already reconciled", sl.Op(op))
		return OutcomeIgnored, true
	}
	return "", false
}

func (s *Service) approveByEmail(ctx context.Context, log *slog.Logger, op, email string, patch *models.MirrorPatch) Outcome {
	if email == "" {
		log.Warn("no submission id and no email to resolve submission")
		return OutcomeUnmatched
	}
	ids, err := s.submissions.ApproveLatestByEmail(ctx, email, patch)
	return s.result(log.With(slog.String("email", email)), op, ids, err)
}

func (s *Service) result(log *slog.Logger, op string, ids []string, err error) Outcome {
	switch {
	case submission.IsNotFound(err):
		log.Warn("no submission to reconcile", sl.Op(op))
		return OutcomeUnmatched
	case err != nil:
		log.Error("failed to reconcile submission", sl.Op(op), sl.Err(err))
		return OutcomeFailed
	case len(ids) == 0:
		log.Warn("event matched no rows", sl.Op(op))
		return OutcomeUnmatched
	default:
		log.Info("submission reconciled", sl.Op(op), slog.Any("ids", ids))
		return OutcomeApplied
	}
}
