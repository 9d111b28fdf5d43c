package access

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/magabrotheeeer/medicaidready/internal/lib/identity"
	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/models"
	"github.com/magabrotheeeer/medicaidready/internal/services/submission"
)

// Причины решений гейта.
const (
	ReasonOK                    = "ok"
	ReasonMissingSubmissionID   = "missing_submission_id"
	ReasonLookupFailed          = "access_gate_lookup_failed"
	ReasonSubmissionNotFound    = "submission_not_found"
	ReasonAccessRevoked         = "access_revoked"
	ReasonNotApproved           = "not_approved"
	ReasonSubscriptionPeriodEnd = "subscription_period_ended"
	ReasonAutoRevokeFailed      = "access_auto_revoke_failed"
	ReasonSubscriptionInactive  = "subscription_inactive"
)

// Decision результат проверки доступа.
type Decision struct {
	Allowed      bool
	SubmissionID string
	Reason       string
	HTTPStatus   int
}

func deny(id, reason string, status int) Decision {
	return Decision{SubmissionID: id, Reason: reason, HTTPStatus: status}
}

// Store читает заявку и отзывает доступ при истечении периода.
type Store interface {
	Revoker
	FindByID(ctx context.Context, id string) (*models.Submission, error)
}

// Gate синхронная проверка доступа для защищённых чтений.
type Gate struct {
	resolver *identity.Resolver
	store    Store
	expiry   *ExpiryEvaluator
	log      *slog.Logger
}

// NewGate создаёт Gate.
func NewGate(resolver *identity.Resolver, store Store, expiry *ExpiryEvaluator, log *slog.Logger) *Gate {
	return &Gate{
		resolver: resolver,
		store:    store,
		expiry:   expiry,
		log:      log,
	}
}

// Check принимает решение по запросу. Порядок проверок важен:
// отзыв всегда запрещает доступ, независимо от остальных полей.
func (g *Gate) Check(ctx context.Context, r *http.Request) Decision {
	const op = "access.Gate.Check"

	id, ok := g.resolver.Resolve(r)
	if !ok {
		return deny("", ReasonMissingSubmissionID, http.StatusForbidden)
	}

	sub, err := g.store.FindByID(ctx, id)
	if err != nil {
		if submission.IsNotFound(err) {
			return deny(id, ReasonSubmissionNotFound, http.StatusForbidden)
		}
		g.log.Error("access gate lookup failed", sl.Op(op), slog.String("submission_id", id), sl.Err(err))
		return deny(id, ReasonLookupFailed, http.StatusInternalServerError)
	}

	if sub.Revoked() {
		return deny(id, ReasonAccessRevoked, http.StatusForbidden)
	}
	if sub.Status != models.StatusApproved {
		return deny(id, ReasonNotApproved, http.StatusForbidden)
	}

	expired, err := g.expiry.Evaluate(ctx, sub)
	if expired {
		if err != nil {
			return deny(id, ReasonAutoRevokeFailed, http.StatusInternalServerError)
		}
		return deny(id, ReasonSubscriptionPeriodEnd, http.StatusForbidden)
	}

	if !models.IsGoodSubscriptionStatus(sub.SubscriptionStatusValue()) {
		return deny(id, ReasonSubscriptionInactive, http.StatusForbidden)
	}

	return Decision{Allowed: true, SubmissionID: id, Reason: ReasonOK, HTTPStatus: http.StatusOK}
}
