// Package access решает, есть ли у заявки доступ к защищённым чтениям.
// Истечение оплаченного периода проверяется при каждом чтении и не зависит
// от того, дошёл ли вебхук.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/medicaidready/internal/lib/periodend"
	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/models"
)

// Revoker отзывает доступ у одной заявки.
type Revoker interface {
	RevokeByID(ctx context.Context, id, reason string, patch *models.MirrorPatch) ([]string, error)
}

// ExpiryEvaluator отзывает доступ у заявок с закончившимся периодом.
type ExpiryEvaluator struct {
	revoker Revoker
	log     *slog.Logger
	now     func() time.Time
}

// NewExpiryEvaluator создаёт ExpiryEvaluator с текущим временем в качестве часов.
func NewExpiryEvaluator(revoker Revoker, log *slog.Logger) *ExpiryEvaluator {
	return &ExpiryEvaluator{
		revoker: revoker,
		log:     log,
		now:     time.Now,
	}
}

// Expired сообщает, что статус подписки хороший, но период уже закончился.
// Невалидный или пустой период ограничением не считается.
func (e *ExpiryEvaluator) Expired(sub *models.Submission) bool {
	if sub == nil || !models.IsGoodSubscriptionStatus(sub.SubscriptionStatusValue()) {
		return false
	}
	return periodend.Elapsed(sub.CurrentPeriodEnd, e.now())
}

// Evaluate при истечении периода отзывает доступ с причиной period_end_elapsed.
// Возвращает (true, err), если период истёк, но запись отзыва не удалась.
func (e *ExpiryEvaluator) Evaluate(ctx context.Context, sub *models.Submission) (bool, error) {
	const op = "access.ExpiryEvaluator.Evaluate"
	if !e.Expired(sub) {
		return false, nil
	}

	ids, err := e.revoker.RevokeByID(ctx, sub.ID, models.RevokePeriodEndElapsed, nil)
	if err != nil {
		e.log.Error("failed to auto-revoke expired submission",
			sl.Op(op),
			slog.String("submission_id", sub.ID),
			slog.Time("current_period_end", *sub.CurrentPeriodEnd),
			sl.Err(err),
		)
		return true, fmt.Errorf("%s: %w", op, err)
	}
	e.log.Info("auto-revoked expired submission",
		slog.String("submission_id", sub.ID),
		slog.Time("current_period_end", *sub.CurrentPeriodEnd),
		slog.Int("rows", len(ids)),
	)
	return true, nil
}
