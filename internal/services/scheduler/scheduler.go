// Package scheduler периодически отзывает доступ у заявок, чей оплаченный
// период закончился, а вебхук об этом так и не пришёл.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/models"
)

type SubmissionRepository interface {
	ListElapsedSubmissions(ctx context.Context, now time.Time, limit int) ([]*models.Submission, error)
}

// Evaluator отзывает доступ у одной заявки, если период истёк.
type Evaluator interface {
	Evaluate(ctx context.Context, sub *models.Submission) (bool, error)
}

// RevokedCounter считает отозванные заявки.
type RevokedCounter interface {
	SweeperRevoked(n int)
}

type SweeperService struct {
	repo      SubmissionRepository
	evaluator Evaluator
	counter   RevokedCounter
	log       *slog.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewSweeperService создает новый экземпляр SweeperService. counter может быть nil.
func NewSweeperService(repo SubmissionRepository, evaluator Evaluator, counter RevokedCounter, log *slog.Logger, interval time.Duration, batchSize int) *SweeperService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if batchSize < 1 {
		batchSize = 500
	}
	return &SweeperService{
		repo:      repo,
		evaluator: evaluator,
		counter:   counter,
		log:       log,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run выполняет проход сразу и затем по тикеру до отмены ctx.
func (s *SweeperService) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce обрабатывает одну пачку заявок и возвращает число отозванных.
// Ошибка по одной заявке не останавливает остальные.
func (s *SweeperService) RunOnce(ctx context.Context) int {
	const op = "scheduler.SweeperService.RunOnce"
	s.log.Info("starting sweep of elapsed subscriptions")

	subs, err := s.repo.ListElapsedSubmissions(ctx, s.now().UTC(), s.batchSize)
	if err != nil {
		s.log.Error("failed to list elapsed submissions", sl.Op(op), sl.Err(err))
		return 0
	}
	if len(subs) == 0 {
		s.log.Info("no elapsed submissions found")
		return 0
	}
	s.log.Info("found elapsed submissions", "count", len(subs))

	revoked := 0
	for _, sub := range subs {
		if ctx.Err() != nil {
			break
		}
		expired, err := s.evaluator.Evaluate(ctx, sub)
		if err != nil {
			continue
		}
		if expired {
			revoked++
		}
	}

	if s.counter != nil {
		s.counter.SweeperRevoked(revoked)
	}
	s.log.Info("sweep finished", slog.Int("revoked", revoked), slog.Int("checked", len(subs)))
	return revoked
}
