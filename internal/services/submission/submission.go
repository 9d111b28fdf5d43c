// Package submission единственная точка чтения и изменения записей заявок.
// Чтение по id идёт через кэш, каждая запись инвалидирует ключи
// затронутых заявок.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/models"
	"github.com/magabrotheeeer/medicaidready/internal/storage/repository"
)

// ErrNotFound заявка не найдена.
var ErrNotFound = repository.ErrSubmissionNotFound

// Repository определяет методы хранилища заявок.
type Repository interface {
	FindSubmissionByID(ctx context.Context, id string) (*models.Submission, error)
	FindLatestSubmissionByEmail(ctx context.Context, email string) (*models.Submission, error)
	ApproveSubmission(ctx context.Context, id string, patch *models.MirrorPatch) ([]string, error)
	ApproveSubmissionsBySubscriptionID(ctx context.Context, subscriptionID string, patch *models.MirrorPatch) ([]string, error)
	RevokeSubmission(ctx context.Context, id, reason string, at time.Time, patch *models.MirrorPatch) ([]string, error)
	RevokeSubmissionsBySubscriptionID(ctx context.Context, subscriptionID, reason string, at time.Time, patch *models.MirrorPatch) ([]string, error)
	CountSubmissionsBySubscriptionID(ctx context.Context, subscriptionID string) (int, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Service реализует доступ к заявкам с кэшированием.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
	ttl   time.Duration
	now   func() time.Time
}

// New создаёт сервис. cache может быть nil, тогда чтение всегда идёт в базу.
func New(repo Repository, cache Cache, log *slog.Logger, ttl time.Duration) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func cacheKey(id string) string {
	return "submission:" + id
}

// FindByID возвращает заявку по id. Ошибка кэша не мешает чтению из базы.
func (s *Service) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	const op = "submission.FindByID"
	key := cacheKey(id)

	if s.cache != nil {
		var cached models.Submission
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn("failed to read from cache", slog.String("key", key), sl.Err(err))
		}
		if found {
			return &cached, nil
		}
	}

	sub, err := s.repo.FindSubmissionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, sub, s.ttl); err != nil {
			s.log.Warn("failed to add to cache", slog.String("key", key), sl.Err(err))
		}
	}
	return sub, nil
}

// Direct представление сервиса, которое читает заявку по id прямо из базы.
// Запись идёт через исходный сервис и по-прежнему инвалидирует кэш.
//
// Гейт доступа читает только через Direct: промах кэша, параллельный отзыв
// и последующий Set могут оставить в кэше неотозванную строку до истечения ttl.
type Direct struct {
	*Service
}

// Direct возвращает представление без кэша на чтение.
func (s *Service) Direct() *Direct {
	return &Direct{Service: s}
}

// FindByID читает заявку из базы, не трогая кэш.
func (d *Direct) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	const op = "submission.Direct.FindByID"
	sub, err := d.repo.FindSubmissionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// HasSubscription сообщает, есть ли хотя бы одна строка с данной подпиской,
// включая уже отозванные.
func (s *Service) HasSubscription(ctx context.Context, subscriptionID string) (bool, error) {
	const op = "submission.HasSubscription"
	count, err := s.repo.CountSubmissionsBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return count > 0, nil
}

// FindLatestByEmail возвращает самую свежую заявку для email.
func (s *Service) FindLatestByEmail(ctx context.Context, email string) (*models.Submission, error) {
	const op = "submission.FindLatestByEmail"
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%s: empty email: %w", op, ErrNotFound)
	}
	sub, err := s.repo.FindLatestSubmissionByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// Approve одобряет заявку и снимает отзыв доступа.
func (s *Service) Approve(ctx context.Context, id string, patch *models.MirrorPatch) ([]string, error) {
	const op = "submission.Approve"
	ids, err := s.repo.ApproveSubmission(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.written(ctx, "approved submission", ids, slog.String("submission_id", id))
	return ids, nil
}

// ApproveBySubscriptionID одобряет все заявки подписки.
func (s *Service) ApproveBySubscriptionID(ctx context.Context, subscriptionID string, patch *models.MirrorPatch) ([]string, error) {
	const op = "submission.ApproveBySubscriptionID"
	ids, err := s.repo.ApproveSubmissionsBySubscriptionID(ctx, subscriptionID, patch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.written(ctx, "approved submissions by subscription", ids, slog.String("subscription_id", subscriptionID))
	return ids, nil
}

// ApproveLatestByEmail одобряет только самую свежую заявку для email.
func (s *Service) ApproveLatestByEmail(ctx context.Context, email string, patch *models.MirrorPatch) ([]string, error) {
	const op = "submission.ApproveLatestByEmail"
	sub, err := s.FindLatestByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.Approve(ctx, sub.ID, patch)
}

// RevokeByID отзывает доступ у одной заявки. Уже отозванная не меняется.
func (s *Service) RevokeByID(ctx context.Context, id, reason string, patch *models.MirrorPatch) ([]string, error) {
	const op = "submission.RevokeByID"
	ids, err := s.repo.RevokeSubmission(ctx, id, reason, s.now(), patch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.written(ctx, "revoked submission", ids, slog.String("submission_id", id), slog.String("reason", reason))
	return ids, nil
}

// RevokeBySubscriptionID отзывает доступ у всех заявок подписки.
func (s *Service) RevokeBySubscriptionID(ctx context.Context, subscriptionID, reason string, patch *models.MirrorPatch) ([]string, error) {
	const op = "submission.RevokeBySubscriptionID"
	ids, err := s.repo.RevokeSubmissionsBySubscriptionID(ctx, subscriptionID, reason, s.now(), patch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.written(ctx, "revoked submissions by subscription", ids,
		slog.String("subscription_id", subscriptionID), slog.String("reason", reason))
	return ids, nil
}

// RevokeLatestByEmail отзывает доступ только у самой свежей заявки для email.
func (s *Service) RevokeLatestByEmail(ctx context.Context, email, reason string, patch *models.MirrorPatch) ([]string, error) {
	const op = "submission.RevokeLatestByEmail"
	sub, err := s.FindLatestByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.RevokeByID(ctx, sub.ID, reason, patch)
}

func (s *Service) written(ctx context.Context, msg string, ids []string, attrs ...slog.Attr) {
	args := make([]any, 0, len(attrs)+1)
	for _, a := range attrs {
		args = append(args, a)
	}
	args = append(args, slog.Any("ids", ids))
	s.log.Info(msg, args...)

	if s.cache == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cacheKey(id))
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("failed to invalidate cache", slog.Any("keys", keys), sl.Err(err))
	}
}

// IsNotFound сообщает, что ошибка означает отсутствие заявки.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
