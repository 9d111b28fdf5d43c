package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/medicaidready/internal/models"
)

const submissionColumns = `id, email, status, subscription_id, customer_id, subscription_status,
	current_period_end, access_revoked_at, access_revoked_reason, created_at, updated_at`

// mirrorSet сливает непустые поля патча с текущими значениями.
const mirrorSet = `subscription_id = COALESCE($2, subscription_id),
	customer_id = COALESCE($3, customer_id),
	subscription_status = COALESCE($4, subscription_status),
	current_period_end = COALESCE($5, current_period_end),
	updated_at = NOW()`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		s      models.Submission
		status string
	)
	err := row.Scan(&s.ID, &s.Email, &status, &s.SubscriptionID, &s.CustomerID, &s.SubscriptionStatus,
		&s.CurrentPeriodEnd, &s.AccessRevokedAt, &s.AccessRevokedReason, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = models.SubmissionStatus(status)
	return &s, nil
}

func patchArgs(patch *models.MirrorPatch) []any {
	if patch == nil {
		return []any{nil, nil, nil, nil}
	}
	return []any{patch.SubscriptionID, patch.CustomerID, patch.SubscriptionStatus, patch.CurrentPeriodEnd}
}

// FindSubmissionByID возвращает заявку по id или ErrSubmissionNotFound.
func (s *Storage) FindSubmissionByID(ctx context.Context, id string) (*models.Submission, error) {
	const op = "storage.FindSubmissionByID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	sub, err := scanSubmission(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubmissionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// FindLatestSubmissionByEmail возвращает самую свежую заявку для email.
// Email должен быть уже нормализован.
func (s *Storage) FindLatestSubmissionByEmail(ctx context.Context, email string) (*models.Submission, error) {
	const op = "storage.FindLatestSubmissionByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions
			  WHERE email = $1
			  ORDER BY created_at DESC
			  LIMIT 1`
	sub, err := scanSubmission(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubmissionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ApproveSubmission одобряет заявку, снимает отзыв и применяет патч.
// Возвращает id изменённых строк.
func (s *Storage) ApproveSubmission(ctx context.Context, id string, patch *models.MirrorPatch) ([]string, error) {
	const op = "storage.ApproveSubmission"
	query := `UPDATE submissions SET
				status = 'approved',
				access_revoked_at = NULL,
				access_revoked_reason = NULL,
				` + mirrorSet + `
			  WHERE id = $1
			  RETURNING id`
	return s.updateReturningIDs(ctx, op, query, append([]any{id}, patchArgs(patch)...)...)
}

// ApproveSubmissionsBySubscriptionID одобряет все заявки с данной подпиской.
func (s *Storage) ApproveSubmissionsBySubscriptionID(ctx context.Context, subscriptionID string, patch *models.MirrorPatch) ([]string, error) {
	const op = "storage.ApproveSubmissionsBySubscriptionID"
	query := `UPDATE submissions SET
				status = 'approved',
				access_revoked_at = NULL,
				access_revoked_reason = NULL,
				` + mirrorSet + `
			  WHERE subscription_id = $1
			  RETURNING id`
	return s.updateReturningIDs(ctx, op, query, append([]any{subscriptionID}, patchArgs(patch)...)...)
}

// RevokeSubmission отзывает доступ у одной заявки, если он ещё не отозван.
// Повторный вызов ничего не меняет и возвращает пустой список.
func (s *Storage) RevokeSubmission(ctx context.Context, id, reason string, at time.Time, patch *models.MirrorPatch) ([]string, error) {
	const op = "storage.RevokeSubmission"
	query := `UPDATE submissions SET
				status = 'revoked',
				access_revoked_at = $6,
				access_revoked_reason = $7,
				` + mirrorSet + `
			  WHERE id = $1 AND access_revoked_at IS NULL
			  RETURNING id`
	args := append([]any{id}, patchArgs(patch)...)
	return s.updateReturningIDs(ctx, op, query, append(args, at, reason)...)
}

// RevokeSubmissionsBySubscriptionID отзывает доступ у всех ещё не отозванных
// заявок с данной подпиской.
func (s *Storage) RevokeSubmissionsBySubscriptionID(ctx context.Context, subscriptionID, reason string, at time.Time, patch *models.MirrorPatch) ([]string, error) {
	const op = "storage.RevokeSubmissionsBySubscriptionID"
	query := `UPDATE submissions SET
				status = 'revoked',
				access_revoked_at = $6,
				access_revoked_reason = $7,
				` + mirrorSet + `
			  WHERE subscription_id = $1 AND access_revoked_at IS NULL
			  RETURNING id`
	args := append([]any{subscriptionID}, patchArgs(patch)...)
	return s.updateReturningIDs(ctx, op, query, append(args, at, reason)...)
}

// CountSubmissionsBySubscriptionID считает строки с данной подпиской
// независимо от того, отозван ли у них доступ.
func (s *Storage) CountSubmissionsBySubscriptionID(ctx context.Context, subscriptionID string) (int, error) {
	const op = "storage.CountSubmissionsBySubscriptionID"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var count int
	query := `SELECT COUNT(*) FROM submissions WHERE subscription_id = $1`
	if err := s.DB.QueryRowContext(ctx, query, subscriptionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// ListElapsedSubmissions возвращает одобренные неотозванные заявки с хорошим
// статусом подписки, у которых оплаченный период закончился раньше now.
func (s *Storage) ListElapsedSubmissions(ctx context.Context, now time.Time, limit int) ([]*models.Submission, error) {
	const op = "storage.ListElapsedSubmissions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions
			  WHERE status = 'approved'
			    AND access_revoked_at IS NULL
			    AND subscription_status IN ('active', 'trialing')
			    AND current_period_end < $1
			  ORDER BY current_period_end
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (s *Storage) updateReturningIDs(ctx context.Context, op, query string, args ...any) ([]string, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}
