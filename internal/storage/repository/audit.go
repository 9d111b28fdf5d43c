package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/medicaidready/internal/models"
)

// InsertAuditRecord добавляет запись в журнал проверок доступа.
// Пустой ID и нулевое время заполняются автоматически.
func (s *Storage) InsertAuditRecord(ctx context.Context, rec models.AuditRecord) error {
	const op = "storage.InsertAuditRecord"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO access_audit_log (id, submission_id, route, method, allowed, reason, ip, user_agent, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  ON CONFLICT (id) DO NOTHING`
	_, err := s.DB.ExecContext(ctx, query,
		rec.ID, rec.SubmissionID, rec.Route, rec.Method, rec.Allowed, rec.Reason, rec.IP, rec.UserAgent, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
