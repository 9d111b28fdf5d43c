package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/medicaidready/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/medicaidready/internal/models"
)

// Writer сохраняет записи из очереди аудита.
type Writer struct {
	store   Inserter
	log     *slog.Logger
	timeout time.Duration
}

func NewWriter(store Inserter, log *slog.Logger, timeout time.Duration) *Writer {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Writer{store: store, log: log, timeout: timeout}
}

// Consume обрабатывает тело сообщения. Битые сообщения помечаются
// rabbitmq.ErrPoison и в очередь не возвращаются.
func (w *Writer) Consume(body []byte) error {
	const op = "audit.Writer.Consume"

	var rec models.AuditRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return fmt.Errorf("%s: %w: %v", op, rabbitmq.ErrPoison, err)
	}
	if rec.SubmissionID == "" || rec.Reason == "" {
		return fmt.Errorf("%s: %w: incomplete record", op, rabbitmq.ErrPoison)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.store.InsertAuditRecord(ctx, rec); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	w.log.Debug("audit record stored", slog.String("id", rec.ID), slog.String("submission_id", rec.SubmissionID))
	return nil
}
