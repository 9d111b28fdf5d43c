// Package audit неблокирующая запись решений гейта доступа.
// Record никогда не ждёт: при переполнении буфера запись отбрасывается.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/models"
)

// Publisher доставляет одну запись аудита.
type Publisher interface {
	Publish(ctx context.Context, rec models.AuditRecord) error
}

// DropCounter считает отброшенные записи.
type DropCounter interface {
	AuditDropped()
}

// Options параметры AsyncSink.
type Options struct {
	BufferSize     int
	Workers        int
	PublishTimeout time.Duration
}

// AsyncSink буфер записей и пул воркеров, которые их публикуют.
type AsyncSink struct {
	pub     Publisher
	log     *slog.Logger
	dropped DropCounter
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan models.AuditRecord
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewAsyncSink создаёт sink и запускает воркеры. dropped может быть nil.
func NewAsyncSink(pub Publisher, log *slog.Logger, opts Options, dropped DropCounter) *AsyncSink {
	if opts.BufferSize < 1 {
		opts.BufferSize = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 3 * time.Second
	}

	s := &AsyncSink{
		pub:     pub,
		log:     log,
		dropped: dropped,
		timeout: opts.PublishTimeout,
		queue:   make(chan models.AuditRecord, opts.BufferSize),
		now:     func() time.Time { return time.Now().UTC() },
	}
	s.wg.Add(opts.Workers)
	for range opts.Workers {
		go s.worker()
	}
	return s
}

// Record ставит запись в очередь без ожидания.
func (s *AsyncSink) Record(rec models.AuditRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(rec, "sink closed")
		return
	}
	select {
	case s.queue <- rec:
	default:
		s.drop(rec, "buffer full")
	}
}

func (s *AsyncSink) drop(rec models.AuditRecord, why string) {
	s.log.Warn("audit record dropped",
		slog.String("reason", why),
		slog.String("submission_id", rec.SubmissionID),
		slog.String("decision", rec.Reason),
	)
	if s.dropped != nil {
		s.dropped.AuditDropped()
	}
}

func (s *AsyncSink) worker() {
	defer s.wg.Done()
	for rec := range s.queue {
		s.publish(rec)
	}
}

func (s *AsyncSink) publish(rec models.AuditRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.pub.Publish(ctx, rec); err != nil {
		s.log.Error("failed to publish audit record",
			slog.String("id", rec.ID),
			slog.String("submission_id", rec.SubmissionID),
			sl.Err(err),
		)
	}
}

// Close перестаёт принимать записи и ждёт, пока воркеры опустошат буфер.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
