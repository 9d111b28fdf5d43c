package access

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/magabrotheeeer/medicaidready/internal/models"
	"github.com/magabrotheeeer/medicaidready/internal/services/submission"
)

// memStore хранилище заявок в памяти с той же семантикой отзыва, что и в базе.
type memStore struct {
	mu        sync.Mutex
	rows      map[string]models.Submission
	findErr   error
	revokeErr error
	now       time.Time
	revokes   int
}

func newMemStore(now time.Time, rows ...models.Submission) *memStore {
	m := &memStore{rows: map[string]models.Submission{}, now: now}
	for _, r := range rows {
		m.rows[r.ID] = r
	}
	return m
}

func (m *memStore) FindByID(_ context.Context, id string) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	row, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("submission.FindByID: %w", submission.ErrNotFound)
	}
	return &row, nil
}

func (m *memStore) RevokeByID(_ context.Context, id, reason string, _ *models.MirrorPatch) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokes++
	if m.revokeErr != nil {
		return nil, m.revokeErr
	}
	row, ok := m.rows[id]
	if !ok || row.AccessRevokedAt != nil {
		return nil, nil
	}
	at := m.now
	row.Status = models.StatusRevoked
	row.AccessRevokedAt = &at
	row.AccessRevokedReason = &reason
	m.rows[id] = row
	return []string{id}, nil
}
