package access

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/medicaidready/internal/lib/identity"
	"github.com/magabrotheeeer/medicaidready/internal/models"
)

var now = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGate(store *memStore) *Gate {
	expiry := NewExpiryEvaluator(store, discardLogger())
	expiry.now = func() time.Time { return now }
	return NewGate(identity.Default(), store, expiry, discardLogger())
}

func requestFor(id string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/checklist", nil)
	if id != "" {
		r.Header.Set(identity.Header, id)
	}
	return r
}

func tp(t time.Time) *time.Time { return &t }

func TestExpiryEvaluator_Expired(t *testing.T) {
	e := NewExpiryEvaluator(nil, discardLogger())
	e.now = func() time.Time { return now }

	tests := []struct {
		name   string
		status *string
		end    *time.Time
		want   bool
	}{
		{name: "active и период в прошлом", status: models.StringPtr("active"), end: tp(now.Add(-time.Hour)), want: true},
		{name: "trialing и период в прошлом", status: models.StringPtr("trialing"), end: tp(now.Add(-time.Second)), want: true},
		{name: "период ровно сейчас", status: models.StringPtr("active"), end: tp(now), want: false},
		{name: "период в будущем", status: models.StringPtr("active"), end: tp(now.Add(time.Hour)), want: false},
		{name: "нет периода", status: models.StringPtr("active"), want: false},
		{name: "past_due не считается истёкшим", status: models.StringPtr("past_due"), end: tp(now.Add(-time.Hour)), want: false},
		{name: "нет статуса", end: tp(now.Add(-time.Hour)), want: false},
		{name: "нулевое время", status: models.StringPtr("active"), end: &time.Time{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &models.Submission{ID: "S1", SubscriptionStatus: tt.status, CurrentPeriodEnd: tt.end}
			assert.Equal(t, tt.want, e.Expired(sub))
		})
	}
	assert.False(t, e.Expired(nil))
}

func TestExpiryEvaluator_Evaluate(t *testing.T) {
	expired := models.Submission{
		ID:                 "S1",
		Status:             models.StatusApproved,
		SubscriptionStatus: models.StringPtr("active"),
		CurrentPeriodEnd:   tp(now.Add(-24 * time.Hour)),
	}

	t.Run("отзыв с причиной period_end_elapsed", func(t *testing.T) {
		store := newMemStore(now, expired)
		e := NewExpiryEvaluator(store, discardLogger())
		e.now = func() time.Time { return now }

		got, err := e.Evaluate(context.Background(), &expired)
		require.NoError(t, err)
		assert.True(t, got)

		row, _ := store.FindByID(context.Background(), "S1")
		require.NotNil(t, row.AccessRevokedAt)
		assert.Equal(t, models.RevokePeriodEndElapsed, *row.AccessRevokedReason)
	})

	t.Run("ошибка записи", func(t *testing.T) {
		store := newMemStore(now, expired)
		store.revokeErr = errors.New("db down")
		e := NewExpiryEvaluator(store, discardLogger())
		e.now = func() time.Time { return now }

		got, err := e.Evaluate(context.Background(), &expired)
		assert.True(t, got)
		require.Error(t, err)
	})

	t.Run("не истёк, без записи", func(t *testing.T) {
		fresh := expired
		fresh.CurrentPeriodEnd = tp(now.Add(time.Hour))
		store := newMemStore(now, fresh)
		e := NewExpiryEvaluator(store, discardLogger())
		e.now = func() time.Time { return now }

		got, err := e.Evaluate(context.Background(), &fresh)
		require.NoError(t, err)
		assert.False(t, got)
		assert.Zero(t, store.revokes)
	})
}

func TestGate_Check(t *testing.T) {
	approvedActive := models.Submission{
		ID:                 "S1",
		Status:             models.StatusApproved,
		SubscriptionStatus: models.StringPtr("active"),
		CurrentPeriodEnd:   tp(now.Add(30 * 24 * time.Hour)),
	}

	tests := []struct {
		name       string
		id         string
		row        *models.Submission
		setup      func(s *memStore)
		wantAllow  bool
		wantReason string
		wantStatus int
	}{
		{name: "нет идентификатора", wantReason: ReasonMissingSubmissionID, wantStatus: http.StatusForbidden},
		{name: "заявка не найдена", id: "nope", wantReason: ReasonSubmissionNotFound, wantStatus: http.StatusForbidden},
		{
			name:       "ошибка чтения",
			id:         "S1",
			setup:      func(s *memStore) { s.findErr = errors.New("db down") },
			wantReason: ReasonLookupFailed,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "отозвана",
			id:   "S1",
			row: func() *models.Submission {
				s := approvedActive
				s.AccessRevokedAt = tp(now.Add(-time.Hour))
				return &s
			}(),
			wantReason: ReasonAccessRevoked,
			wantStatus: http.StatusForbidden,
		},
		{
			name: "не одобрена",
			id:   "S1",
			row: func() *models.Submission {
				s := approvedActive
				s.Status = models.StatusPending
				return &s
			}(),
			wantReason: ReasonNotApproved,
			wantStatus: http.StatusForbidden,
		},
		{
			name: "ошибка автоотзыва",
			id:   "S1",
			row: func() *models.Submission {
				s := approvedActive
				s.CurrentPeriodEnd = tp(now.Add(-time.Hour))
				return &s
			}(),
			setup:      func(s *memStore) { s.revokeErr = errors.New("db down") },
			wantReason: ReasonAutoRevokeFailed,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "подписка неактивна",
			id:   "S1",
			row: func() *models.Submission {
				s := approvedActive
				s.SubscriptionStatus = models.StringPtr("past_due")
				return &s
			}(),
			wantReason: ReasonSubscriptionInactive,
			wantStatus: http.StatusForbidden,
		},
		{
			name: "нет статуса подписки",
			id:   "S1",
			row: func() *models.Submission {
				s := approvedActive
				s.SubscriptionStatus = nil
				return &s
			}(),
			wantReason: ReasonSubscriptionInactive,
			wantStatus: http.StatusForbidden,
		},
		{
			name: "невалидный период не ограничивает",
			id:   "S1",
			row: func() *models.Submission {
				s := approvedActive
				s.CurrentPeriodEnd = nil
				return &s
			}(),
			wantAllow:  true,
			wantReason: ReasonOK,
			wantStatus: http.StatusOK,
		},
		{name: "доступ разрешён", id: "S1", row: &approvedActive, wantAllow: true, wantReason: ReasonOK, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(now)
			if tt.row != nil {
				store.rows[tt.row.ID] = *tt.row
			}
			if tt.setup != nil {
				tt.setup(store)
			}

			d := newTestGate(store).Check(context.Background(), requestFor(tt.id))

			assert.Equal(t, tt.wantAllow, d.Allowed)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, tt.wantStatus, d.HTTPStatus)
			assert.Equal(t, tt.id, d.SubmissionID)
		})
	}
}

// Сценарий: одобренная заявка с активной подпиской, период закончился вчера.
func TestGate_ExpiredPeriodRevokes(t *testing.T) {
	store := newMemStore(now, models.Submission{
		ID:                 "S1",
		Status:             models.StatusApproved,
		SubscriptionStatus: models.StringPtr("active"),
		CurrentPeriodEnd:   tp(now.Add(-24 * time.Hour)),
	})
	gate := newTestGate(store)

	d := gate.Check(context.Background(), requestFor("S1"))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonSubscriptionPeriodEnd, d.Reason)
	assert.Equal(t, http.StatusForbidden, d.HTTPStatus)

	row, err := store.FindByID(context.Background(), "S1")
	require.NoError(t, err)
	require.NotNil(t, row.AccessRevokedAt)
	assert.Equal(t, models.RevokePeriodEndElapsed, *row.AccessRevokedReason)

	d = gate.Check(context.Background(), requestFor("S1"))
	assert.Equal(t, ReasonAccessRevoked, d.Reason, "следующее чтение видит отзыв")
	assert.Equal(t, 1, store.revokes)
}

func TestGate_RevokedAlwaysDenies(t *testing.T) {
	statuses := []models.SubmissionStatus{models.StatusPending, models.StatusApproved, models.StatusRevoked}
	subStatuses := []*string{nil, models.StringPtr("active"), models.StringPtr("trialing"), models.StringPtr("past_due"), models.StringPtr("canceled")}
	ends := []*time.Time{nil, tp(now.Add(-time.Hour)), tp(now.Add(time.Hour))}

	for _, st := range statuses {
		for _, ss := range subStatuses {
			for _, end := range ends {
				store := newMemStore(now, models.Submission{
					ID:                 "S1",
					Status:             st,
					SubscriptionStatus: ss,
					CurrentPeriodEnd:   end,
					AccessRevokedAt:    tp(now.Add(-48 * time.Hour)),
				})

				d := newTestGate(store).Check(context.Background(), requestFor("S1"))

				assert.False(t, d.Allowed)
				assert.Equal(t, ReasonAccessRevoked, d.Reason)
				assert.Zero(t, store.revokes)
			}
		}
	}
}
