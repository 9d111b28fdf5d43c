package medicaidready

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/magabrotheeeer/medicaidready/internal/billing"
	"github.com/magabrotheeeer/medicaidready/internal/http/handlers/billingwebhook"
	"github.com/magabrotheeeer/medicaidready/internal/lib/identity"
	"github.com/magabrotheeeer/medicaidready/internal/lib/jwt"
	"github.com/magabrotheeeer/medicaidready/internal/metrics"
	"github.com/magabrotheeeer/medicaidready/internal/models"
	"github.com/magabrotheeeer/medicaidready/internal/services/access"
	"github.com/magabrotheeeer/medicaidready/internal/services/reconcile"
	submissionservice "github.com/magabrotheeeer/medicaidready/internal/services/submission"
	"github.com/magabrotheeeer/medicaidready/internal/storage/repository"
)

const (
	webhookSecret = "whsec_routes"
	jwtSecret     = "routes_secret"
)

// memRepo хранилище заявок в памяти с семантикой SQL-запросов.
type memRepo struct {
	mu   sync.Mutex
	rows map[string]models.Submission
}

func (m *memRepo) get(id string) models.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func (m *memRepo) FindSubmissionByID(_ context.Context, id string) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("storage.FindSubmissionByID: %w", repository.ErrSubmissionNotFound)
	}
	return &row, nil
}

func (m *memRepo) FindLatestSubmissionByEmail(_ context.Context, email string) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Submission
	for _, row := range m.rows {
		if row.Email == email && (latest == nil || row.CreatedAt.After(latest.CreatedAt)) {
			r := row
			latest = &r
		}
	}
	if latest == nil {
		return nil, repository.ErrSubmissionNotFound
	}
	return latest, nil
}

func (m *memRepo) update(match func(models.Submission) bool, apply func(*models.Submission)) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, row := range m.rows {
		if !match(row) {
			continue
		}
		apply(&row)
		m.rows[id] = row
		ids = append(ids, id)
	}
	return ids
}

func mirror(row *models.Submission, patch *models.MirrorPatch) {
	if patch == nil {
		return
	}
	if patch.SubscriptionID != nil {
		row.SubscriptionID = patch.SubscriptionID
	}
	if patch.CustomerID != nil {
		row.CustomerID = patch.CustomerID
	}
	if patch.SubscriptionStatus != nil {
		row.SubscriptionStatus = patch.SubscriptionStatus
	}
	if patch.CurrentPeriodEnd != nil {
		row.CurrentPeriodEnd = patch.CurrentPeriodEnd
	}
}

func approveRow(patch *models.MirrorPatch) func(*models.Submission) {
	return func(row *models.Submission) {
		row.Status = models.StatusApproved
		row.AccessRevokedAt = nil
		row.AccessRevokedReason = nil
		mirror(row, patch)
	}
}

func revokeRow(reason string, at time.Time, patch *models.MirrorPatch) func(*models.Submission) {
	return func(row *models.Submission) {
		row.Status = models.StatusRevoked
		row.AccessRevokedAt = &at
		row.AccessRevokedReason = &reason
		mirror(row, patch)
	}
}

func bySubscription(id string) func(models.Submission) bool {
	return func(row models.Submission) bool {
		return row.SubscriptionID != nil && *row.SubscriptionID == id
	}
}

func (m *memRepo) ApproveSubmission(_ context.Context, id string, patch *models.MirrorPatch) ([]string, error) {
	return m.update(func(row models.Submission) bool { return row.ID == id }, approveRow(patch)), nil
}

func (m *memRepo) ApproveSubmissionsBySubscriptionID(_ context.Context, subscriptionID string, patch *models.MirrorPatch) ([]string, error) {
	return m.update(bySubscription(subscriptionID), approveRow(patch)), nil
}

func (m *memRepo) RevokeSubmission(_ context.Context, id, reason string, at time.Time, patch *models.MirrorPatch) ([]string, error) {
	return m.update(func(row models.Submission) bool {
		return row.ID == id && row.AccessRevokedAt == nil
	}, revokeRow(reason, at, patch)), nil
}

func (m *memRepo) RevokeSubmissionsBySubscriptionID(_ context.Context, subscriptionID, reason string, at time.Time, patch *models.MirrorPatch) ([]string, error) {
	match := bySubscription(subscriptionID)
	return m.update(func(row models.Submission) bool {
		return match(row) && row.AccessRevokedAt == nil
	}, revokeRow(reason, at, patch)), nil
}

func (m *memRepo) CountSubmissionsBySubscriptionID(_ context.Context, subscriptionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match := bySubscription(subscriptionID)
	count := 0
	for _, row := range m.rows {
		if match(row) {
			count++
		}
	}
	return count, nil
}

type auditLog struct {
	mu      sync.Mutex
	records []models.AuditRecord
}

func (a *auditLog) Record(rec models.AuditRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
}

type testServer struct {
	router http.Handler
	repo   *memRepo
	audit  *auditLog
	tokens *jwt.MakerImpl
}

func newTestServer(t *testing.T, rows ...models.Submission) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &memRepo{rows: map[string]models.Submission{}}
	for _, row := range rows {
		repo.rows[row.ID] = row
	}
	submissions := submissionservice.New(repo, nil, log, time.Minute)
	m := metrics.New()
	audit := &auditLog{}
	tokens := jwt.NewJWTMaker(jwtSecret, time.Hour)

	reconciler := reconcile.New(submissions, billing.NewClientFromKey("", time.Second), log)
	gate := access.NewGate(identity.Default(), submissions.Direct(), access.NewExpiryEvaluator(submissions, log), log)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:      log,
		Submissions: submissions,
		Tokens:      tokens,
		Gate:        gate,
		Audit:       audit,
		Webhook:     billingwebhook.New(log, billing.NewVerifier(webhookSecret, time.Minute), reconciler, m),
		Metrics:     m,
		RateRPS:     1000,
		RateBurst:   1000,
	})
	return &testServer{router: router, repo: repo, audit: audit, tokens: tokens}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	token, err := s.tokens.GenerateToken("ops@medicaidready.test", jwt.RoleAdmin)
	require.NoError(t, err)
	return "Bearer " + token
}

func tp(t time.Time) *time.Time { return &t }

func TestRoutes_ExpiredSubmissionIsRevokedOnRead(t *testing.T) {
	s := newTestServer(t, models.Submission{
		ID:                 "S1",
		Email:              "a@b.com",
		Status:             models.StatusApproved,
		SubscriptionStatus: models.StringPtr("active"),
		CurrentPeriodEnd:   tp(time.Now().Add(-24 * time.Hour)),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checklist", nil)
	req.AddCookie(&http.Cookie{Name: identity.CookiePrimary, Value: "S1"})
	w := s.do(req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"subscription_period_ended"}`, w.Body.String())

	row := s.repo.get("S1")
	require.NotNil(t, row.AccessRevokedAt)
	assert.Equal(t, models.RevokePeriodEndElapsed, *row.AccessRevokedReason)

	require.Len(t, s.audit.records, 1)
	assert.False(t, s.audit.records[0].Allowed)
	assert.Equal(t, access.ReasonSubscriptionPeriodEnd, s.audit.records[0].Reason)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/checklist?submission_id=S1", nil))
	assert.JSONEq(t, `{"ok":false,"error":"access_revoked"}`, w.Body.String())
}

func TestRoutes_AllowedRead(t *testing.T) {
	s := newTestServer(t, models.Submission{
		ID:                 "S1",
		Status:             models.StatusApproved,
		SubscriptionStatus: models.StringPtr("trialing"),
		CurrentPeriodEnd:   tp(time.Now().Add(24 * time.Hour)),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/access/status", nil)
	req.Header.Set(identity.Header, "S1")
	w := s.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"submission_id":"S1"`)
	assert.Contains(t, w.Body.String(), `"subscription_status":"trialing"`)
	require.Len(t, s.audit.records, 1)
	assert.True(t, s.audit.records[0].Allowed)
}

func TestRoutes_AdminBypassesGate(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checklist", nil)
	req.Header.Set("Authorization", s.adminToken(t))
	w := s.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, s.audit.records)
}

func TestRoutes_AdminRevokeThenGateDenies(t *testing.T) {
	s := newTestServer(t, models.Submission{
		ID:                 "S1",
		Status:             models.StatusApproved,
		SubscriptionStatus: models.StringPtr("active"),
	})

	w := s.do(httptest.NewRequest(http.MethodPost, "/api/v1/admin/submissions/S1/revoke", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/submissions/S1/revoke", bytes.NewReader([]byte(`{"reason":"chargeback"}`)))
	req.Header.Set("Authorization", s.adminToken(t))
	w = s.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/checklist?submission_id=S1", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"access_revoked"}`, w.Body.String())
}

func TestRoutes_WebhookSignature(t *testing.T) {
	s := newTestServer(t, models.Submission{
		ID:                 "S1",
		Status:             models.StatusApproved,
		SubscriptionID:     models.StringPtr("sub_1"),
		SubscriptionStatus: models.StringPtr("active"),
	})
	body := []byte(`{"id":"evt_1","object":"event","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1","status":"canceled"}}}`)

	bad := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", bytes.NewReader(body))
	bad.Header.Set(billing.SignatureHeader, "t=1,v1=deadbeef")
	w := s.do(bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, s.repo.get("S1").AccessRevokedAt, "неподписанное событие не меняет заявку")

	good := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", bytes.NewReader(body))
	good.Header.Set(billing.SignatureHeader, webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	}).Header)
	w = s.do(good)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	row := s.repo.get("S1")
	require.NotNil(t, row.AccessRevokedAt)
	assert.Equal(t, models.RevokeSubscriptionDeleted, *row.AccessRevokedReason)
	assert.Equal(t, models.SubscriptionCanceled, row.SubscriptionStatusValue())
}

func TestRoutes_Metrics(t *testing.T) {
	s := newTestServer(t)
	s.do(httptest.NewRequest(http.MethodGet, "/api/v1/checklist", nil))

	w := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `medicaidready_access_gate_decisions_total{allowed="false",reason="missing_submission_id"} 1`)
}
