package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/medicaidready/internal/migrations"
	"github.com/magabrotheeeer/medicaidready/internal/models"
)

// TestDataFactory создаёт тестовые заявки напрямую в базе.
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создаёт новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateSubmission вставляет заявку как есть.
func (f *TestDataFactory) CreateSubmission(t *testing.T, sub models.Submission) {
	t.Helper()
	if sub.Status == "" {
		sub.Status = models.StatusPending
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := f.storage.DB.Exec(`INSERT INTO submissions
		(id, email, status, subscription_id, customer_id, subscription_status,
		 current_period_end, access_revoked_at, access_revoked_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		sub.ID, sub.Email, string(sub.Status), sub.SubscriptionID, sub.CustomerID, sub.SubscriptionStatus,
		sub.CurrentPeriodEnd, sub.AccessRevokedAt, sub.AccessRevokedReason, sub.CreatedAt)
	require.NoError(t, err)
}

// MustFind читает заявку и падает, если её нет.
func (f *TestDataFactory) MustFind(t *testing.T, id string) *models.Submission {
	t.Helper()
	sub, err := f.storage.FindSubmissionByID(context.Background(), id)
	require.NoError(t, err)
	return sub
}

// setupTestDatabase поднимает PostgreSQL в контейнере и накатывает миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(connStr)
	require.NoError(t, err)

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.DB.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}
