package approve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/medicaidready/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Approve(ctx context.Context, id string, patch *models.MirrorPatch) ([]string, error) {
	args := m.Called(ctx, id, patch)
	if res := args.Get(0); res != nil {
		return res.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*models.Submission), args.Error(1)
	}
	return nil, args.Error(1)
}

func patchWith(check func(p *models.MirrorPatch) bool) any {
	return mock.MatchedBy(check)
}

func TestApproveHandler(t *testing.T) {
	end := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	approved := &models.Submission{ID: "S1", Status: models.StatusApproved}

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "период в миллисекундах",
			body: `{"subscription_status":"active","current_period_end":1700000000000}`,
			setupMock: func(m *MockService) {
				m.On("Approve", mock.Anything, "S1", patchWith(func(p *models.MirrorPatch) bool {
					return p.CurrentPeriodEnd != nil && p.CurrentPeriodEnd.Equal(end) &&
						p.SubscriptionStatus != nil && *p.SubscriptionStatus == "active"
				})).Return([]string{"S1"}, nil)
				m.On("FindByID", mock.Anything, "S1").Return(approved, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"approved"`,
		},
		{
			name: "период строкой ISO",
			body: `{"current_period_end":"2023-11-14T22:13:20Z"}`,
			setupMock: func(m *MockService) {
				m.On("Approve", mock.Anything, "S1", patchWith(func(p *models.MirrorPatch) bool {
					return p.CurrentPeriodEnd != nil && p.CurrentPeriodEnd.Equal(end)
				})).Return([]string{"S1"}, nil)
				m.On("FindByID", mock.Anything, "S1").Return(approved, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"ok":true`,
		},
		{
			name: "пустое тело",
			body: "",
			setupMock: func(m *MockService) {
				m.On("Approve", mock.Anything, "S1", &models.MirrorPatch{}).Return([]string{"S1"}, nil)
				m.On("FindByID", mock.Anything, "S1").Return(approved, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"ok":true`,
		},
		{
			name:           "невалидный период",
			body:           `{"current_period_end":"garbage"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `current_period_end`,
		},
		{
			name:           "неизвестный статус подписки",
			body:           `{"subscription_status":"weird"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field SubscriptionStatus must be one of`,
		},
		{
			name:           "битый JSON",
			body:           `{`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"ok":false,"error":"invalid request body"}`,
		},
		{
			name: "заявки нет",
			body: `{}`,
			setupMock: func(m *MockService) {
				m.On("Approve", mock.Anything, "S1", mock.Anything).Return([]string{}, nil)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"ok":false,"error":"submission_not_found"}`,
		},
		{
			name: "ошибка хранилища",
			body: `{}`,
			setupMock: func(m *MockService) {
				m.On("Approve", mock.Anything, "S1", mock.Anything).Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"ok":false,"error":"could not approve submission"}`,
		},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/submissions/S1/approve", strings.NewReader(tt.body))
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "S1")
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			w := httptest.NewRecorder()

			New(log, svc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
