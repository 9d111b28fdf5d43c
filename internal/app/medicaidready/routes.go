// Package medicaidready собирает HTTP-приложение сервиса доступа.
package medicaidready

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/medicaidready/internal/http/handlers/accessstatus"
	"github.com/magabrotheeeer/medicaidready/internal/http/handlers/billingwebhook"
	"github.com/magabrotheeeer/medicaidready/internal/http/handlers/checklist"
	"github.com/magabrotheeeer/medicaidready/internal/http/handlers/health"
	"github.com/magabrotheeeer/medicaidready/internal/http/handlers/submission/approve"
	"github.com/magabrotheeeer/medicaidready/internal/http/handlers/submission/read"
	"github.com/magabrotheeeer/medicaidready/internal/http/handlers/submission/revoke"
	"github.com/magabrotheeeer/medicaidready/internal/http/middlewarectx"
	"github.com/magabrotheeeer/medicaidready/internal/metrics"
	submissionservice "github.com/magabrotheeeer/medicaidready/internal/services/submission"
)

// Deps зависимости маршрутов.
type Deps struct {
	Logger      *slog.Logger
	Submissions *submissionservice.Service
	Tokens      middlewarectx.TokenParser
	Gate        middlewarectx.Gate
	Audit       middlewarectx.AuditRecorder
	Webhook     *billingwebhook.Handler
	Metrics     *metrics.Metrics
	Health      map[string]health.Pinger
	RateRPS     float64
	RateBurst   int
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Вебхук без аутентификации, подпись проверяет обработчик
		r.Post("/billing/webhook", d.Webhook.ServeHTTP)

		// Защищённые чтения
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.AdminJWT(d.Tokens, d.Logger))
			r.Use(middlewarectx.RateLimitMiddleware(d.Logger, d.RateRPS, d.RateBurst))
			r.Use(middlewarectx.AccessGate(d.Logger, d.Gate, d.Audit, d.Metrics))
			r.Get("/access/status", accessstatus.New(d.Logger, d.Submissions).ServeHTTP)
			r.Get("/checklist", checklist.Handler)
		})

		// Администрирование
		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewarectx.AdminJWT(d.Tokens, d.Logger))
			r.Use(middlewarectx.RequireAdmin(d.Logger))
			r.Get("/submissions/{id}", read.New(d.Logger, d.Submissions).ServeHTTP)
			r.Post("/submissions/{id}/approve", approve.New(d.Logger, d.Submissions).ServeHTTP)
			r.Post("/submissions/{id}/revoke", revoke.New(d.Logger, d.Submissions).ServeHTTP)
		})
	})

	r.Get("/healthz", health.New(d.Logger, d.Health).ServeHTTP)
	r.Handle("/metrics", metricsHandler(d.Metrics))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

func metricsHandler(m *metrics.Metrics) http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.Handler()
}
