package middlewarectx

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/medicaidready/internal/http/response"
	"github.com/magabrotheeeer/medicaidready/internal/models"
)

// AccessGate проверяет доступ перед защищённым чтением.
//
// Администратор проходит без проверки и без записи аудита. При отказе
// отвечает статусом решения и {ok:false,error:<reason>}. Каждое решение с
// найденным идентификатором уходит в аудит, запрос запись не ждёт.
// sink и counter могут быть nil.
func AccessGate(log *slog.Logger, gate Gate, sink AuditRecorder, counter DecisionCounter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AccessGate"

			if IsAdmin(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			decision := gate.Check(r.Context(), r)
			if counter != nil {
				counter.GateDecision(decision.Allowed, decision.Reason)
			}
			if sink != nil && decision.SubmissionID != "" {
				sink.Record(models.AuditRecord{
					SubmissionID: decision.SubmissionID,
					Route:        r.URL.Path,
					Method:       r.Method,
					Allowed:      decision.Allowed,
					Reason:       decision.Reason,
					IP:           models.StringPtr(clientIP(r)),
					UserAgent:    models.StringPtr(r.UserAgent()),
				})
			}

			if !decision.Allowed {
				log.Info("access denied",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("submission_id", decision.SubmissionID),
					slog.String("reason", decision.Reason),
				)
				render.Status(r, decision.HTTPStatus)
				render.JSON(w, r, response.Error(decision.Reason))
				return
			}

			ctx := context.WithValue(r.Context(), SubmissionID, decision.SubmissionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
