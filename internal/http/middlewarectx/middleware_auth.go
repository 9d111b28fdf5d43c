// Package middlewarectx содержит HTTP middleware сервиса: разбор
// административного JWT, ограничение частоты запросов и гейт доступа
// к защищённым чтениям.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/medicaidready/internal/http/response"
	"github.com/magabrotheeeer/medicaidready/internal/lib/jwt"
	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// Subject ключ для subject административного токена
	Subject Key = "subject"
	// Role ключ для роли из токена
	Role Key = "role"
	// SubmissionID ключ для заявки, прошедшей гейт
	SubmissionID Key = "submission_id"
)

// AdminJWT разбирает заголовок Authorization, если он есть.
//
// Валидный токен кладёт subject и роль в контекст. Отсутствующий или
// невалидный токен не прерывает запрос: без роли запрос просто не получит
// административных прав.
func AdminJWT(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AdminJWT"

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := parser.ParseToken(tokenStr)
			if err != nil {
				log.Warn("invalid or expired token",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					sl.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), Subject, claims.Subject)
			ctx = context.WithValue(ctx, Role, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsAdmin сообщает, что в контексте роль администратора.
func IsAdmin(ctx context.Context) bool {
	role, _ := ctx.Value(Role).(string)
	return role == jwt.RoleAdmin
}

// RequireAdmin пропускает только запросы с ролью администратора.
func RequireAdmin(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsAdmin(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := r.Context().Value(Role).(string); ok {
				log.Warn("admin role required", slog.String("request_id", middleware.GetReqID(r.Context())))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("admin role required"))
				return
			}
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("missing or invalid authorization header"))
		})
	}
}

// SubmissionIDFromContext возвращает заявку, прошедшую гейт.
func SubmissionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SubmissionID).(string)
	return id, ok && id != ""
}
