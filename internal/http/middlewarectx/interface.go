package middlewarectx

import (
	"context"
	"net/http"

	"github.com/magabrotheeeer/medicaidready/internal/lib/jwt"
	"github.com/magabrotheeeer/medicaidready/internal/models"
	"github.com/magabrotheeeer/medicaidready/internal/services/access"
)

// TokenParser проверяет административный токен.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// Gate принимает решение о доступе по запросу.
type Gate interface {
	Check(ctx context.Context, r *http.Request) access.Decision
}

// AuditRecorder принимает записи аудита без ожидания.
type AuditRecorder interface {
	Record(rec models.AuditRecord)
}

// DecisionCounter считает решения гейта.
type DecisionCounter interface {
	GateDecision(allowed bool, reason string)
}
