// Package revoke реализует ручной отзыв доступа администратором.
package revoke

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/medicaidready/internal/http/response"
	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/models"
	"github.com/magabrotheeeer/medicaidready/internal/services/submission"
)

// Request тело запроса. Пустая причина заменяется на admin_revoked.
type Request struct {
	Reason string `json:"reason" validate:"omitempty,max=64" example:"chargeback"`
}

// Service описывает отзыв и чтение заявки.
type Service interface {
	RevokeByID(ctx context.Context, id, reason string, patch *models.MirrorPatch) ([]string, error)
	FindByID(ctx context.Context, id string) (*models.Submission, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary      Отозвать доступ
// @Description  Отзывает доступ у заявки. Повторный отзыв ничего не меняет.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  string   true   "ID заявки"
// @Param        request  body  Request  false  "Причина"
// @Success      200  {object}  response.Response{data=models.Submission}
// @Failure      400  {object}  response.ErrorResponse
// @Failure      404  {object}  response.ErrorResponse
// @Failure      422  {object}  response.ErrorResponse
// @Failure      500  {object}  response.ErrorResponse
// @Router       /admin/submissions/{id}/revoke [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.submission.revoke"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	id := chi.URLParam(r, "id")

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = models.RevokeAdmin
	}

	ids, err := h.service.RevokeByID(r.Context(), id, reason, nil)
	if err != nil {
		log.Error("failed to revoke submission", slog.String("submission_id", id), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not revoke submission"))
		return
	}

	// Пустой результат: заявки нет или она уже отозвана.
	sub, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		if submission.IsNotFound(err) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("submission_not_found"))
			return
		}
		log.Error("failed to read revoked submission", slog.String("submission_id", id), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read submission"))
		return
	}

	log.Info("submission revoked by admin",
		slog.String("submission_id", id),
		slog.String("reason", reason),
		slog.Bool("changed", len(ids) > 0),
	)
	render.JSON(w, r, response.OKWithData(sub))
}
