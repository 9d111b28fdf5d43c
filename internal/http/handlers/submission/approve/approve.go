// Package approve реализует ручное одобрение заявки администратором.
//
// Тело запроса частично обновляет зеркало подписки. current_period_end
// принимается в любом формате, который понимает periodend.
package approve

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
	"github.com/magabrotheeeer/medicaidready/internal/lib/periodend"
	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/models"
	"github.com/magabrotheeeer/medicaidready/internal/services/submission"
)

// Request тело запроса. Все поля необязательны.
type Request struct {
	SubscriptionID     *string `json:"subscription_id" validate:"omitempty,max=255"`
	CustomerID         *string `json:"customer_id" validate:"omitempty,max=255"`
	SubscriptionStatus *string `json:"subscription_status" validate:"omitempty,oneof=active trialing past_due canceled unpaid incomplete incomplete_expired paused"`
	CurrentPeriodEnd   any     `json:"current_period_end" swaggertype:"string" example:"2025-02-01T00:00:00Z"`
}

// Service описывает одобрение и чтение заявки.
type Service interface {
	Approve(ctx context.Context, id string, patch *models.MirrorPatch) ([]string, error)
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
// @Summary      Одобрить заявку
// @Description  Одобряет заявку, снимает отзыв доступа и обновляет зеркало подписки
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  string   true   "ID заявки"
// @Param        request  body  Request  false  "Зеркало подписки"
// @Success      200  {object}  response.Response{data=models.Submission}
// @Failure      400  {object}  response.ErrorResponse
// @Failure      404  {object}  response.ErrorResponse
// @Failure      422  {object}  response.ErrorResponse
// @Failure      500  {object}  response.ErrorResponse
// @Router       /admin/submissions/{id}/approve [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.submission.approve"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	id := chi.URLParam(r, "id")

	var req Request
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
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
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	patch := &models.MirrorPatch{
		SubscriptionID:     req.SubscriptionID,
		CustomerID:         req.CustomerID,
		SubscriptionStatus: req.SubscriptionStatus,
	}
	if req.CurrentPeriodEnd != nil {
		patch.CurrentPeriodEnd = periodend.ParsePtr(req.CurrentPeriodEnd)
		if patch.CurrentPeriodEnd == nil {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("field current_period_end is not a valid period end"))
			return
		}
	}

	ids, err := h.service.Approve(r.Context(), id, patch)
	if err != nil {
		log.Error("failed to approve submission", slog.String("submission_id", id), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not approve submission"))
		return
	}
	if len(ids) == 0 {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("submission_not_found"))
		return
	}

	sub, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if submission.IsNotFound(err) {
			status = http.StatusNotFound
		}
		log.Error("failed to read approved submission", slog.String("submission_id", id), sl.Err(err))
		render.Status(r, status)
		render.JSON(w, r, response.Error("could not read submission"))
		return
	}

	log.Info("submission approved by admin", slog.String("submission_id", id))
	render.JSON(w, r, response.OKWithData(sub))
}
