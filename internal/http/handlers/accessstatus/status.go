// Package accessstatus отдаёт состояние доступа заявки, прошедшей гейт.
package accessstatus

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/medicaidready/internal/http/middlewarectx"
	"github.com/magabrotheeeer/medicaidready/internal/http/response"
	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/models"
	"github.com/magabrotheeeer/medicaidready/internal/services/submission"
)

// Service читает заявку.
type Service interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
}

// Status тело ответа.
type Status struct {
	SubmissionID       string     `json:"submission_id"`
	Status             string     `json:"status"`
	SubscriptionStatus *string    `json:"subscription_status"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary      Состояние доступа
// @Description  Возвращает статус заявки и зеркало подписки. Требует прохождения гейта доступа.
// @Tags         access
// @Produce      json
// @Param        submission_id  query  string  false  "Идентификатор заявки"
// @Success      200  {object}  response.Response{data=Status}
// @Failure      403  {object}  response.ErrorResponse
// @Failure      500  {object}  response.ErrorResponse
// @Router       /access/status [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.accessstatus"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, ok := middlewarectx.SubmissionIDFromContext(r.Context())
	if !ok {
		id = r.URL.Query().Get("submission_id")
	}
	if id == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing_submission_id"))
		return
	}

	sub, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		if submission.IsNotFound(err) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("submission_not_found"))
			return
		}
		log.Error("failed to read submission", slog.String("submission_id", id), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read submission"))
		return
	}

	render.JSON(w, r, response.OKWithData(Status{
		SubmissionID:       sub.ID,
		Status:             string(sub.Status),
		SubscriptionStatus: sub.SubscriptionStatus,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
	}))
}
