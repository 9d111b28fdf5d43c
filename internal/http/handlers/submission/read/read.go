// Package read реализует административное чтение заявки по ID.
package read

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/medicaidready/internal/http/response"
	"github.com/magabrotheeeer/medicaidready/internal/lib/sl"
	"github.com/magabrotheeeer/medicaidready/internal/models"
	"github.com/magabrotheeeer/medicaidready/internal/services/submission"
)

// Handler обрабатывает запросы на получение заявки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение заявки.
type Service interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary      Получить заявку
// @Description  Возвращает запись заявки вместе с зеркалом подписки
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "ID заявки"
// @Success      200  {object}  response.Response{data=models.Submission}
// @Failure      401  {object}  response.ErrorResponse
// @Failure      404  {object}  response.ErrorResponse
// @Failure      500  {object}  response.ErrorResponse
// @Router       /admin/submissions/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.submission.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
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

	render.JSON(w, r, response.OKWithData(sub))
}
