// Package checklist защищённое чтение чек-листа заявки.
package checklist

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/medicaidready/internal/http/middlewarectx"
	"github.com/magabrotheeeer/medicaidready/internal/http/response"
)

// Item пункт чек-листа.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Checklist тело ответа.
type Checklist struct {
	SubmissionID string `json:"submission_id,omitempty"`
	Items        []Item `json:"items"`
}

// Handler godoc
// @Summary      Чек-лист заявки
// @Tags         access
// @Produce      json
// @Param        submission_id  query  string  false  "Идентификатор заявки"
// @Success      200  {object}  response.Response{data=Checklist}
// @Failure      403  {object}  response.ErrorResponse
// @Router       /checklist [get]
func Handler(w http.ResponseWriter, r *http.Request) {
	id, _ := middlewarectx.SubmissionIDFromContext(r.Context())
	render.JSON(w, r, response.OKWithData(Checklist{
		SubmissionID: id,
		Items:        []Item{},
	}))
}
