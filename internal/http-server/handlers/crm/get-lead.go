package crm

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"moiport/entity"
	"moiport/internal/lib/api/cont"
	"moiport/internal/lib/api/response"
	"moiport/internal/lib/sl"
)

type LeadDetail struct {
	Lead       *entity.Lead         `json:"lead"`
	Activities []entity.CrmActivity `json:"activities"`
}

func GetLead(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.crm"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		viewer := cont.GetViewer(r.Context())
		leadID := chi.URLParam(r, "leadID")

		lead, activities, err := handler.GetLead(viewer, leadID)
		if err != nil {
			fail(w, r, logger, err, "Failed to get lead")
			return
		}

		render.JSON(w, r, response.Ok(LeadDetail{Lead: lead, Activities: activities}))
	}
}
