package crm

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"moiport/internal/lib/api/cont"
	"moiport/internal/lib/api/response"
	"moiport/internal/lib/sl"
)

func DeleteLead(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.crm"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		viewer := cont.GetViewer(r.Context())
		leadID := chi.URLParam(r, "leadID")

		if err := handler.DeleteLead(viewer, leadID); err != nil {
			fail(w, r, logger, err, "Failed to delete lead")
			return
		}

		logger.Debug("lead deleted", slog.String("lead_id", leadID))
		render.JSON(w, r, response.Ok(nil))
	}
}
