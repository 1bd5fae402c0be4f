package crm

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"moiport/internal/lib/api/cont"
	"moiport/internal/lib/api/response"
	"moiport/internal/lib/sl"
)

func ListLeads(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.crm"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		viewer := cont.GetViewer(r.Context())

		leads, err := handler.ListLeads(viewer)
		if err != nil {
			fail(w, r, logger, err, "Failed to list leads")
			return
		}

		logger.Debug("leads listed", slog.Int("count", len(leads)))
		render.JSON(w, r, response.Ok(leads))
	}
}
