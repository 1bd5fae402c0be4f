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

func ConvertLead(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.crm"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		viewer := cont.GetViewer(r.Context())
		leadID := chi.URLParam(r, "leadID")

		customer, err := handler.ConvertLead(viewer, leadID)
		if err != nil {
			fail(w, r, logger, err, "Failed to convert lead")
			return
		}

		logger.Debug("lead converted", slog.String("customer_id", customer.ID))
		render.JSON(w, r, response.Ok(customer))
	}
}
