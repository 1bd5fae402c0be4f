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

func ListPipelines(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.crm"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		viewer := cont.GetViewer(r.Context())

		pipelines, err := handler.ListPipelines(viewer)
		if err != nil {
			fail(w, r, logger, err, "Failed to list pipelines")
			return
		}

		render.JSON(w, r, response.Ok(pipelines))
	}
}
