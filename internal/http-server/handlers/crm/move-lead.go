package crm

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"moiport/internal/lib/api/cont"
	"moiport/internal/lib/api/response"
	"moiport/internal/lib/sl"
)

type MoveRequest struct {
	StageID string `json:"stage_id"`
}

func MoveLead(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.crm"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		viewer := cont.GetViewer(r.Context())
		leadID := chi.URLParam(r, "leadID")

		var req MoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}
		if req.StageID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("stage_id is required"))
			return
		}

		lead, err := handler.MoveLead(viewer, leadID, req.StageID)
		if err != nil {
			fail(w, r, logger, err, "Failed to move lead")
			return
		}

		logger.Debug("lead moved",
			slog.String("lead_id", lead.ID),
			slog.String("stage_id", lead.StageID),
		)
		render.JSON(w, r, response.Ok(lead))
	}
}
