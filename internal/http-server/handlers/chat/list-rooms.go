package chat

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"moiport/internal/lib/api/cont"
	"moiport/internal/lib/api/response"
	"moiport/internal/lib/sl"
)

func ListRooms(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.chat"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		viewer := cont.GetViewer(r.Context())

		rooms, err := handler.ListRooms(viewer)
		if err != nil {
			fail(w, r, logger, err, "Failed to list rooms")
			return
		}

		logger.Debug("rooms listed", slog.Int("count", len(rooms)))
		render.JSON(w, r, response.Ok(rooms))
	}
}
