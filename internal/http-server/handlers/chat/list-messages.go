package chat

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"moiport/internal/lib/api/cont"
	"moiport/internal/lib/api/response"
	"moiport/internal/lib/sl"
)

const defaultPageSize = 50

func ListMessages(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.chat"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		viewer := cont.GetViewer(r.Context())
		roomID := chi.URLParam(r, "roomID")

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || limit > 200 {
			limit = defaultPageSize
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if offset < 0 {
			offset = 0
		}

		messages, err := handler.ListMessages(viewer, roomID, limit, offset)
		if err != nil {
			fail(w, r, logger, err, "Failed to list messages")
			return
		}

		logger.Debug("messages listed",
			slog.String("room_id", roomID),
			slog.Int("count", len(messages)),
		)
		render.JSON(w, r, response.Ok(messages))
	}
}
