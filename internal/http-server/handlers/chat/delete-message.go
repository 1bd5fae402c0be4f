package chat

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

func DeleteMessage(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.chat"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		viewer := cont.GetViewer(r.Context())
		roomID := chi.URLParam(r, "roomID")
		messageID := chi.URLParam(r, "messageID")

		if err := handler.DeleteMessage(viewer, roomID, messageID); err != nil {
			fail(w, r, logger, err, "Failed to delete message")
			return
		}

		logger.Debug("message deleted", slog.String("message_id", messageID))
		render.JSON(w, r, response.Ok(nil))
	}
}
