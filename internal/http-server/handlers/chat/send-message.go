package chat

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"moiport/internal/lib/api/cont"
	"moiport/internal/lib/api/response"
	"moiport/internal/lib/sl"
)

type SendRequest struct {
	Content string `json:"content"`
}

func SendMessage(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.chat"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		viewer := cont.GetViewer(r.Context())
		roomID := chi.URLParam(r, "roomID")

		var req SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}

		content := strings.TrimSpace(req.Content)
		if content == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Message content is empty"))
			return
		}

		msg, err := handler.SendMessage(viewer, roomID, content)
		if err != nil {
			fail(w, r, logger, err, "Failed to send message")
			return
		}

		logger.Debug("message sent", slog.String("message_id", msg.ID))
		render.JSON(w, r, response.Ok(msg))
	}
}
