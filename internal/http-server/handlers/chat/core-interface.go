package chat

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"moiport/entity"
	"moiport/impl/core"
	"moiport/internal/lib/api/response"
)

type Core interface {
	ListRooms(viewer *entity.Viewer) ([]entity.ChatRoom, error)
	ListMessages(viewer *entity.Viewer, roomID string, limit, offset int) ([]entity.ChatMessage, error)
	SendMessage(viewer *entity.Viewer, roomID, content string) (*entity.ChatMessage, error)
	DeleteMessage(viewer *entity.Viewer, roomID, messageID string) error
}

// fail maps core errors onto HTTP statuses and renders the error envelope.
func fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		render.Status(r, http.StatusNotFound)
	case errors.Is(err, core.ErrAccessDenied):
		render.Status(r, http.StatusForbidden)
	default:
		logger.Error(msg, slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
	}
	render.JSON(w, r, response.Error(msg))
}
