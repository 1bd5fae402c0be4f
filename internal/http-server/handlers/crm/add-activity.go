package crm

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"moiport/entity"
	"moiport/internal/lib/api/cont"
	"moiport/internal/lib/api/response"
	"moiport/internal/lib/sl"
)

type ActivityRequest struct {
	Type         string     `json:"type"`
	Content      string     `json:"content"`
	ReminderDate *time.Time `json:"reminder_date,omitempty"`
}

var allowedTypes = map[entity.ActivityType]bool{
	entity.ActivityNote:     true,
	entity.ActivityCall:     true,
	entity.ActivityEmail:    true,
	entity.ActivityMeeting:  true,
	entity.ActivityReminder: true,
}

func AddActivity(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.crm"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		viewer := cont.GetViewer(r.Context())
		leadID := chi.URLParam(r, "leadID")

		var req ActivityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}

		typ := entity.ActivityType(strings.ToUpper(req.Type))
		if !allowedTypes[typ] {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Unsupported activity type"))
			return
		}
		if typ == entity.ActivityReminder && req.ReminderDate == nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("reminder_date is required for reminders"))
			return
		}

		activity, err := handler.AddActivity(viewer, leadID, typ, req.Content, req.ReminderDate)
		if err != nil {
			fail(w, r, logger, err, "Failed to add activity")
			return
		}

		logger.Debug("activity added",
			slog.String("lead_id", leadID),
			slog.String("type", string(typ)),
		)
		render.JSON(w, r, response.Ok(activity))
	}
}
