package crm

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"moiport/entity"
	"moiport/impl/core"
	"moiport/internal/lib/api/response"
)

type Core interface {
	ListLeads(viewer *entity.Viewer) ([]entity.Lead, error)
	GetLead(viewer *entity.Viewer, leadID string) (*entity.Lead, []entity.CrmActivity, error)
	MoveLead(viewer *entity.Viewer, leadID, stageID string) (*entity.Lead, error)
	ConvertLead(viewer *entity.Viewer, leadID string) (*entity.Customer, error)
	DeleteLead(viewer *entity.Viewer, leadID string) error
	AddActivity(viewer *entity.Viewer, leadID string, typ entity.ActivityType, content string, reminderDate *time.Time) (*entity.CrmActivity, error)
	ListPipelines(viewer *entity.Viewer) ([]entity.Pipeline, error)
	ListMembers(viewer *entity.Viewer) ([]entity.User, error)
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
