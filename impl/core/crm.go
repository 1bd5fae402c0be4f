package core

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"moiport/entity"
	"moiport/internal/crm"
	"moiport/internal/lib/sl"
	"moiport/internal/visibility"
)

// leadScope gathers the per-viewer inputs of the lead visibility filter.
func (c *Core) leadScope(viewer *entity.Viewer) (restrictedFormIDs, clientPipelineIDs []string, err error) {
	if viewer.Role == entity.ClientRole {
		clientPipelineIDs, err = c.repo.ClientPipelineIDs(viewer.TenantID, viewer.CustomerID)
		return nil, clientPipelineIDs, err
	}

	if !viewer.IsAdmin() {
		restrictedFormIDs, err = c.repo.RestrictedFormIDs(viewer.TenantID, viewer.UserID)
		return restrictedFormIDs, nil, err
	}

	return nil, nil, nil
}

func (c *Core) ListLeads(viewer *entity.Viewer) ([]entity.Lead, error) {
	restrictedFormIDs, clientPipelineIDs, err := c.leadScope(viewer)
	if err != nil {
		return nil, err
	}

	return c.repo.ListLeads(visibility.LeadFilter(viewer, restrictedFormIDs, clientPipelineIDs))
}

// loadLead fetches the lead with its pipeline and Lead-Ad mapping and applies
// the visibility rules. Out-of-scope leads surface as ErrNotFound.
func (c *Core) loadLead(viewer *entity.Viewer, leadID string) (*entity.Lead, *entity.Pipeline, *entity.FacebookLeadMapping, error) {
	lead, err := c.repo.GetLead(leadID)
	if err != nil {
		return nil, nil, nil, err
	}
	if lead == nil || lead.TenantID != viewer.TenantID {
		return nil, nil, nil, ErrNotFound
	}

	pipeline, err := c.repo.GetPipeline(lead.PipelineID)
	if err != nil {
		return nil, nil, nil, err
	}

	var mapping *entity.FacebookLeadMapping
	if lead.FacebookFormID != "" {
		mapping, err = c.repo.GetLeadMapping(lead.TenantID, lead.FacebookFormID)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	if !visibility.CanViewLead(viewer, lead, pipeline, mapping) {
		return nil, nil, nil, ErrAccessDenied
	}

	return lead, pipeline, mapping, nil
}

func (c *Core) GetLead(viewer *entity.Viewer, leadID string) (*entity.Lead, []entity.CrmActivity, error) {
	lead, _, _, err := c.loadLead(viewer, leadID)
	if err != nil {
		return nil, nil, err
	}

	activities, err := c.repo.ListActivities(lead.ID)
	if err != nil {
		return nil, nil, err
	}

	return lead, activities, nil
}

// MoveLead shifts a lead to another stage of its own pipeline.
func (c *Core) MoveLead(viewer *entity.Viewer, leadID, stageID string) (*entity.Lead, error) {
	lead, pipeline, mapping, err := c.loadLead(viewer, leadID)
	if err != nil {
		return nil, err
	}

	stage, err := c.repo.GetStage(stageID)
	if err != nil {
		return nil, err
	}
	if stage == nil || stage.TenantID != viewer.TenantID || stage.PipelineID != lead.PipelineID {
		return nil, ErrNotFound
	}

	if err := c.repo.UpdateLeadStage(viewer.TenantID, lead.ID, stage.ID); err != nil {
		return nil, err
	}

	lead.StageID = stage.ID
	lead.UpdatedAt = time.Now()
	c.rt.LeadMoved(*lead, pipeline, mapping)

	return lead, nil
}

// ConvertLead marks the lead WON and creates its Customer. Repeating the
// conversion returns the existing customer instead of creating another.
func (c *Core) ConvertLead(viewer *entity.Viewer, leadID string) (*entity.Customer, error) {
	lead, pipeline, mapping, err := c.loadLead(viewer, leadID)
	if err != nil {
		return nil, err
	}

	existing, err := c.repo.FindCustomerByLead(viewer.TenantID, lead.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	customer := entity.Customer{
		ID:        uuid.NewString(),
		TenantID:  viewer.TenantID,
		Name:      lead.Name,
		Email:     lead.Email,
		Phone:     lead.Phone,
		LeadID:    lead.ID,
		CreatedAt: time.Now(),
	}
	if err := c.repo.InsertCustomer(customer); err != nil {
		return nil, err
	}

	if err := c.repo.SetLeadWon(viewer.TenantID, lead.ID, customer.ID); err != nil {
		return nil, err
	}

	lead.Status = entity.LeadWon
	lead.CustomerID = customer.ID
	lead.UpdatedAt = time.Now()
	c.rt.LeadUpdated(*lead, pipeline, mapping)

	c.log.Info("lead converted",
		slog.String("lead_id", lead.ID),
		slog.String("customer_id", customer.ID),
	)
	return &customer, nil
}

// DeleteLead removes a lead and its timeline. Only admins and the assignee may
// delete; room-style visibility alone does not grant it.
func (c *Core) DeleteLead(viewer *entity.Viewer, leadID string) error {
	lead, pipeline, mapping, err := c.loadLead(viewer, leadID)
	if err != nil {
		return err
	}

	if !viewer.IsAdmin() && lead.AssigneeID != viewer.UserID {
		return ErrAccessDenied
	}

	if err := c.repo.DeleteLead(viewer.TenantID, lead.ID); err != nil {
		return err
	}

	c.rt.LeadDeleted(*lead, pipeline, mapping)

	c.log.Info("lead deleted",
		slog.String("lead_id", lead.ID),
		slog.String("user_id", viewer.UserID),
	)
	return nil
}

// AddActivity appends a timeline entry and recomputes the lead score.
// ReminderDate is only meaningful for REMINDER entries.
func (c *Core) AddActivity(viewer *entity.Viewer, leadID string, typ entity.ActivityType, content string, reminderDate *time.Time) (*entity.CrmActivity, error) {
	lead, pipeline, mapping, err := c.loadLead(viewer, leadID)
	if err != nil {
		return nil, err
	}

	activity := entity.NewActivity(viewer.TenantID, lead.ID, viewer.UserID, typ, content)
	if typ == entity.ActivityReminder {
		activity.ReminderDate = reminderDate
	}

	if _, err := c.repo.InsertActivity(*activity); err != nil {
		return nil, err
	}

	c.rescore(lead, pipeline, mapping)
	return activity, nil
}

// rescore recomputes and persists the lead's engagement score, then
// broadcasts the updated lead.
func (c *Core) rescore(lead *entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping) {
	activities, err := c.repo.ListActivities(lead.ID)
	if err != nil {
		c.log.Error("list activities for rescore", slog.String("lead_id", lead.ID), sl.Err(err))
		return
	}

	score := crm.Score(lead, activities)
	if score == lead.Score {
		return
	}

	if err := c.repo.UpdateLeadScore(lead.ID, score); err != nil {
		c.log.Error("update lead score", slog.String("lead_id", lead.ID), sl.Err(err))
		return
	}

	lead.Score = score
	c.rt.LeadUpdated(*lead, pipeline, mapping)
}

func (c *Core) ListPipelines(viewer *entity.Viewer) ([]entity.Pipeline, error) {
	return c.repo.ListPipelines(viewer)
}

// ListMembers returns the tenant members the viewer may see, applying the
// same member rule the socket presence events use.
func (c *Core) ListMembers(viewer *entity.Viewer) ([]entity.User, error) {
	users, err := c.repo.ListTenantUsers(viewer.TenantID)
	if err != nil {
		return nil, err
	}

	visible := make([]entity.User, 0, len(users))
	for _, user := range users {
		if visibility.CanListMember(viewer, &user) {
			visible = append(visible, user)
		}
	}
	return visible, nil
}
