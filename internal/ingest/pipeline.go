package ingest

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"moiport/entity"
	crmrules "moiport/internal/crm"
	"moiport/internal/lib/sl"
)

// Store is the persistence surface the pipeline provisions through. All
// write operations are safe to re-run; the unique-index backstop turns a
// racing duplicate insert into a silent no-op.
type Store interface {
	ResolveChannel(source entity.Source, accountID string) (*entity.ChannelConfig, error)
	FindOrCreateVisitor(visitor entity.User) (*entity.User, error)

	FindOrCreateRoom(room entity.ChatRoom) (*entity.ChatRoom, bool, error)
	AddMembership(membership entity.ChatMembership) error
	HasMessage(roomID, externalID string) (bool, error)
	InsertMessage(msg entity.ChatMessage) (bool, error)
	TouchRoom(roomID string, at time.Time) error

	GetLeadMapping(tenantID, formID string) (*entity.FacebookLeadMapping, error)
	FindOrCreateDefaultPipeline(tenantID, customerID string) (*entity.Pipeline, *entity.Stage, error)
	GetPipeline(id string) (*entity.Pipeline, error)
	FindEquivalentLead(tenantID, formID, email, phone, name string) (*entity.Lead, error)
	FindLeadByPhone(tenantID, phone string) (*entity.Lead, error)
	InsertLead(lead entity.Lead) error
	HasActivity(tenantID, externalID string) (bool, error)
	InsertActivity(activity entity.CrmActivity) (bool, error)
	ListActivities(leadID string) ([]entity.CrmActivity, error)
	UpdateLeadScore(leadID string, score int) error
}

// Broadcaster fans provisioner output out to connected viewers.
type Broadcaster interface {
	RoomCreated(room entity.ChatRoom)
	MessageNew(msg entity.ChatMessage)
	LeadCreated(lead entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping)
	LeadUpdated(lead entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping)
	WhatsAppMessage(lead entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping, activity entity.CrmActivity)
}

// LeadFetcher pulls the field values of a Lead-Ad submission from the
// provider. Optional: without one, imported leads carry only the form ids.
type LeadFetcher interface {
	FetchLead(accessToken, leadgenID string) (*entity.LeadFormData, error)
}

// Ingestor runs the inbound pipeline: normalize, resolve tenant, dedup,
// provision, broadcast.
type Ingestor struct {
	store     Store
	fetcher   LeadFetcher
	broadcast Broadcaster
	validate  *validator.Validate
	log       *slog.Logger
}

func New(store Store, fetcher LeadFetcher, broadcast Broadcaster, log *slog.Logger) *Ingestor {
	return &Ingestor{
		store:     store,
		fetcher:   fetcher,
		broadcast: broadcast,
		validate:  validator.New(),
		log:       log.With(sl.Module("ingest")),
	}
}

// Ingest processes one raw webhook delivery. It never returns an error to the
// caller: an unresolvable tenant drops the event, and one failing entry never
// blocks its siblings. The webhook handler has already acknowledged the
// delivery by the time this runs.
func (i *Ingestor) Ingest(source entity.Source, body []byte) {
	events := Normalize(source, body)

	channels := map[string]*entity.ChannelConfig{}
	for _, event := range events {
		conf, ok := channels[event.AccountID]
		if !ok {
			resolved, err := i.store.ResolveChannel(event.Source, event.AccountID)
			if err != nil {
				i.log.Error("resolve channel", slog.String("account_id", event.AccountID), sl.Err(err))
				continue
			}
			conf = resolved
			channels[event.AccountID] = conf
		}
		if conf == nil {
			// Platform account not connected to any tenant; not an error.
			i.log.Debug("unresolved account dropped",
				slog.String("source", string(event.Source)),
				slog.String("account_id", event.AccountID),
			)
			continue
		}

		if err := i.apply(conf, event); err != nil {
			i.log.Error("event skipped",
				slog.String("source", string(event.Source)),
				slog.String("external_id", event.ExternalID),
				sl.Err(err),
			)
		}
	}
}

func (i *Ingestor) apply(conf *entity.ChannelConfig, event entity.CanonicalEvent) error {
	switch {
	case event.Kind == entity.EventLeadForm:
		return i.importLeadForm(conf, event)
	case event.Platform == entity.PlatformWhatsApp:
		return i.recordWhatsAppActivity(conf, event)
	default:
		return i.recordChatMessage(conf, event)
	}
}

// recordChatMessage handles Instagram/Facebook DMs and comments: visitor,
// room on its natural key, then the message itself.
func (i *Ingestor) recordChatMessage(conf *entity.ChannelConfig, event entity.CanonicalEvent) error {
	visitor, err := i.store.FindOrCreateVisitor(
		*entity.NewVisitor(conf.TenantID, event.Platform, event.SenderID, event.SenderName),
	)
	if err != nil {
		return fmt.Errorf("provision visitor: %w", err)
	}

	roomType := entity.RoomDM
	if event.Kind == entity.EventComment {
		roomType = entity.RoomChannel
	}
	name := event.SenderName
	if name == "" {
		name = event.SenderID
	}

	room, created, err := i.store.FindOrCreateRoom(
		*entity.NewChannelRoom(conf.TenantID, conf.CustomerID, name, roomType, event.Platform, event.ThreadID),
	)
	if err != nil {
		return fmt.Errorf("provision room: %w", err)
	}
	if created {
		membership := entity.ChatMembership{
			RoomID:    room.ID,
			UserID:    visitor.ID,
			TenantID:  conf.TenantID,
			CreatedAt: time.Now(),
		}
		if err := i.store.AddMembership(membership); err != nil {
			i.log.Error("seed membership", slog.String("room_id", room.ID), sl.Err(err))
		}
		i.broadcast.RoomCreated(*room)
	}

	if seen, err := i.store.HasMessage(room.ID, event.ExternalID); err != nil {
		return fmt.Errorf("dedup check: %w", err)
	} else if seen {
		return nil
	}

	msg := entity.NewChatMessage(conf.TenantID, room.ID, visitor.ID, event.Content,
		event.Platform, event.ExternalID, entity.StatusDelivered, event.Timestamp)

	inserted, err := i.store.InsertMessage(*msg)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if !inserted {
		// Concurrent delivery of the same external id won the insert.
		return nil
	}

	if err := i.store.TouchRoom(room.ID, msg.CreatedAt); err != nil {
		i.log.Error("touch room", slog.String("room_id", room.ID), sl.Err(err))
	}
	i.broadcast.MessageNew(*msg)

	return nil
}

// recordWhatsAppActivity attaches inbound WhatsApp traffic to a lead,
// creating one in the default pipeline when the phone number is unknown.
func (i *Ingestor) recordWhatsAppActivity(conf *entity.ChannelConfig, event entity.CanonicalEvent) error {
	if seen, err := i.store.HasActivity(conf.TenantID, event.ExternalID); err != nil {
		return fmt.Errorf("dedup check: %w", err)
	} else if seen {
		return nil
	}

	visitor, err := i.store.FindOrCreateVisitor(
		*entity.NewVisitor(conf.TenantID, entity.PlatformWhatsApp, event.SenderID, event.SenderName),
	)
	if err != nil {
		return fmt.Errorf("provision visitor: %w", err)
	}

	lead, err := i.store.FindLeadByPhone(conf.TenantID, event.SenderID)
	if err != nil {
		return fmt.Errorf("find lead: %w", err)
	}

	var pipeline *entity.Pipeline
	var mapping *entity.FacebookLeadMapping
	created := false
	if lead == nil {
		defaultPipeline, stage, err := i.store.FindOrCreateDefaultPipeline(conf.TenantID, conf.CustomerID)
		if err != nil {
			return fmt.Errorf("provision pipeline: %w", err)
		}
		name := event.SenderName
		if name == "" {
			name = event.SenderID
		}
		fresh := entity.NewLead(conf.TenantID, conf.CustomerID, defaultPipeline.ID, stage.ID, name, entity.LeadSourceWhatsApp)
		fresh.Phone = event.SenderID
		if err := i.store.InsertLead(*fresh); err != nil {
			return fmt.Errorf("insert lead: %w", err)
		}
		lead = fresh
		pipeline = defaultPipeline
		created = true
	} else {
		// The broadcast target evaluates the full lead rule table, which
		// needs the pipeline scope and any form allow-list.
		pipeline, err = i.store.GetPipeline(lead.PipelineID)
		if err != nil {
			return fmt.Errorf("find pipeline: %w", err)
		}
		if lead.FacebookFormID != "" {
			mapping, err = i.store.GetLeadMapping(conf.TenantID, lead.FacebookFormID)
			if err != nil {
				return fmt.Errorf("find mapping: %w", err)
			}
		}
	}

	activity := entity.NewActivity(conf.TenantID, lead.ID, visitor.ID, entity.ActivityWhatsAppIn, event.Content)
	activity.ExternalID = event.ExternalID
	activity.CreatedAt = event.Timestamp

	inserted, err := i.store.InsertActivity(*activity)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	if !inserted {
		return nil
	}

	i.rescore(lead)

	if created {
		i.broadcast.LeadCreated(*lead, pipeline, mapping)
	} else {
		i.broadcast.LeadUpdated(*lead, pipeline, mapping)
	}
	i.broadcast.WhatsAppMessage(*lead, pipeline, mapping, *activity)

	return nil
}

// importLeadForm turns a Lead-Ad submission into a lead. The leadgen id is
// claimed through a marker activity before the lead row is written, so the
// unique (tenant, external id) index makes concurrent deliveries collapse to
// one import.
func (i *Ingestor) importLeadForm(conf *entity.ChannelConfig, event entity.CanonicalEvent) error {
	form := event.LeadForm
	if form == nil {
		return fmt.Errorf("lead form event without form data")
	}

	if seen, err := i.store.HasActivity(conf.TenantID, form.LeadgenID); err != nil {
		return fmt.Errorf("dedup check: %w", err)
	} else if seen {
		return nil
	}

	if i.fetcher != nil {
		fetched, err := i.fetcher.FetchLead(conf.AccessToken, form.LeadgenID)
		if err != nil {
			// The ids are still enough to import a stub lead.
			i.log.Warn("lead field fetch failed", slog.String("leadgen_id", form.LeadgenID), sl.Err(err))
		} else if fetched != nil {
			form.Name = fetched.Name
			form.Email = fetched.Email
			form.Phone = fetched.Phone
		}
	}

	equivalent, err := i.store.FindEquivalentLead(conf.TenantID, form.FormID, form.Email, form.Phone, form.Name)
	if err != nil {
		return fmt.Errorf("equivalent lead check: %w", err)
	}
	if equivalent != nil {
		return nil
	}

	mapping, err := i.store.GetLeadMapping(conf.TenantID, form.FormID)
	if err != nil {
		return fmt.Errorf("find mapping: %w", err)
	}

	var pipeline *entity.Pipeline
	pipelineID, stageID, customerID := "", "", conf.CustomerID
	if mapping != nil && mapping.PipelineID != "" && mapping.StageID != "" {
		pipelineID, stageID = mapping.PipelineID, mapping.StageID
		if mapping.CustomerID != "" {
			customerID = mapping.CustomerID
		}
		pipeline, err = i.store.GetPipeline(pipelineID)
		if err != nil {
			return fmt.Errorf("find pipeline: %w", err)
		}
	} else {
		defaultPipeline, stage, err := i.store.FindOrCreateDefaultPipeline(conf.TenantID, customerID)
		if err != nil {
			return fmt.Errorf("provision pipeline: %w", err)
		}
		pipeline, pipelineID, stageID = defaultPipeline, defaultPipeline.ID, stage.ID
	}

	name := form.Name
	if name == "" {
		name = fmt.Sprintf("Facebook Lead %s", form.LeadgenID)
	}

	lead := entity.NewLead(conf.TenantID, customerID, pipelineID, stageID, name, entity.LeadSourceFacebook)
	lead.Email = form.Email
	lead.Phone = form.Phone
	lead.FacebookFormID = form.FormID
	if mapping != nil {
		lead.AssigneeID = mapping.DefaultAssigneeID
	}
	if err := i.validate.Struct(lead); err != nil {
		// Provider field values are untrusted; a malformed email is dropped
		// rather than failing the whole import.
		i.log.Warn("lead form field rejected",
			slog.String("leadgen_id", form.LeadgenID),
			sl.Err(err),
		)
		lead.Email = ""
	}
	lead.Score = crmrules.Score(lead, nil)
	lead.CreatedAt = event.Timestamp
	lead.UpdatedAt = event.Timestamp

	marker := entity.NewActivity(conf.TenantID, lead.ID, "", entity.ActivitySystem, "Facebook Lead Ads aktarımı")
	marker.ExternalID = form.LeadgenID
	marker.CreatedAt = event.Timestamp

	claimed, err := i.store.InsertActivity(*marker)
	if err != nil {
		return fmt.Errorf("claim leadgen id: %w", err)
	}
	if !claimed {
		return nil
	}

	if err := i.store.InsertLead(*lead); err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}

	i.broadcast.LeadCreated(*lead, pipeline, mapping)

	return nil
}

// rescore recomputes and persists the lead score after a new activity.
func (i *Ingestor) rescore(lead *entity.Lead) {
	activities, err := i.store.ListActivities(lead.ID)
	if err != nil {
		i.log.Error("list activities for score", slog.String("lead_id", lead.ID), sl.Err(err))
		return
	}
	score := crmrules.Score(lead, activities)
	if err := i.store.UpdateLeadScore(lead.ID, score); err != nil {
		i.log.Error("update lead score", slog.String("lead_id", lead.ID), sl.Err(err))
	}
}
