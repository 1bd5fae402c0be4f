package core

import (
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"moiport/entity"
	"moiport/internal/lib/sl"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
)

type Repository interface {
	GetUserByID(id string) (*entity.User, error)
	ListTenantUsers(tenantID string) ([]entity.User, error)

	GetRoom(id string) (*entity.ChatRoom, error)
	ListRooms(filter bson.M) ([]entity.ChatRoom, error)
	MemberRoomIDs(tenantID, userID string) ([]string, error)
	IsMember(roomID, userID string) (bool, error)
	GetMessage(id string) (*entity.ChatMessage, error)
	InsertMessage(msg entity.ChatMessage) (bool, error)
	ListMessages(roomID string, limit, offset int) ([]entity.ChatMessage, error)
	TouchRoom(roomID string, at time.Time) error
	AdvanceMessageStatus(tenantID, roomID string, messageIDs []string, next entity.MessageStatus) ([]string, error)
	MarkMessageDeleted(tenantID, messageID string) error

	GetChannelConfig(tenantID string, source entity.Source) (*entity.ChannelConfig, error)

	GetPipeline(id string) (*entity.Pipeline, error)
	ListPipelines(viewer *entity.Viewer) ([]entity.Pipeline, error)
	ClientPipelineIDs(tenantID, customerID string) ([]string, error)
	GetStage(id string) (*entity.Stage, error)
	GetLead(id string) (*entity.Lead, error)
	ListLeads(filter bson.M) ([]entity.Lead, error)
	UpdateLeadStage(tenantID, leadID, stageID string) error
	UpdateLeadScore(leadID string, score int) error
	DeleteLead(tenantID, leadID string) error
	SetLeadWon(tenantID, leadID, customerID string) error
	InsertCustomer(customer entity.Customer) error
	FindCustomerByLead(tenantID, leadID string) (*entity.Customer, error)
	InsertActivity(activity entity.CrmActivity) (bool, error)
	ListActivities(leadID string) ([]entity.CrmActivity, error)
	GetLeadMapping(tenantID, formID string) (*entity.FacebookLeadMapping, error)
	RestrictedFormIDs(tenantID, viewerID string) ([]string, error)
}

// Realtime re-broadcasts persisted mutations to connected viewers.
type Realtime interface {
	MessageNew(msg entity.ChatMessage)
	MessageDeleted(tenantID, roomID, messageID string)
	LeadUpdated(lead entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping)
	LeadMoved(lead entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping)
	LeadDeleted(lead entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping)
}

// ChannelSender delivers staff replies back to the external platform the
// conversation came from.
type ChannelSender interface {
	SendInstagramMessage(conf *entity.ChannelConfig, recipientID, text string) error
	SendFacebookMessage(conf *entity.ChannelConfig, recipientID, text string) error
	SendWhatsAppMessage(conf *entity.ChannelConfig, recipientPhone, text string) error
}

type Core struct {
	repo   Repository
	rt     Realtime
	sender ChannelSender
	log    *slog.Logger
}

func New(log *slog.Logger) *Core {
	return &Core{
		log: log.With(sl.Module("core")),
	}
}

func (c *Core) SetRepository(repo Repository) {
	c.repo = repo
}

func (c *Core) SetRealtime(rt Realtime) {
	c.rt = rt
}

func (c *Core) SetChannelSender(sender ChannelSender) {
	c.sender = sender
}
