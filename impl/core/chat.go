package core

import (
	"log/slog"
	"time"

	"moiport/entity"
	"moiport/internal/lib/sl"
	"moiport/internal/visibility"
)

// ListRooms returns the rooms the viewer may see, most recently active first.
func (c *Core) ListRooms(viewer *entity.Viewer) ([]entity.ChatRoom, error) {
	memberRoomIDs, err := c.repo.MemberRoomIDs(viewer.TenantID, viewer.UserID)
	if err != nil {
		return nil, err
	}

	return c.repo.ListRooms(visibility.RoomFilter(viewer, memberRoomIDs))
}

// roomAccess loads the room and applies the visibility rules. Missing rooms
// and rooms outside the viewer's scope are both reported as ErrNotFound so
// callers cannot tell the two apart.
func (c *Core) roomAccess(viewer *entity.Viewer, roomID string) (*entity.ChatRoom, error) {
	room, err := c.repo.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	if room == nil || room.TenantID != viewer.TenantID {
		return nil, ErrNotFound
	}

	isMember, err := c.repo.IsMember(roomID, viewer.UserID)
	if err != nil {
		return nil, err
	}
	if !visibility.CanViewRoom(viewer, room, isMember) {
		return nil, ErrAccessDenied
	}

	return room, nil
}

func (c *Core) ListMessages(viewer *entity.Viewer, roomID string, limit, offset int) ([]entity.ChatMessage, error) {
	if _, err := c.roomAccess(viewer, roomID); err != nil {
		return nil, err
	}

	return c.repo.ListMessages(roomID, limit, offset)
}

// SendMessage persists a staff message and, for externally bound rooms,
// forwards it to the platform. A failed forward marks the stored message
// FAILED; the message is never retried and never rolled back.
func (c *Core) SendMessage(viewer *entity.Viewer, roomID, content string) (*entity.ChatMessage, error) {
	room, err := c.roomAccess(viewer, roomID)
	if err != nil {
		return nil, err
	}

	msg := entity.NewChatMessage(viewer.TenantID, room.ID, viewer.UserID, content, room.Platform, "", entity.StatusSent, time.Now())
	if _, err := c.repo.InsertMessage(*msg); err != nil {
		return nil, err
	}
	if err := c.repo.TouchRoom(room.ID, msg.CreatedAt); err != nil {
		c.log.Error("touch room", slog.String("room_id", room.ID), sl.Err(err))
	}

	c.rt.MessageNew(*msg)

	if room.Platform != entity.PlatformInternal {
		go c.forwardMessage(room, msg)
	}

	return msg, nil
}

func (c *Core) forwardMessage(room *entity.ChatRoom, msg *entity.ChatMessage) {
	err := c.deliver(room, msg.Content)
	if err == nil {
		return
	}

	c.log.Error("outbound send failed",
		slog.String("room_id", room.ID),
		slog.String("message_id", msg.ID),
		sl.Err(err),
	)

	if _, markErr := c.repo.AdvanceMessageStatus(msg.TenantID, room.ID, []string{msg.ID}, entity.StatusFailed); markErr != nil {
		c.log.Error("mark message failed", slog.String("message_id", msg.ID), sl.Err(markErr))
	}
}

func (c *Core) deliver(room *entity.ChatRoom, content string) error {
	var source entity.Source
	switch room.Platform {
	case entity.PlatformInstagram:
		source = entity.SourceInstagram
	case entity.PlatformFacebook:
		source = entity.SourceFacebook
	case entity.PlatformWhatsApp:
		source = entity.SourceWhatsAppCloud
	default:
		return nil
	}

	conf, err := c.repo.GetChannelConfig(room.TenantID, source)
	if err != nil {
		return err
	}
	if conf == nil {
		return ErrNotFound
	}

	switch room.Platform {
	case entity.PlatformInstagram:
		return c.sender.SendInstagramMessage(conf, room.ExternalID, content)
	case entity.PlatformFacebook:
		return c.sender.SendFacebookMessage(conf, room.ExternalID, content)
	default:
		return c.sender.SendWhatsAppMessage(conf, room.ExternalID, content)
	}
}

// DeleteMessage soft-deletes a message. Only the author or an admin may
// delete; the tombstone is broadcast so open clients drop it immediately.
func (c *Core) DeleteMessage(viewer *entity.Viewer, roomID, messageID string) error {
	if _, err := c.roomAccess(viewer, roomID); err != nil {
		return err
	}

	msg, err := c.repo.GetMessage(messageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.TenantID != viewer.TenantID || msg.RoomID != roomID {
		return ErrNotFound
	}
	if msg.UserID != viewer.UserID && !viewer.IsAdmin() {
		return ErrAccessDenied
	}

	if err := c.repo.MarkMessageDeleted(viewer.TenantID, messageID); err != nil {
		return err
	}

	c.rt.MessageDeleted(viewer.TenantID, roomID, messageID)
	return nil
}

// AuthorizeJoin implements the realtime join-room check.
func (c *Core) AuthorizeJoin(viewer *entity.Viewer, roomID string) (bool, error) {
	_, err := c.roomAccess(viewer, roomID)
	if err == ErrNotFound || err == ErrAccessDenied {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkRead advances messages to READ and reports which ids actually moved.
func (c *Core) MarkRead(viewer *entity.Viewer, roomID string, messageIDs []string) ([]string, error) {
	if _, err := c.roomAccess(viewer, roomID); err != nil {
		return nil, err
	}

	return c.repo.AdvanceMessageStatus(viewer.TenantID, roomID, messageIDs, entity.StatusRead)
}

// MarkDelivered advances messages to DELIVERED and reports which ids moved.
func (c *Core) MarkDelivered(viewer *entity.Viewer, roomID string, messageIDs []string) ([]string, error) {
	if _, err := c.roomAccess(viewer, roomID); err != nil {
		return nil, err
	}

	return c.repo.AdvanceMessageStatus(viewer.TenantID, roomID, messageIDs, entity.StatusDelivered)
}
