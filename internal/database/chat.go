package repository

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"moiport/entity"
)

// FindOrCreateRoom upserts a room on its natural key
// (tenant_id, platform, external_id). The second return value reports whether
// the room was created by this call.
func (m *MongoDB) FindOrCreateRoom(room entity.ChatRoom) (*entity.ChatRoom, bool, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatRoomsCollection)
	filter := bson.D{
		{"tenant_id", room.TenantID},
		{"platform", room.Platform},
		{"external_id", room.ExternalID},
	}
	update := bson.D{{"$setOnInsert", room}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var result entity.ChatRoom
	err = collection.FindOneAndUpdate(m.ctx, filter, update, opts).Decode(&result)
	if err != nil {
		return nil, false, fmt.Errorf("mongodb upsert room: %w", err)
	}

	return &result, result.ID == room.ID, nil
}

func (m *MongoDB) GetRoom(id string) (*entity.ChatRoom, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatRoomsCollection)

	var room entity.ChatRoom
	err = collection.FindOne(m.ctx, bson.D{{"_id", id}}).Decode(&room)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb find room: %w", err)
	}

	return &room, nil
}

// TouchRoom bumps the room's updated_at; conversation lists order by it.
func (m *MongoDB) TouchRoom(roomID string, at time.Time) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatRoomsCollection)
	_, err = collection.UpdateOne(m.ctx,
		bson.D{{"_id", roomID}},
		bson.D{{"$set", bson.D{{"updated_at", at}}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb touch room: %w", err)
	}

	return nil
}

// AddMembership inserts a membership row; re-adding an existing member is a
// no-op.
func (m *MongoDB) AddMembership(membership entity.ChatMembership) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(membershipsCollection)
	_, err = collection.InsertOne(m.ctx, membership)
	if err != nil {
		if isDup(err) {
			return nil
		}
		return fmt.Errorf("mongodb insert membership: %w", err)
	}

	return nil
}

func (m *MongoDB) IsMember(roomID, userID string) (bool, error) {
	connection, err := m.connect()
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(membershipsCollection)
	count, err := collection.CountDocuments(m.ctx, bson.D{{"room_id", roomID}, {"user_id", userID}})
	if err != nil {
		return false, fmt.Errorf("mongodb count membership: %w", err)
	}

	return count > 0, nil
}

// MemberRoomIDs returns the ids of all rooms the user holds a membership in.
func (m *MongoDB) MemberRoomIDs(tenantID, userID string) ([]string, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(membershipsCollection)
	cursor, err := collection.Find(m.ctx, bson.D{{"tenant_id", tenantID}, {"user_id", userID}})
	if err != nil {
		return nil, fmt.Errorf("mongodb find memberships: %w", err)
	}
	defer cursor.Close(m.ctx)

	var ids []string
	for cursor.Next(m.ctx) {
		var row entity.ChatMembership
		if err := cursor.Decode(&row); err != nil {
			continue
		}
		ids = append(ids, row.RoomID)
	}

	return ids, nil
}

// HasMessage is the soft dedup pre-check on the (room, external id) key.
func (m *MongoDB) HasMessage(roomID, externalID string) (bool, error) {
	connection, err := m.connect()
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)
	count, err := collection.CountDocuments(m.ctx, bson.D{{"room_id", roomID}, {"external_id", externalID}})
	if err != nil {
		return false, fmt.Errorf("mongodb count messages: %w", err)
	}

	return count > 0, nil
}

// InsertMessage inserts a message. A duplicate-key violation on the
// (room_id, external_id) index means a concurrent delivery already applied
// the event; that case returns (false, nil).
func (m *MongoDB) InsertMessage(msg entity.ChatMessage) (bool, error) {
	connection, err := m.connect()
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)
	_, err = collection.InsertOne(m.ctx, msg)
	if err != nil {
		if isDup(err) {
			return false, nil
		}
		return false, fmt.Errorf("mongodb insert message: %w", err)
	}

	return true, nil
}

// ListMessages returns non-deleted messages of a room, newest first.
func (m *MongoDB) ListMessages(roomID string, limit, offset int) ([]entity.ChatMessage, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)
	filter := bson.D{
		{"room_id", roomID},
		{"deleted_at", bson.D{{"$exists", false}}},
	}
	opts := options.Find().
		SetSort(bson.D{{"created_at", -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find messages: %w", err)
	}
	defer cursor.Close(m.ctx)

	var messages []entity.ChatMessage
	if err = cursor.All(m.ctx, &messages); err != nil {
		return nil, fmt.Errorf("mongodb decode messages: %w", err)
	}

	return messages, nil
}

// ListRooms returns the rooms matching the supplied visibility filter, most
// recently active first.
func (m *MongoDB) ListRooms(filter bson.M) ([]entity.ChatRoom, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatRoomsCollection)
	opts := options.Find().SetSort(bson.D{{"updated_at", -1}})

	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find rooms: %w", err)
	}
	defer cursor.Close(m.ctx)

	var rooms []entity.ChatRoom
	if err = cursor.All(m.ctx, &rooms); err != nil {
		return nil, fmt.Errorf("mongodb decode rooms: %w", err)
	}

	return rooms, nil
}

// AdvanceMessageStatus moves the given messages of a room to the next status.
// The filter restricts the update to messages whose current status may legally
// advance, so replayed or out-of-order receipts can never regress a message.
func (m *MongoDB) AdvanceMessageStatus(tenantID, roomID string, messageIDs []string, next entity.MessageStatus) ([]string, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	var allowed bson.A
	switch next {
	case entity.StatusDelivered:
		allowed = bson.A{entity.StatusSent}
	case entity.StatusRead:
		allowed = bson.A{entity.StatusSent, entity.StatusDelivered}
	case entity.StatusFailed:
		allowed = bson.A{entity.StatusSent}
	default:
		return nil, fmt.Errorf("status %q is not a valid transition target", next)
	}

	collection := connection.Database(m.database).Collection(chatMessagesCollection)
	filter := bson.M{
		"_id":       bson.M{"$in": messageIDs},
		"tenant_id": tenantID,
		"room_id":   roomID,
		"status":    bson.M{"$in": allowed},
	}

	cursor, err := collection.Find(m.ctx, filter, options.Find().SetProjection(bson.D{{"_id", 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb find advanceable messages: %w", err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err = cursor.All(m.ctx, &rows); err != nil {
		return nil, fmt.Errorf("mongodb decode advanceable messages: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	advanced := make([]string, 0, len(rows))
	for _, row := range rows {
		advanced = append(advanced, row.ID)
	}

	_, err = collection.UpdateMany(m.ctx,
		bson.M{"_id": bson.M{"$in": advanced}, "status": bson.M{"$in": allowed}},
		bson.M{"$set": bson.M{"status": next}},
	)
	if err != nil {
		return nil, fmt.Errorf("mongodb advance message status: %w", err)
	}

	return advanced, nil
}

// MarkMessageDeleted soft-deletes a message.
func (m *MongoDB) MarkMessageDeleted(tenantID, messageID string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)
	_, err = collection.UpdateOne(m.ctx,
		bson.M{"_id": messageID, "tenant_id": tenantID},
		bson.M{"$set": bson.M{"deleted_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("mongodb delete message: %w", err)
	}

	return nil
}

func (m *MongoDB) GetMessage(id string) (*entity.ChatMessage, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)

	var msg entity.ChatMessage
	err = collection.FindOne(m.ctx, bson.D{{"_id", id}}).Decode(&msg)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb find message: %w", err)
	}

	return &msg, nil
}
