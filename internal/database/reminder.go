package repository

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"moiport/entity"
)

// DueReminders returns unsent reminder activities due before now plus a small
// buffer, oldest first.
func (m *MongoDB) DueReminders(now time.Time, buffer time.Duration) ([]entity.CrmActivity, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(activitiesCollection)
	filter := bson.D{
		{"type", entity.ActivityReminder},
		{"is_reminder_sent", false},
		{"reminder_date", bson.D{{"$lte", now.Add(buffer)}}},
	}
	opts := options.Find().SetSort(bson.D{{"reminder_date", 1}})

	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find due reminders: %w", err)
	}
	defer cursor.Close(m.ctx)

	var reminders []entity.CrmActivity
	if err = cursor.All(m.ctx, &reminders); err != nil {
		return nil, fmt.Errorf("mongodb decode due reminders: %w", err)
	}

	return reminders, nil
}

// ClaimReminder flips is_reminder_sent to true atomically and reports whether
// this caller won the claim. Marking before dispatch keeps overlapping ticks
// at-least-once instead of duplicating sends.
func (m *MongoDB) ClaimReminder(id string) (bool, error) {
	connection, err := m.connect()
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(activitiesCollection)
	result, err := collection.UpdateOne(m.ctx,
		bson.D{{"_id", id}, {"is_reminder_sent", false}},
		bson.D{{"$set", bson.D{{"is_reminder_sent", true}}}},
	)
	if err != nil {
		return false, fmt.Errorf("mongodb claim reminder: %w", err)
	}

	return result.ModifiedCount == 1, nil
}
