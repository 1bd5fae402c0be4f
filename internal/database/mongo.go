package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"moiport/internal/config"
	"moiport/internal/lib/sl"
)

const (
	tenantsCollection        = "tenants"
	customersCollection      = "customers"
	usersCollection          = "users"
	channelConfigsCollection = "channel-configs"
	chatRoomsCollection      = "chat-rooms"
	membershipsCollection    = "chat-memberships"
	chatMessagesCollection   = "chat-messages"
	pipelinesCollection      = "pipelines"
	stagesCollection         = "stages"
	leadsCollection          = "leads"
	activitiesCollection     = "activities"
	leadMappingsCollection   = "lead-mappings"
)

type MongoDB struct {
	ctx           context.Context
	clientOptions *options.ClientOptions
	database      string
	log           *slog.Logger
}

func NewMongoClient(conf *config.Config, logger *slog.Logger) (*MongoDB, error) {
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		ctx:           context.Background(),
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
		log:           logger.With(sl.Module("mongodb")),
	}
	return client, nil
}

func (m *MongoDB) connect() (*mongo.Client, error) {
	connection, err := mongo.Connect(m.ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect error: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	_ = connection.Disconnect(m.ctx)
}

// notFound maps the driver's no-documents sentinel to a plain nil result.
func notFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// isDup reports whether an insert failed on a unique index. The unique
// constraints declared in EnsureIndexes are the final dedup backstop: a
// duplicate-key violation means the event was already applied, not an error.
func isDup(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// EnsureIndexes declares the unique constraints the ingestion pipeline relies
// on. They are part of the contract with the store, not an optimization.
func (m *MongoDB) EnsureIndexes() error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)
	externalIDSet := bson.D{{"external_id", bson.D{{"$gt", ""}}}}

	indexes := map[string][]mongo.IndexModel{
		chatRoomsCollection: {
			{
				Keys:    bson.D{{"tenant_id", 1}, {"platform", 1}, {"external_id", 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(externalIDSet),
			},
			{Keys: bson.D{{"tenant_id", 1}, {"updated_at", -1}}},
		},
		chatMessagesCollection: {
			{
				Keys:    bson.D{{"room_id", 1}, {"external_id", 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(externalIDSet),
			},
			{Keys: bson.D{{"room_id", 1}, {"created_at", -1}}},
		},
		activitiesCollection: {
			{
				Keys:    bson.D{{"tenant_id", 1}, {"external_id", 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(externalIDSet),
			},
			{Keys: bson.D{{"lead_id", 1}, {"created_at", -1}}},
			{Keys: bson.D{{"type", 1}, {"is_reminder_sent", 1}, {"reminder_date", 1}}},
		},
		usersCollection: {
			{Keys: bson.D{{"tenant_id", 1}, {"email", 1}}, Options: options.Index().SetUnique(true)},
		},
		membershipsCollection: {
			{Keys: bson.D{{"room_id", 1}, {"user_id", 1}}, Options: options.Index().SetUnique(true)},
		},
		leadsCollection: {
			{Keys: bson.D{{"tenant_id", 1}, {"pipeline_id", 1}, {"stage_id", 1}}},
			{Keys: bson.D{{"tenant_id", 1}, {"facebook_form_id", 1}}},
		},
		channelConfigsCollection: {
			{Keys: bson.D{{"provider", 1}, {"page_id", 1}}},
			{Keys: bson.D{{"provider", 1}, {"instagram_business_account_id", 1}}},
			{Keys: bson.D{{"provider", 1}, {"phone_number_id", 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(m.ctx, models); err != nil {
			return fmt.Errorf("mongodb create indexes for %s: %w", name, err)
		}
	}

	return nil
}
