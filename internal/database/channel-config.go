package repository

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"moiport/entity"
)

// ResolveChannel maps a provider-specific account id back to its channel
// config (and through it, the tenant). A nil result with nil error means the
// account is simply not connected to any tenant; ingestion drops such events
// silently.
func (m *MongoDB) ResolveChannel(source entity.Source, accountID string) (*entity.ChannelConfig, error) {
	if accountID == "" {
		return nil, nil
	}

	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	var key string
	switch source {
	case entity.SourceInstagram:
		key = "instagram_business_account_id"
	case entity.SourceFacebook:
		key = "page_id"
	case entity.SourceWhatsAppCloud:
		key = "phone_number_id"
	case entity.SourceWhatsAppBridge:
		key = "bridge_instance_id"
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}

	collection := connection.Database(m.database).Collection(channelConfigsCollection)
	filter := bson.D{
		{"provider", source},
		{key, accountID},
		{"active", true},
	}

	var conf entity.ChannelConfig
	err = collection.FindOne(m.ctx, filter).Decode(&conf)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb find channel config: %w", err)
	}

	return &conf, nil
}

// GetChannelConfig returns the active config of a provider within a tenant,
// used for outbound sends.
func (m *MongoDB) GetChannelConfig(tenantID string, source entity.Source) (*entity.ChannelConfig, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(channelConfigsCollection)
	filter := bson.D{
		{"tenant_id", tenantID},
		{"provider", source},
		{"active", true},
	}

	var conf entity.ChannelConfig
	err = collection.FindOne(m.ctx, filter).Decode(&conf)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb find channel config: %w", err)
	}

	return &conf, nil
}
