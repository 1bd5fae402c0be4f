package repository

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"moiport/entity"
)

// FindOrCreateVisitor upserts the synthetic account for an external contact,
// keyed by the deterministic placeholder email. Safe to call repeatedly for
// the same platform identity.
func (m *MongoDB) FindOrCreateVisitor(visitor entity.User) (*entity.User, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(usersCollection)
	filter := bson.D{
		{"tenant_id", visitor.TenantID},
		{"email", visitor.Email},
	}
	update := bson.D{{"$setOnInsert", visitor}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var result entity.User
	err = collection.FindOneAndUpdate(m.ctx, filter, update, opts).Decode(&result)
	if err != nil {
		return nil, fmt.Errorf("mongodb upsert visitor: %w", err)
	}

	return &result, nil
}

func (m *MongoDB) GetUserByID(id string) (*entity.User, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(usersCollection)

	var user entity.User
	err = collection.FindOne(m.ctx, bson.D{{"_id", id}}).Decode(&user)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb find user: %w", err)
	}

	return &user, nil
}

// FirstActiveAdmin returns the oldest active ADMIN of a tenant, used as the
// reminder fallback target. Nil when the tenant has none.
func (m *MongoDB) FirstActiveAdmin(tenantID string) (*entity.User, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(usersCollection)
	filter := bson.D{
		{"tenant_id", tenantID},
		{"role", bson.D{{"$in", bson.A{entity.AdminRole, entity.SuperAdminRole}}}},
		{"active", true},
	}
	opts := options.FindOne().SetSort(bson.D{{"created_at", 1}})

	var user entity.User
	err = collection.FindOne(m.ctx, filter, opts).Decode(&user)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb find admin: %w", err)
	}

	return &user, nil
}

// ListTenantUsers returns the active users of a tenant. Per-viewer member
// visibility is applied by the caller through the visibility rule table.
func (m *MongoDB) ListTenantUsers(tenantID string) ([]entity.User, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(usersCollection)
	filter := bson.M{"tenant_id": tenantID, "active": true}

	cursor, err := collection.Find(m.ctx, filter, options.Find().SetSort(bson.D{{"name", 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb find members: %w", err)
	}
	defer cursor.Close(m.ctx)

	var users []entity.User
	if err = cursor.All(m.ctx, &users); err != nil {
		return nil, fmt.Errorf("mongodb decode members: %w", err)
	}

	return users, nil
}
