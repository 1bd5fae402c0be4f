package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"moiport/entity"
)

// FindOrCreateDefaultPipeline returns the default pipeline (and its first
// stage) of a tenant/customer scope, provisioning both when missing. A fresh
// pipeline is seeded with exactly one stage.
func (m *MongoDB) FindOrCreateDefaultPipeline(tenantID, customerID string) (*entity.Pipeline, *entity.Stage, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, nil, err
	}
	defer m.disconnect(connection)

	pipelines := connection.Database(m.database).Collection(pipelinesCollection)
	stages := connection.Database(m.database).Collection(stagesCollection)

	now := time.Now()
	pipeline := entity.Pipeline{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		CustomerID: customerID,
		Name:       "Gelen Talepler",
		IsDefault:  true,
		CreatedAt:  now,
	}

	filter := bson.D{
		{"tenant_id", tenantID},
		{"customer_id", customerID},
		{"is_default", true},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var result entity.Pipeline
	err = pipelines.FindOneAndUpdate(m.ctx, filter, bson.D{{"$setOnInsert", pipeline}}, opts).Decode(&result)
	if err != nil {
		return nil, nil, fmt.Errorf("mongodb upsert pipeline: %w", err)
	}

	var stage entity.Stage
	stageOpts := options.FindOne().SetSort(bson.D{{"order", 1}})
	err = stages.FindOne(m.ctx, bson.D{{"pipeline_id", result.ID}}, stageOpts).Decode(&stage)
	if err != nil {
		if !notFound(err) {
			return nil, nil, fmt.Errorf("mongodb find stage: %w", err)
		}
		stage = entity.Stage{
			ID:         uuid.NewString(),
			PipelineID: result.ID,
			TenantID:   tenantID,
			Name:       "Yeni",
			Order:      0,
			CreatedAt:  now,
		}
		if _, err := stages.InsertOne(m.ctx, stage); err != nil {
			return nil, nil, fmt.Errorf("mongodb seed stage: %w", err)
		}
	}

	return &result, &stage, nil
}

func (m *MongoDB) GetPipeline(id string) (*entity.Pipeline, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(pipelinesCollection)

	var pipeline entity.Pipeline
	err = collection.FindOne(m.ctx, bson.D{{"_id", id}}).Decode(&pipeline)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb find pipeline: %w", err)
	}

	return &pipeline, nil
}

// ListPipelines returns the pipelines a viewer may see, with CLIENT viewers
// restricted to their customer scope.
func (m *MongoDB) ListPipelines(viewer *entity.Viewer) ([]entity.Pipeline, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(pipelinesCollection)

	filter := bson.M{"tenant_id": viewer.TenantID}
	if viewer.Role == entity.ClientRole {
		filter["customer_id"] = viewer.CustomerID
	}

	cursor, err := collection.Find(m.ctx, filter, options.Find().SetSort(bson.D{{"created_at", 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb find pipelines: %w", err)
	}
	defer cursor.Close(m.ctx)

	var pipelines []entity.Pipeline
	if err = cursor.All(m.ctx, &pipelines); err != nil {
		return nil, fmt.Errorf("mongodb decode pipelines: %w", err)
	}

	return pipelines, nil
}

// ClientPipelineIDs returns pipeline ids scoped to a customer, used by the
// CLIENT branch of the lead visibility filter.
func (m *MongoDB) ClientPipelineIDs(tenantID, customerID string) ([]string, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(pipelinesCollection)
	cursor, err := collection.Find(m.ctx, bson.D{{"tenant_id", tenantID}, {"customer_id", customerID}})
	if err != nil {
		return nil, fmt.Errorf("mongodb find client pipelines: %w", err)
	}
	defer cursor.Close(m.ctx)

	var ids []string
	for cursor.Next(m.ctx) {
		var p entity.Pipeline
		if err := cursor.Decode(&p); err != nil {
			continue
		}
		ids = append(ids, p.ID)
	}

	return ids, nil
}

func (m *MongoDB) GetStage(id string) (*entity.Stage, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(stagesCollection)

	var stage entity.Stage
	err = collection.FindOne(m.ctx, bson.D{{"_id", id}}).Decode(&stage)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb find stage: %w", err)
	}

	return &stage, nil
}

func (m *MongoDB) InsertLead(lead entity.Lead) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadsCollection)
	if _, err = collection.InsertOne(m.ctx, lead); err != nil {
		return fmt.Errorf("mongodb insert lead: %w", err)
	}

	return nil
}

func (m *MongoDB) GetLead(id string) (*entity.Lead, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadsCollection)

	var lead entity.Lead
	err = collection.FindOne(m.ctx, bson.D{{"_id", id}}).Decode(&lead)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb find lead: %w", err)
	}

	return &lead, nil
}

// ListLeads returns the leads matching the supplied visibility filter.
func (m *MongoDB) ListLeads(filter bson.M) ([]entity.Lead, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadsCollection)
	opts := options.Find().SetSort(bson.D{{"updated_at", -1}})

	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find leads: %w", err)
	}
	defer cursor.Close(m.ctx)

	var leads []entity.Lead
	if err = cursor.All(m.ctx, &leads); err != nil {
		return nil, fmt.Errorf("mongodb decode leads: %w", err)
	}

	return leads, nil
}

// FindLeadByPhone returns the most recent open lead with the given phone
// number, used to attach inbound WhatsApp traffic to an existing lead.
func (m *MongoDB) FindLeadByPhone(tenantID, phone string) (*entity.Lead, error) {
	if phone == "" {
		return nil, nil
	}

	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadsCollection)
	filter := bson.M{"tenant_id": tenantID, "phone": phone}
	opts := options.FindOne().SetSort(bson.D{{"updated_at", -1}})

	var lead entity.Lead
	err = collection.FindOne(m.ctx, filter, opts).Decode(&lead)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb find lead by phone: %w", err)
	}

	return &lead, nil
}

// FindEquivalentLead is the best-effort secondary dedup for form imports: an
// existing lead from the same form matching on email, phone or name. False
// negatives (a duplicate import) are an accepted risk.
func (m *MongoDB) FindEquivalentLead(tenantID, formID, email, phone, name string) (*entity.Lead, error) {
	var identity bson.A
	if email != "" {
		identity = append(identity, bson.M{"email": email})
	}
	if phone != "" {
		identity = append(identity, bson.M{"phone": phone})
	}
	if name != "" {
		identity = append(identity, bson.M{"name": name})
	}
	if len(identity) == 0 {
		return nil, nil
	}

	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadsCollection)
	filter := bson.M{
		"tenant_id":        tenantID,
		"source":           entity.LeadSourceFacebook,
		"facebook_form_id": formID,
		"$or":              identity,
	}

	var lead entity.Lead
	err = collection.FindOne(m.ctx, filter).Decode(&lead)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb find equivalent lead: %w", err)
	}

	return &lead, nil
}

func (m *MongoDB) UpdateLeadStage(tenantID, leadID, stageID string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadsCollection)
	_, err = collection.UpdateOne(m.ctx,
		bson.M{"_id": leadID, "tenant_id": tenantID},
		bson.M{"$set": bson.M{"stage_id": stageID, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("mongodb update lead stage: %w", err)
	}

	return nil
}

// UpdateLeadScore persists a recomputed score. Nothing else writes the field.
func (m *MongoDB) UpdateLeadScore(leadID string, score int) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadsCollection)
	_, err = collection.UpdateOne(m.ctx,
		bson.M{"_id": leadID},
		bson.M{"$set": bson.M{"score": score, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("mongodb update lead score: %w", err)
	}

	return nil
}

// DeleteLead removes a lead and all of its activities.
func (m *MongoDB) DeleteLead(tenantID, leadID string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	leads := connection.Database(m.database).Collection(leadsCollection)
	if _, err = leads.DeleteOne(m.ctx, bson.M{"_id": leadID, "tenant_id": tenantID}); err != nil {
		return fmt.Errorf("mongodb delete lead: %w", err)
	}

	activities := connection.Database(m.database).Collection(activitiesCollection)
	if _, err = activities.DeleteMany(m.ctx, bson.M{"tenant_id": tenantID, "lead_id": leadID}); err != nil {
		return fmt.Errorf("mongodb delete lead activities: %w", err)
	}

	return nil
}

// SetLeadWon marks a lead converted and links the created customer.
func (m *MongoDB) SetLeadWon(tenantID, leadID, customerID string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadsCollection)
	_, err = collection.UpdateOne(m.ctx,
		bson.M{"_id": leadID, "tenant_id": tenantID},
		bson.M{"$set": bson.M{"status": entity.LeadWon, "customer_id": customerID, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("mongodb convert lead: %w", err)
	}

	return nil
}

func (m *MongoDB) InsertCustomer(customer entity.Customer) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(customersCollection)
	if _, err = collection.InsertOne(m.ctx, customer); err != nil {
		return fmt.Errorf("mongodb insert customer: %w", err)
	}

	return nil
}

// FindCustomerByLead returns the customer a lead conversion already created,
// keeping conversion idempotent.
func (m *MongoDB) FindCustomerByLead(tenantID, leadID string) (*entity.Customer, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(customersCollection)

	var customer entity.Customer
	err = collection.FindOne(m.ctx, bson.D{{"tenant_id", tenantID}, {"lead_id", leadID}}).Decode(&customer)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb find customer: %w", err)
	}

	return &customer, nil
}

// HasActivity is the soft dedup pre-check on the (tenant, external id) key.
func (m *MongoDB) HasActivity(tenantID, externalID string) (bool, error) {
	connection, err := m.connect()
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(activitiesCollection)
	count, err := collection.CountDocuments(m.ctx, bson.D{{"tenant_id", tenantID}, {"external_id", externalID}})
	if err != nil {
		return false, fmt.Errorf("mongodb count activities: %w", err)
	}

	return count > 0, nil
}

// InsertActivity inserts an activity; a duplicate-key violation on the
// (tenant_id, external_id) index returns (false, nil).
func (m *MongoDB) InsertActivity(activity entity.CrmActivity) (bool, error) {
	connection, err := m.connect()
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(activitiesCollection)
	_, err = collection.InsertOne(m.ctx, activity)
	if err != nil {
		if isDup(err) {
			return false, nil
		}
		return false, fmt.Errorf("mongodb insert activity: %w", err)
	}

	return true, nil
}

func (m *MongoDB) ListActivities(leadID string) ([]entity.CrmActivity, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(activitiesCollection)
	opts := options.Find().SetSort(bson.D{{"created_at", -1}})

	cursor, err := collection.Find(m.ctx, bson.D{{"lead_id", leadID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find activities: %w", err)
	}
	defer cursor.Close(m.ctx)

	var activities []entity.CrmActivity
	if err = cursor.All(m.ctx, &activities); err != nil {
		return nil, fmt.Errorf("mongodb decode activities: %w", err)
	}

	return activities, nil
}

// GetLeadMapping returns the active mapping of a Lead-Ad form within a tenant.
func (m *MongoDB) GetLeadMapping(tenantID, formID string) (*entity.FacebookLeadMapping, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadMappingsCollection)
	filter := bson.D{
		{"tenant_id", tenantID},
		{"form_id", formID},
		{"active", true},
	}

	var mapping entity.FacebookLeadMapping
	err = collection.FindOne(m.ctx, filter).Decode(&mapping)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb find lead mapping: %w", err)
	}

	return &mapping, nil
}

// RestrictedFormIDs returns the form ids whose allow-list excludes the given
// viewer. Malformed lists decode as unrestricted and never land here.
func (m *MongoDB) RestrictedFormIDs(tenantID, viewerID string) ([]string, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(leadMappingsCollection)
	cursor, err := collection.Find(m.ctx, bson.D{{"tenant_id", tenantID}, {"active", true}})
	if err != nil {
		return nil, fmt.Errorf("mongodb find lead mappings: %w", err)
	}
	defer cursor.Close(m.ctx)

	var formIDs []string
	for cursor.Next(m.ctx) {
		var mapping entity.FacebookLeadMapping
		if err := cursor.Decode(&mapping); err != nil {
			continue
		}
		ids := entity.DecodeAssignedUserIDs(mapping.AssignedUserIDs)
		if len(ids) == 0 {
			continue
		}
		member := false
		for _, id := range ids {
			if id == viewerID {
				member = true
				break
			}
		}
		if !member {
			formIDs = append(formIDs, mapping.FormID)
		}
	}

	return formIDs, nil
}
