package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/truesuntrading/warranty_backend/models"
)

// AdminLogRepository persists the audit log of admin actions.
type AdminLogRepository struct {
	collection *mongo.Collection
}

func NewAdminLogRepository(db *mongo.Database) *AdminLogRepository {
	return &AdminLogRepository{
		collection: db.Collection("admin_logs"),
	}
}

// Log writes one audit entry. The timestamp is assigned here, on the server.
func (r *AdminLogRepository) Log(ctx context.Context, adminEmail, action string, details models.LogDetails) error {
	entry := models.AdminLogEntry{
		ID:         primitive.NewObjectID(),
		AdminEmail: adminEmail,
		Action:     action,
		Details:    details,
		Timestamp:  time.Now(),
	}

	_, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to insert admin log entry: %w", err)
	}
	return nil
}

// List returns all audit entries, newest first.
func (r *AdminLogRepository) List(ctx context.Context) ([]models.AdminLogEntry, error) {
	cursor, err := r.collection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query admin logs: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.AdminLogEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode admin logs: %w", err)
	}
	return entries, nil
}
