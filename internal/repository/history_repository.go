package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const historyCollection = "notification_history"

// HistoryFilter narrows a history listing; empty fields match everything
type HistoryFilter struct {
	Type       domain.TriggerType
	CustomerID string
	Status     domain.NotificationStatus
}

// HistoryRepository appends and queries dispatch attempts. Rows are never
// updated or deleted.
type HistoryRepository struct {
	client *mongodb.MongoClient
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(client *mongodb.MongoClient) *HistoryRepository {
	return &HistoryRepository{client: client}
}

// EnsureIndexes creates the indexes backing the dedup lookup and listings
func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "customer_id", Value: 1},
				{Key: "notification_type", Value: 1},
				{Key: "sent_at", Value: -1},
			},
			Options: options.Index().SetName("customer_type_sent_idx"),
		},
		{
			Keys:    bson.D{{Key: "sent_at", Value: -1}},
			Options: options.Index().SetName("sent_at_idx"),
		},
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().SetName("run_id_idx"),
		},
		{
			Keys:    bson.D{{Key: "delivery_id", Value: 1}},
			Options: options.Index().SetName("delivery_id_idx").SetSparse(true),
		},
	}

	return r.client.CreateIndexes(ctx, historyCollection, indexes)
}

// Create appends a history row
func (r *HistoryRepository) Create(ctx context.Context, entry *domain.NotificationHistory) error {
	entry.ID = primitive.NewObjectID()
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now()
	}

	_, err := r.client.Collection(historyCollection).InsertOne(ctx, entry)
	return err
}

// HasAttemptSince reports whether any attempt of type t was recorded for the
// customer at or after since
func (r *HistoryRepository) HasAttemptSince(ctx context.Context, customerID string, t domain.TriggerType, since time.Time) (bool, error) {
	objectID, err := primitive.ObjectIDFromHex(customerID)
	if err != nil {
		return false, err
	}

	filter := bson.M{
		"customer_id":       objectID,
		"notification_type": t,
		"sent_at":           bson.M{"$gte": since},
	}
	err = r.client.Collection(historyCollection).
		FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).
		Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindPage lists history rows, newest first
func (r *HistoryRepository) FindPage(ctx context.Context, f HistoryFilter, page, pageSize int) ([]*domain.NotificationHistory, int64, error) {
	filter := bson.M{}
	if f.Type != "" {
		filter["notification_type"] = f.Type
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.CustomerID != "" {
		objectID, err := primitive.ObjectIDFromHex(f.CustomerID)
		if err != nil {
			return nil, 0, err
		}
		filter["customer_id"] = objectID
	}

	total, err := r.client.Collection(historyCollection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := (page - 1) * pageSize
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(pageSize)).
		SetSort(bson.D{{Key: "sent_at", Value: -1}})

	cursor, err := r.client.Collection(historyCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	entries := []*domain.NotificationHistory{}
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// FindByDeliveryID returns the attempt the transport acknowledged with id,
// or nil when none matches
func (r *HistoryRepository) FindByDeliveryID(ctx context.Context, id string) (*domain.NotificationHistory, error) {
	var entry domain.NotificationHistory
	filter := bson.M{"delivery_id": id, "status": domain.NotificationStatusSent}
	err := r.client.Collection(historyCollection).FindOne(ctx, filter).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
