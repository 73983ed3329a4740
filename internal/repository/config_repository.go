package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const configsCollection = "notification_configs"

// ConfigRepository reads per-rule configuration rows
type ConfigRepository struct {
	client   *mongodb.MongoClient
	defaults domain.ParamDefaults
}

// NewConfigRepository creates a new config repository. defaults fill amounts
// a row's trigger_condition leaves out.
func NewConfigRepository(client *mongodb.MongoClient, defaults domain.ParamDefaults) *ConfigRepository {
	return &ConfigRepository{client: client, defaults: defaults}
}

// EnsureIndexes enforces one config row per type
func (r *ConfigRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "notification_type", Value: 1}},
			Options: options.Index().SetName("notification_type_uniq").SetUnique(true),
		},
	}
	return r.client.CreateIndexes(ctx, configsCollection, indexes)
}

// FindByType loads and decodes the config row for t. It returns nil, nil
// when no row exists.
func (r *ConfigRepository) FindByType(ctx context.Context, t domain.TriggerType) (*domain.NotificationConfig, error) {
	var cfg domain.NotificationConfig
	err := r.client.Collection(configsCollection).FindOne(ctx, bson.M{"notification_type": t}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s config: %w", t, err)
	}

	params, err := domain.DecodeTriggerParams(t, cfg.TriggerCondition, r.defaults)
	if err != nil {
		return nil, err
	}
	cfg.Params = params
	return &cfg, nil
}
