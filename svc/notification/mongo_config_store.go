package notification

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ConfigsCollection holds one document per owner, keyed by owner.
const ConfigsCollection = "notification_configs"

// MongoConfigStore is a ConfigStore backed by MongoDB.
type MongoConfigStore struct {
	coll *mongo.Collection
}

func NewMongoConfigStore(db *mongo.Database) *MongoConfigStore {
	return &MongoConfigStore{coll: db.Collection(ConfigsCollection)}
}

func (s *MongoConfigStore) GetConfig(ctx context.Context, owner string) (*OwnerConfig, error) {
	var cfg OwnerConfig
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: owner}}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrOwnerConfigNotFound, owner)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load owner configuration %s: %w", owner, err)
	}
	return &cfg, nil
}

func (s *MongoConfigStore) CreateConfig(ctx context.Context, cfg *OwnerConfig) error {
	_, err := s.coll.InsertOne(ctx, cfg)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrOwnerConfigExists, cfg.Owner)
	}
	if err != nil {
		return fmt.Errorf("failed to create owner configuration %s: %w", cfg.Owner, err)
	}
	return nil
}

func (s *MongoConfigStore) UpdateConfig(ctx context.Context, cfg *OwnerConfig) error {
	res, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: cfg.Owner}}, cfg)
	if err != nil {
		return fmt.Errorf("failed to update owner configuration %s: %w", cfg.Owner, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrOwnerConfigNotFound, cfg.Owner)
	}
	return nil
}

// Seed inserts configs whose owner has no record yet.
func (s *MongoConfigStore) Seed(ctx context.Context, configs ...*OwnerConfig) error {
	for _, cfg := range configs {
		if err := s.CreateConfig(ctx, cfg); err != nil && !errors.Is(err, ErrOwnerConfigExists) {
			return err
		}
	}
	return nil
}
