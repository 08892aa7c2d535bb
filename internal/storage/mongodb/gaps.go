package mongodb

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/helpdeck/helpdeck/internal/domain"
)

type GapStore struct {
	database *mongo.Database
}

func NewGapStore(database *mongo.Database) *GapStore {
	store := &GapStore{database: database}
	store.ensureIndexes()
	return store
}

func (s *GapStore) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "site_id", Value: 1}, {Key: "topic", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "site_id", Value: 1}, {Key: "gap_rate", Value: -1}},
		},
	}

	_, err := s.database.Collection(gapsCollection).Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create indexes for knowledge gaps")
	}
}

func (s *GapStore) Upsert(ctx context.Context, gap domain.KnowledgeGap) error {
	opts := options.Update().SetUpsert(true)

	_, err := s.database.Collection(gapsCollection).UpdateOne(ctx,
		bson.M{"site_id": gap.SiteID, "topic": gap.Topic},
		bson.M{"$set": gap},
		opts,
	)
	if err != nil {
		return domain.StorageError("failed to upsert knowledge gap", err)
	}

	return nil
}

func (s *GapStore) GetByTopic(ctx context.Context, siteID, topic string) (domain.KnowledgeGap, error) {
	var gap domain.KnowledgeGap

	err := s.database.Collection(gapsCollection).
		FindOne(ctx, bson.M{"site_id": siteID, "topic": topic}).
		Decode(&gap)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.KnowledgeGap{}, domain.ErrGapNotFound
		}
		return domain.KnowledgeGap{}, domain.StorageError("failed to find knowledge gap", err)
	}

	return gap, nil
}

func (s *GapStore) ListBySite(ctx context.Context, siteID string) ([]domain.KnowledgeGap, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "gap_rate", Value: -1}})

	cursor, err := s.database.Collection(gapsCollection).Find(ctx, bson.M{"site_id": siteID}, findOptions)
	if err != nil {
		return nil, domain.StorageError("failed to find knowledge gaps", err)
	}
	defer cursor.Close(ctx)

	var gaps []domain.KnowledgeGap
	if err := cursor.All(ctx, &gaps); err != nil {
		return nil, domain.StorageError("failed to decode knowledge gaps", err)
	}

	return gaps, nil
}
