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

type ActivityStore struct {
	database *mongo.Database
}

func NewActivityStore(database *mongo.Database) *ActivityStore {
	store := &ActivityStore{database: database}
	store.ensureIndexes()
	return store
}

func (s *ActivityStore) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "site_id", Value: 1}, {Key: "request_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "site_id", Value: 1}, {Key: "started_at", Value: -1}},
		},
	}

	_, err := s.database.Collection(activitiesCollection).Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create indexes for ingestion activities")
	}
}

// Begin relies on the unique (site_id, request_id) index: a duplicate key
// error means another request already claimed the id.
func (s *ActivityStore) Begin(ctx context.Context, activity domain.URLIngestionActivity) (bool, error) {
	_, err := s.database.Collection(activitiesCollection).InsertOne(ctx, activity)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, domain.StorageError("failed to insert ingestion activity", err)
	}

	return true, nil
}

func (s *ActivityStore) Get(ctx context.Context, siteID, requestID string) (domain.URLIngestionActivity, error) {
	var activity domain.URLIngestionActivity

	err := s.database.Collection(activitiesCollection).
		FindOne(ctx, bson.M{"site_id": siteID, "request_id": requestID}).
		Decode(&activity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.URLIngestionActivity{}, domain.ErrActivityNotFound
		}
		return domain.URLIngestionActivity{}, domain.StorageError("failed to find ingestion activity", err)
	}

	return activity, nil
}

func (s *ActivityStore) Complete(ctx context.Context, siteID, requestID string, completion domain.ActivityCompletion) error {
	update := bson.M{
		"$set": bson.M{
			"status":         completion.Status,
			"document_id":    completion.DocumentID,
			"chunks_created": completion.ChunksCreated,
			"error":          completion.Error,
			"completed_at":   completion.CompletedAt,
		},
	}

	result, err := s.database.Collection(activitiesCollection).UpdateOne(ctx,
		bson.M{"site_id": siteID, "request_id": requestID},
		update,
	)
	if err != nil {
		return domain.StorageError("failed to complete ingestion activity", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrActivityNotFound
	}

	return nil
}

func (s *ActivityStore) ListBySite(ctx context.Context, siteID string, limit int) ([]domain.URLIngestionActivity, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := s.database.Collection(activitiesCollection).Find(ctx, bson.M{"site_id": siteID}, findOptions)
	if err != nil {
		return nil, domain.StorageError("failed to find ingestion activities", err)
	}
	defer cursor.Close(ctx)

	var activities []domain.URLIngestionActivity
	if err := cursor.All(ctx, &activities); err != nil {
		return nil, domain.StorageError("failed to decode ingestion activities", err)
	}

	return activities, nil
}
