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

type SiteStore struct {
	database *mongo.Database
}

func NewSiteStore(database *mongo.Database) *SiteStore {
	store := &SiteStore{database: database}
	store.ensureIndexes()
	return store
}

func (s *SiteStore) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "owner_user_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "enabled", Value: 1}},
		},
	}

	_, err := s.database.Collection(sitesCollection).Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create indexes for sites")
	}
}

func (s *SiteStore) Create(ctx context.Context, site domain.Site) error {
	_, err := s.database.Collection(sitesCollection).InsertOne(ctx, site)
	if err != nil {
		return domain.StorageError("failed to insert site", err)
	}

	return nil
}

func (s *SiteStore) GetByID(ctx context.Context, id string) (domain.Site, error) {
	var site domain.Site

	err := s.database.Collection(sitesCollection).FindOne(ctx, bson.M{"id": id}).Decode(&site)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Site{}, domain.ErrSiteNotFound
		}
		return domain.Site{}, domain.StorageError("failed to find site", err)
	}

	return site, nil
}

func (s *SiteStore) ListByOwner(ctx context.Context, ownerUserID string) ([]domain.Site, error) {
	return s.list(ctx, bson.M{"owner_user_id": ownerUserID})
}

func (s *SiteStore) ListEnabled(ctx context.Context) ([]domain.Site, error) {
	return s.list(ctx, bson.M{"enabled": true})
}

func (s *SiteStore) list(ctx context.Context, filter bson.M) ([]domain.Site, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := s.database.Collection(sitesCollection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, domain.StorageError("failed to find sites", err)
	}
	defer cursor.Close(ctx)

	var sites []domain.Site
	if err := cursor.All(ctx, &sites); err != nil {
		return nil, domain.StorageError("failed to decode sites", err)
	}

	return sites, nil
}

func (s *SiteStore) Update(ctx context.Context, site domain.Site) error {
	result, err := s.database.Collection(sitesCollection).UpdateOne(ctx,
		bson.M{"id": site.ID},
		bson.M{"$set": site},
	)
	if err != nil {
		return domain.StorageError("failed to update site", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrSiteNotFound
	}

	return nil
}

func (s *SiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.database.Collection(sitesCollection).DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return domain.StorageError("failed to delete site", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrSiteNotFound
	}

	return nil
}
