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

type DocumentStore struct {
	database *mongo.Database
}

func NewDocumentStore(database *mongo.Database) *DocumentStore {
	store := &DocumentStore{database: database}
	store.ensureIndexes()
	return store
}

func (s *DocumentStore) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "site_id", Value: 1}, {Key: "content_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "site_id", Value: 1}, {Key: "location", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "site_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}

	_, err := s.database.Collection(documentsCollection).Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create indexes for documents")
	}
}

func (s *DocumentStore) Create(ctx context.Context, doc domain.Document) error {
	_, err := s.database.Collection(documentsCollection).InsertOne(ctx, doc)
	if err != nil {
		return domain.StorageError("failed to insert document", err)
	}

	return nil
}

func (s *DocumentStore) GetByID(ctx context.Context, siteID, id string) (domain.Document, error) {
	return s.findOne(ctx, bson.M{"site_id": siteID, "id": id})
}

func (s *DocumentStore) GetByContentHash(ctx context.Context, siteID, contentHash string) (domain.Document, error) {
	return s.findOne(ctx, bson.M{"site_id": siteID, "content_hash": contentHash})
}

func (s *DocumentStore) GetByLocation(ctx context.Context, siteID, location string) (domain.Document, error) {
	return s.findOne(ctx, bson.M{"site_id": siteID, "location": location})
}

func (s *DocumentStore) findOne(ctx context.Context, filter bson.M) (domain.Document, error) {
	var doc domain.Document

	err := s.database.Collection(documentsCollection).FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Document{}, domain.ErrDocumentNotFound
		}
		return domain.Document{}, domain.StorageError("failed to find document", err)
	}

	return doc, nil
}

func (s *DocumentStore) ListBySite(ctx context.Context, siteID string) ([]domain.Document, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.database.Collection(documentsCollection).Find(ctx, bson.M{"site_id": siteID}, findOptions)
	if err != nil {
		return nil, domain.StorageError("failed to find documents", err)
	}
	defer cursor.Close(ctx)

	var docs []domain.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.StorageError("failed to decode documents", err)
	}

	return docs, nil
}

func (s *DocumentStore) Update(ctx context.Context, doc domain.Document) error {
	result, err := s.database.Collection(documentsCollection).UpdateOne(ctx,
		bson.M{"site_id": doc.SiteID, "id": doc.ID},
		bson.M{"$set": doc},
	)
	if err != nil {
		return domain.StorageError("failed to update document", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrDocumentNotFound
	}

	return nil
}

func (s *DocumentStore) DeleteBySite(ctx context.Context, siteID string) error {
	_, err := s.database.Collection(documentsCollection).DeleteMany(ctx, bson.M{"site_id": siteID})
	if err != nil {
		return domain.StorageError("failed to delete documents", err)
	}

	return nil
}
