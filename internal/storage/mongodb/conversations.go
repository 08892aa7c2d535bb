package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/helpdeck/helpdeck/internal/domain"
)

type ConversationStore struct {
	database *mongo.Database
}

func NewConversationStore(database *mongo.Database) *ConversationStore {
	store := &ConversationStore{database: database}
	store.ensureIndexes()
	return store
}

func (s *ConversationStore) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()

	conversationIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "site_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}

	_, err := s.database.Collection(conversationsCollection).Indexes().CreateMany(ctx, conversationIndexes)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create indexes for conversations")
	}

	turnIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "site_id", Value: 1}, {Key: "created_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: 1}},
		},
	}

	_, err = s.database.Collection(turnsCollection).Indexes().CreateMany(ctx, turnIndexes)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create indexes for chat turns")
	}
}

func (s *ConversationStore) Create(ctx context.Context, conv domain.Conversation) error {
	_, err := s.database.Collection(conversationsCollection).InsertOne(ctx, conv)
	if err != nil {
		return domain.StorageError("failed to insert conversation", err)
	}

	return nil
}

func (s *ConversationStore) GetByID(ctx context.Context, siteID, id string) (domain.Conversation, error) {
	var conv domain.Conversation

	err := s.database.Collection(conversationsCollection).
		FindOne(ctx, bson.M{"site_id": siteID, "id": id}).
		Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Conversation{}, domain.ErrConversationNotFound
		}
		return domain.Conversation{}, domain.StorageError("failed to find conversation", err)
	}

	return conv, nil
}

// NextSeq uses an atomic $inc so concurrent turns in one conversation cannot
// observe the same sequence number.
func (s *ConversationStore) NextSeq(ctx context.Context, siteID, conversationID string) (int, error) {
	update := bson.M{
		"$inc": bson.M{"turn_count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conv domain.Conversation
	err := s.database.Collection(conversationsCollection).
		FindOneAndUpdate(ctx, bson.M{"site_id": siteID, "id": conversationID}, update, opts).
		Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, domain.ErrConversationNotFound
		}
		return 0, domain.StorageError("failed to increment turn counter", err)
	}

	return conv.TurnCount, nil
}

func (s *ConversationStore) CreateTurn(ctx context.Context, turn domain.ChatTurn) error {
	_, err := s.database.Collection(turnsCollection).InsertOne(ctx, turn)
	if err != nil {
		return domain.StorageError("failed to insert chat turn", err)
	}

	return nil
}

func (s *ConversationStore) GetTurn(ctx context.Context, siteID, turnID string) (domain.ChatTurn, error) {
	var turn domain.ChatTurn

	err := s.database.Collection(turnsCollection).
		FindOne(ctx, bson.M{"site_id": siteID, "id": turnID}).
		Decode(&turn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ChatTurn{}, domain.ErrTurnNotFound
		}
		return domain.ChatTurn{}, domain.StorageError("failed to find chat turn", err)
	}

	return turn, nil
}

func (s *ConversationStore) SetTurnFeedback(ctx context.Context, siteID, turnID string, feedback domain.TurnFeedback) error {
	result, err := s.database.Collection(turnsCollection).UpdateOne(ctx,
		bson.M{"site_id": siteID, "id": turnID},
		bson.M{"$set": bson.M{"feedback": feedback}},
	)
	if err != nil {
		return domain.StorageError("failed to set turn feedback", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrTurnNotFound
	}

	return nil
}

func (s *ConversationStore) ListTurnsSince(ctx context.Context, siteID string, since time.Time, offset, limit int) ([]domain.ChatTurn, error) {
	filter := bson.M{
		"site_id":    siteID,
		"created_at": bson.M{"$gte": since},
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if offset > 0 {
		findOptions.SetSkip(int64(offset))
	}
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := s.database.Collection(turnsCollection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, domain.StorageError("failed to find chat turns", err)
	}
	defer cursor.Close(ctx)

	var turns []domain.ChatTurn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, domain.StorageError("failed to decode chat turns", err)
	}

	return turns, nil
}

func (s *ConversationStore) CountConversations(ctx context.Context, siteID string, since time.Time) (int, error) {
	filter := bson.M{
		"site_id":    siteID,
		"created_at": bson.M{"$gte": since},
	}

	count, err := s.database.Collection(conversationsCollection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, domain.StorageError("failed to count conversations", err)
	}

	return int(count), nil
}
