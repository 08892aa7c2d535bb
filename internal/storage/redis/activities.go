// Package redis implements the ingestion activity ledger on Redis. Activities
// are short-lived operational records, so a TTL-backed store fits better than
// a durable collection when Mongo is not part of the deployment.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helpdeck/helpdeck/internal/domain"
)

type ActivityStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewActivityStore(client *redis.Client, keyPrefix string, ttl time.Duration) *ActivityStore {
	if keyPrefix == "" {
		keyPrefix = "helpdeck"
	}

	return &ActivityStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (s *ActivityStore) recordKey(siteID, requestID string) string {
	return fmt.Sprintf("%s:activities:%s:%s", s.keyPrefix, siteID, requestID)
}

func (s *ActivityStore) indexKey(siteID string) string {
	return fmt.Sprintf("%s:activities:%s:index", s.keyPrefix, siteID)
}

// Begin claims the request id with SETNX. Losing the race means another
// request already started this activity, which callers treat as a duplicate.
func (s *ActivityStore) Begin(ctx context.Context, activity domain.URLIngestionActivity) (bool, error) {
	payload, err := json.Marshal(activity)
	if err != nil {
		return false, domain.StorageError("failed to marshal ingestion activity", err)
	}

	created, err := s.client.SetNX(ctx, s.recordKey(activity.SiteID, activity.RequestID), payload, s.ttl).Result()
	if err != nil {
		return false, domain.StorageError("failed to insert ingestion activity", err)
	}
	if !created {
		return false, nil
	}

	indexKey := s.indexKey(activity.SiteID)
	err = s.client.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(activity.StartedAt.UnixMilli()),
		Member: activity.RequestID,
	}).Err()
	if err != nil {
		return false, domain.StorageError("failed to index ingestion activity", err)
	}

	if s.ttl > 0 {
		s.client.Expire(ctx, indexKey, s.ttl)
	}

	return true, nil
}

func (s *ActivityStore) Get(ctx context.Context, siteID, requestID string) (domain.URLIngestionActivity, error) {
	payload, err := s.client.Get(ctx, s.recordKey(siteID, requestID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.URLIngestionActivity{}, domain.ErrActivityNotFound
		}
		return domain.URLIngestionActivity{}, domain.StorageError("failed to get ingestion activity", err)
	}

	var activity domain.URLIngestionActivity
	if err := json.Unmarshal([]byte(payload), &activity); err != nil {
		return domain.URLIngestionActivity{}, domain.StorageError("failed to unmarshal ingestion activity", err)
	}

	return activity, nil
}

func (s *ActivityStore) Complete(ctx context.Context, siteID, requestID string, completion domain.ActivityCompletion) error {
	activity, err := s.Get(ctx, siteID, requestID)
	if err != nil {
		return err
	}

	activity.Status = completion.Status
	activity.DocumentID = completion.DocumentID
	activity.ChunksCreated = completion.ChunksCreated
	activity.Error = completion.Error
	completedAt := completion.CompletedAt
	activity.CompletedAt = &completedAt

	payload, err := json.Marshal(activity)
	if err != nil {
		return domain.StorageError("failed to marshal ingestion activity", err)
	}

	err = s.client.Set(ctx, s.recordKey(siteID, requestID), payload, s.ttl).Err()
	if err != nil {
		return domain.StorageError("failed to update ingestion activity", err)
	}

	return nil
}

func (s *ActivityStore) ListBySite(ctx context.Context, siteID string, limit int) ([]domain.URLIngestionActivity, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	requestIDs, err := s.client.ZRevRange(ctx, s.indexKey(siteID), 0, stop).Result()
	if err != nil {
		return nil, domain.StorageError("failed to list ingestion activities", err)
	}
	if len(requestIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(requestIDs))
	for i, requestID := range requestIDs {
		keys[i] = s.recordKey(siteID, requestID)
	}

	payloads, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, domain.StorageError("failed to fetch ingestion activities", err)
	}

	activities := make([]domain.URLIngestionActivity, 0, len(payloads))
	for _, payload := range payloads {
		// Expired records may still be referenced by the index.
		raw, ok := payload.(string)
		if !ok {
			continue
		}

		var activity domain.URLIngestionActivity
		if err := json.Unmarshal([]byte(raw), &activity); err != nil {
			return nil, domain.StorageError("failed to unmarshal ingestion activity", err)
		}
		activities = append(activities, activity)
	}

	return activities, nil
}
