package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/helpdeck/helpdeck/internal/domain"
)

type ActivityStore struct {
	mu         sync.RWMutex
	activities map[string]domain.URLIngestionActivity
}

func NewActivityStore() *ActivityStore {
	return &ActivityStore{
		activities: make(map[string]domain.URLIngestionActivity),
	}
}

func activityKey(siteID, requestID string) string {
	return siteID + ":" + requestID
}

func (s *ActivityStore) Begin(ctx context.Context, activity domain.URLIngestionActivity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := activityKey(activity.SiteID, activity.RequestID)
	if _, ok := s.activities[key]; ok {
		return false, nil
	}
	s.activities[key] = cloneActivity(activity)

	return true, nil
}

func (s *ActivityStore) Get(ctx context.Context, siteID, requestID string) (domain.URLIngestionActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activity, ok := s.activities[activityKey(siteID, requestID)]
	if !ok {
		return domain.URLIngestionActivity{}, domain.ErrActivityNotFound
	}

	return cloneActivity(activity), nil
}

func (s *ActivityStore) Complete(ctx context.Context, siteID, requestID string, completion domain.ActivityCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := activityKey(siteID, requestID)
	activity, ok := s.activities[key]
	if !ok {
		return domain.ErrActivityNotFound
	}

	activity.Status = completion.Status
	activity.DocumentID = completion.DocumentID
	activity.ChunksCreated = completion.ChunksCreated
	activity.Error = completion.Error
	completedAt := completion.CompletedAt
	activity.CompletedAt = &completedAt
	s.activities[key] = activity

	return nil
}

func (s *ActivityStore) ListBySite(ctx context.Context, siteID string, limit int) ([]domain.URLIngestionActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var activities []domain.URLIngestionActivity
	for _, activity := range s.activities {
		if activity.SiteID == siteID {
			activities = append(activities, cloneActivity(activity))
		}
	}
	sort.Slice(activities, func(i, j int) bool {
		if activities[i].StartedAt.Equal(activities[j].StartedAt) {
			return activities[i].RequestID < activities[j].RequestID
		}
		return activities[i].StartedAt.After(activities[j].StartedAt)
	})

	if limit > 0 && len(activities) > limit {
		activities = activities[:limit]
	}

	return activities, nil
}

func cloneActivity(activity domain.URLIngestionActivity) domain.URLIngestionActivity {
	out := activity
	if activity.CompletedAt != nil {
		completedAt := *activity.CompletedAt
		out.CompletedAt = &completedAt
	}

	return out
}
