package managers

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/helpdeck/helpdeck/internal/analytics"
	"github.com/helpdeck/helpdeck/internal/domain"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200

	overviewWindowDays = 7
	overviewPageSize   = 500

	topQueryCount    = 5
	commonIssueCount = 5
)

type analyticsManager struct {
	conversations domain.ConversationStore
	activities    domain.ActivityStore
	gaps          domain.GapStore
	classifier    *analytics.Classifier
}

type AnalyticsManagerDependencies struct {
	ConversationStore domain.ConversationStore
	ActivityStore     domain.ActivityStore
	GapStore          domain.GapStore
	Classifier        *analytics.Classifier
}

func NewAnalyticsManager(deps AnalyticsManagerDependencies) domain.AnalyticsManager {
	return &analyticsManager{
		conversations: deps.ConversationStore,
		activities:    deps.ActivityStore,
		gaps:          deps.GapStore,
		classifier:    deps.Classifier,
	}
}

// RecordFeedback overwrites the turn's feedback; submitting twice for the
// same turn keeps only the latest sentiment.
func (m *analyticsManager) RecordFeedback(ctx context.Context, siteID string, params domain.FeedbackParams) error {
	if params.TurnID == "" {
		return domain.ValidationError("turn_id is required")
	}
	if !params.Sentiment.Valid() {
		return domain.ValidationError("sentiment must be positive, neutral or negative")
	}

	feedback := domain.TurnFeedback{
		Sentiment: params.Sentiment,
		Notes:     strings.TrimSpace(params.Notes),
		Metadata:  params.Metadata,
		CreatedAt: time.Now().UTC(),
	}

	return m.conversations.SetTurnFeedback(ctx, siteID, params.TurnID, feedback)
}

func (m *analyticsManager) ListActivities(ctx context.Context, siteID string, limit int) ([]domain.URLIngestionActivity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	return m.activities.ListBySite(ctx, siteID, limit)
}

func (m *analyticsManager) Overview(ctx context.Context, siteID string) (domain.AnalyticsOverview, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -overviewWindowDays)

	turns, err := listTurnsWindow(ctx, m.conversations, siteID, since)
	if err != nil {
		return domain.AnalyticsOverview{}, err
	}

	uniqueConversations, err := m.conversations.CountConversations(ctx, siteID, since)
	if err != nil {
		return domain.AnalyticsOverview{}, err
	}

	gaps, err := m.gaps.ListBySite(ctx, siteID)
	if err != nil {
		return domain.AnalyticsOverview{}, err
	}

	openGaps := 0
	topIssue := ""
	for _, gap := range gaps {
		if gap.Status == domain.GapStatusResolved {
			continue
		}
		openGaps++
		if topIssue == "" {
			// List order is highest rate first.
			topIssue = gap.TopicLabel
		}
	}

	overview := domain.AnalyticsOverview{
		Summary: domain.OverviewSummary{
			TotalQueries:        len(turns),
			UniqueConversations: uniqueConversations,
			AvgSatisfaction:     satisfactionPercent(turns),
			KnowledgeGaps:       openGaps,
			AvgResponseTimeMS:   avgLatency(turns),
			TopIssue:            topIssue,
			UpdatedAt:           now,
		},
		WeeklyTrend:  weeklyTrend(turns, now),
		TopQueries:   topQueries(turns),
		CommonIssues: m.commonIssues(turns),
	}

	return overview, nil
}

// listTurnsWindow pages through the window so a busy site cannot force one
// unbounded read. The overview and the gap analyzer share it.
func listTurnsWindow(ctx context.Context, store domain.ConversationStore, siteID string, since time.Time) ([]domain.ChatTurn, error) {
	var turns []domain.ChatTurn

	for offset := 0; ; offset += overviewPageSize {
		page, err := store.ListTurnsSince(ctx, siteID, since, offset, overviewPageSize)
		if err != nil {
			return nil, err
		}

		turns = append(turns, page...)
		if len(page) < overviewPageSize {
			return turns, nil
		}
	}
}

// satisfactionPercent averages feedback scores (positive 1, neutral 0.5,
// negative 0) over rated turns and scales to 0-100 with two decimals.
func satisfactionPercent(turns []domain.ChatTurn) float64 {
	var sum float64
	rated := 0

	for _, turn := range turns {
		if turn.Feedback == nil {
			continue
		}
		sum += turn.Feedback.Sentiment.Score()
		rated++
	}
	if rated == 0 {
		return 0
	}

	return math.Round(sum/float64(rated)*10000) / 100
}

func avgLatency(turns []domain.ChatTurn) int64 {
	if len(turns) == 0 {
		return 0
	}

	var total int64
	for _, turn := range turns {
		total += turn.LatencyMS
	}

	return total / int64(len(turns))
}

// weeklyTrend buckets the window into seven calendar days, oldest first.
func weeklyTrend(turns []domain.ChatTurn, now time.Time) []domain.TrendPoint {
	points := make([]domain.TrendPoint, overviewWindowDays)
	byDate := make(map[string]int, overviewWindowDays)

	for i := 0; i < overviewWindowDays; i++ {
		date := now.AddDate(0, 0, i-overviewWindowDays+1).Format("2006-01-02")
		points[i] = domain.TrendPoint{Date: date}
		byDate[date] = i
	}

	for _, turn := range turns {
		idx, ok := byDate[turn.CreatedAt.UTC().Format("2006-01-02")]
		if !ok {
			continue
		}
		points[idx].Total++
		if turn.IsGap() {
			points[idx].Unanswered++
		}
	}

	return points
}

func topQueries(turns []domain.ChatTurn) []domain.QueryCount {
	counts := make(map[string]int)
	display := make(map[string]string)

	for _, turn := range turns {
		key := strings.ToLower(strings.TrimSpace(turn.Query))
		if key == "" {
			continue
		}
		counts[key]++
		if _, ok := display[key]; !ok {
			display[key] = strings.TrimSpace(turn.Query)
		}
	}

	queries := make([]domain.QueryCount, 0, len(counts))
	for key, count := range counts {
		queries = append(queries, domain.QueryCount{Query: display[key], Count: count})
	}
	sort.Slice(queries, func(i, j int) bool {
		if queries[i].Count == queries[j].Count {
			return queries[i].Query < queries[j].Query
		}
		return queries[i].Count > queries[j].Count
	})

	if len(queries) > topQueryCount {
		queries = queries[:topQueryCount]
	}

	return queries
}

// commonIssues clusters gap turns by topic so the dashboard shows what
// visitors keep failing to get answered, with one example per cluster.
func (m *analyticsManager) commonIssues(turns []domain.ChatTurn) []domain.IssueCluster {
	counts := make(map[string]int)
	labels := make(map[string]string)
	examples := make(map[string]string)

	for _, turn := range turns {
		if !turn.IsGap() {
			continue
		}

		key, label := m.classifier.Topic(turn.Query)
		counts[key]++
		labels[key] = label
		if _, ok := examples[key]; !ok {
			examples[key] = turn.Query
		}
	}

	issues := make([]domain.IssueCluster, 0, len(counts))
	for key, count := range counts {
		issues = append(issues, domain.IssueCluster{
			Topic:   labels[key],
			Count:   count,
			Example: examples[key],
		})
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Count == issues[j].Count {
			return issues[i].Topic < issues[j].Topic
		}
		return issues[i].Count > issues[j].Count
	})

	if len(issues) > commonIssueCount {
		issues = issues[:commonIssueCount]
	}

	return issues
}
