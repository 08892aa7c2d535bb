package managers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/helpdeck/helpdeck/internal/analytics"
	"github.com/helpdeck/helpdeck/internal/domain"
)

const maxMissingExamples = 3

// GapPolicy holds the thresholds that drive gap lifecycle decisions. Rates
// are integer percentages of gap turns over attempts within the window.
type GapPolicy struct {
	WindowDays  int
	MinAttempts int
	OpenRate    int
	ResolveRate int
	ReopenRate  int
}

func (p GapPolicy) withDefaults() GapPolicy {
	if p.WindowDays <= 0 {
		p.WindowDays = 7
	}
	if p.MinAttempts <= 0 {
		p.MinAttempts = 3
	}
	if p.OpenRate <= 0 {
		p.OpenRate = 20
	}
	if p.ResolveRate <= 0 {
		p.ResolveRate = 10
	}
	if p.ReopenRate <= 0 {
		p.ReopenRate = 30
	}

	return p
}

type gapAnalyzer struct {
	conversations domain.ConversationStore
	gaps          domain.GapStore
	classifier    *analytics.Classifier
	policy        GapPolicy
}

type GapAnalyzerDependencies struct {
	ConversationStore domain.ConversationStore
	GapStore          domain.GapStore
	Classifier        *analytics.Classifier
	Policy            GapPolicy
}

func NewGapAnalyzer(deps GapAnalyzerDependencies) domain.GapAnalyzer {
	return &gapAnalyzer{
		conversations: deps.ConversationStore,
		gaps:          deps.GapStore,
		classifier:    deps.Classifier,
		policy:        deps.Policy.withDefaults(),
	}
}

type topicStats struct {
	label    string
	attempts int
	gapTurns int
	lastSeen time.Time
	examples []string
}

// Recompute mines the recent turn window for topics the knowledge base keeps
// failing on and reconciles the stored gaps with the fresh rates. Topics
// below the attempt floor are ignored; one noisy question is not a trend.
func (a *gapAnalyzer) Recompute(ctx context.Context, siteID string) ([]domain.KnowledgeGap, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -a.policy.WindowDays)

	turns, err := listTurnsWindow(ctx, a.conversations, siteID, since)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]*topicStats)
	for _, turn := range turns {
		key, label := a.classifier.Topic(turn.Query)

		st, ok := stats[key]
		if !ok {
			st = &topicStats{label: label}
			stats[key] = st
		}

		st.attempts++
		if turn.CreatedAt.After(st.lastSeen) {
			st.lastSeen = turn.CreatedAt
		}
		if turn.IsGap() {
			st.gapTurns++
			if len(st.examples) < maxMissingExamples {
				st.examples = append(st.examples, turn.Query)
			}
		}
	}

	for key, st := range stats {
		if st.attempts < a.policy.MinAttempts {
			continue
		}

		rate := int(math.Round(100 * float64(st.gapTurns) / float64(st.attempts)))

		if err := a.reconcile(ctx, siteID, key, st, rate, now); err != nil {
			return nil, err
		}
	}

	return a.gaps.ListBySite(ctx, siteID)
}

func (a *gapAnalyzer) reconcile(ctx context.Context, siteID, topic string, st *topicStats, rate int, now time.Time) error {
	existing, err := a.gaps.GetByTopic(ctx, siteID, topic)
	if err != nil {
		if !errors.Is(err, domain.ErrGapNotFound) {
			return err
		}
		if rate < a.policy.OpenRate {
			return nil
		}

		gap := domain.KnowledgeGap{
			ID:             xid.New().String(),
			SiteID:         siteID,
			Topic:          topic,
			TopicLabel:     st.label,
			GapRate:        rate,
			Why:            whyText(st.gapTurns, st.attempts, st.label),
			Missing:        st.examples,
			RecentAttempts: st.attempts,
			LastSeenAt:     st.lastSeen,
			Status:         domain.GapStatusOpen,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := a.gaps.Upsert(ctx, gap); err != nil {
			return err
		}

		log.Info().
			Str("site_id", siteID).
			Str("topic", topic).
			Int("gap_rate", rate).
			Msg("Knowledge gap opened")

		return nil
	}

	existing.TopicLabel = st.label
	existing.GapRate = rate
	existing.Why = whyText(st.gapTurns, st.attempts, st.label)
	existing.Missing = st.examples
	existing.RecentAttempts = st.attempts
	existing.LastSeenAt = st.lastSeen
	existing.UpdatedAt = now

	switch {
	case existing.Status == domain.GapStatusLinked && rate < a.policy.ResolveRate:
		// The linked content is working; confirm the resolution.
		existing.Status = domain.GapStatusResolved
		resolvedAt := now
		existing.ResolvedAt = &resolvedAt

		log.Info().Str("site_id", siteID).Str("topic", topic).Msg("Knowledge gap resolved")

	case existing.Status == domain.GapStatusResolved && rate >= a.policy.ReopenRate:
		// The topic regressed; surface it again.
		existing.Status = domain.GapStatusOpen
		existing.ResolvedAt = nil

		log.Info().Str("site_id", siteID).Str("topic", topic).Int("gap_rate", rate).Msg("Knowledge gap reopened")
	}

	return a.gaps.Upsert(ctx, existing)
}

func (a *gapAnalyzer) ListGaps(ctx context.Context, siteID string) ([]domain.KnowledgeGap, error) {
	return a.gaps.ListBySite(ctx, siteID)
}

func (a *gapAnalyzer) ApplyAction(ctx context.Context, siteID string, params domain.GapActionParams) (domain.KnowledgeGap, error) {
	if params.Topic == "" {
		return domain.KnowledgeGap{}, domain.ValidationError("topic is required")
	}

	gap, err := a.gaps.GetByTopic(ctx, siteID, params.Topic)
	if err != nil {
		return domain.KnowledgeGap{}, err
	}

	now := time.Now().UTC()

	switch params.Action {
	case domain.GapActionLinkSource:
		sources := metadataSources(params.Metadata)
		if len(sources) == 0 {
			return domain.KnowledgeGap{}, domain.ValidationError("link_source requires document_ids or urls")
		}
		gap.LinkedSources = mergeSources(gap.LinkedSources, sources)
		gap.Status = domain.GapStatusLinked
		gap.ResolvedAt = nil

	case domain.GapActionMarkResolved:
		gap.Status = domain.GapStatusResolved
		resolvedAt := now
		gap.ResolvedAt = &resolvedAt

	default:
		return domain.KnowledgeGap{}, domain.ValidationError("action must be link_source or mark_resolved")
	}

	gap.UpdatedAt = now

	if err := a.gaps.Upsert(ctx, gap); err != nil {
		return domain.KnowledgeGap{}, err
	}

	return gap, nil
}

func whyText(gapTurns, attempts int, label string) string {
	return fmt.Sprintf("%d of %d recent questions about %q went unanswered or were rated unhelpful", gapTurns, attempts, label)
}

// metadataSources pulls linkable source references out of the action
// metadata. The dashboard sends document_ids, urls or a generic sources list.
func metadataSources(metadata map[string]any) []string {
	var sources []string

	for _, key := range []string{"document_ids", "urls", "sources"} {
		switch value := metadata[key].(type) {
		case []string:
			sources = append(sources, value...)
		case []any:
			for _, item := range value {
				if s, ok := item.(string); ok && s != "" {
					sources = append(sources, s)
				}
			}
		case string:
			if value != "" {
				sources = append(sources, value)
			}
		}
	}

	return sources
}

func mergeSources(existing, added []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(added))
	merged := make([]string, 0, len(existing)+len(added))

	for _, source := range append(existing, added...) {
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		merged = append(merged, source)
	}

	return merged
}
