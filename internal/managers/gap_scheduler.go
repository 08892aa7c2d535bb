package managers

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/helpdeck/helpdeck/internal/domain"
)

// GapScheduler recomputes knowledge gaps for every enabled site on a cron
// schedule, so the dashboard stays current without manual recompute calls.
type GapScheduler struct {
	sites    domain.SiteStore
	analyzer domain.GapAnalyzer
	schedule cron.Schedule
	spec     string
}

type GapSchedulerDependencies struct {
	SiteStore domain.SiteStore
	Analyzer  domain.GapAnalyzer
	CronSpec  string
}

func NewGapScheduler(deps GapSchedulerDependencies) (*GapScheduler, error) {
	schedule, err := cron.ParseStandard(deps.CronSpec)
	if err != nil {
		return nil, fmt.Errorf("invalid gap recompute schedule %q: %w", deps.CronSpec, err)
	}

	return &GapScheduler{
		sites:    deps.SiteStore,
		analyzer: deps.Analyzer,
		schedule: schedule,
		spec:     deps.CronSpec,
	}, nil
}

// Start launches the scheduler loop; it stops when the context is canceled.
func (s *GapScheduler) Start(ctx context.Context) {
	log.Info().Str("schedule", s.spec).Msg("Gap recompute scheduler started")

	go s.run(ctx)
}

func (s *GapScheduler) run(ctx context.Context) {
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.recomputeAll(ctx)
	}
}

func (s *GapScheduler) recomputeAll(ctx context.Context) {
	sites, err := s.sites.ListEnabled(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sites for gap recompute")
		return
	}

	for _, site := range sites {
		gaps, err := s.analyzer.Recompute(ctx, site.ID)
		if err != nil {
			log.Error().Err(err).Str("site_id", site.ID).Msg("Gap recompute failed")
			continue
		}

		log.Debug().Str("site_id", site.ID).Int("gaps", len(gaps)).Msg("Gap recompute completed")
	}
}
