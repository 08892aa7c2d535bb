package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/helpdeck/helpdeck/internal/config"
	"github.com/helpdeck/helpdeck/internal/initialization"
)

func NewAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Recompute knowledge gaps for a site",
		Long: `Run the knowledge gap analysis for one site immediately and print the
result. The server runs the same analysis on the configured schedule; this
command exists for operators who do not want to wait for it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			siteID, _ := cmd.Flags().GetString("site-id")
			return runAnalyze(siteID)
		},
	}

	cmd.Flags().String("site-id", "", "Site to analyze")
	_ = cmd.MarkFlagRequired("site-id")

	return cmd
}

func runAnalyze(siteID string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	deps, err := initialization.BuildAppDependencies(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application dependencies")
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()

		_ = deps.Close(closeCtx)
	}()

	gaps, err := deps.GapAnalyzer.Recompute(ctx, siteID)
	if err != nil {
		return err
	}

	if len(gaps) == 0 {
		fmt.Println("No knowledge gaps above the attempt floor.")
		return nil
	}

	fmt.Printf("%d knowledge gap(s) for site %s:\n\n", len(gaps), siteID)
	for _, gap := range gaps {
		fmt.Printf("  %-28s %3d%%  %-9s attempts %-4d last seen %s\n",
			gap.TopicLabel,
			gap.GapRate,
			gap.Status,
			gap.RecentAttempts,
			gap.LastSeenAt.Format("2006-01-02 15:04"),
		)
	}

	return nil
}
