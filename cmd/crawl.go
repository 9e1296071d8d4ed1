package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/stl-revenue-crawler/internal/app"
	"github.com/JakeFAU/stl-revenue-crawler/internal/config"
	"github.com/JakeFAU/stl-revenue-crawler/internal/dispatcher"
)

// crawlRunner is what the crawl command needs from the application.
type crawlRunner interface {
	RunID() string
	Run(ctx context.Context) (dispatcher.Summary, error)
	Close()
}

// newApp is the application factory. It is a variable so tests can inject a fake.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawlRunner, error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var (
		startPage       int
		maxPages        int
		skipFailedItems bool
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the listing and capture every item not yet stored this month",
		Long: `Probes listing pages from the start page upward until a page answers with a
non-success status. Items already captured this month are skipped without
fetching their detail page. By default the first failing item ends the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			cfg := rt.cfg
			if cmd.Flags().Changed("start-page") {
				cfg.Crawler.StartPage = startPage
			}
			if cmd.Flags().Changed("max-pages") {
				cfg.Crawler.MaxPages = maxPages
			}
			if cmd.Flags().Changed("skip-failed-items") {
				cfg.Crawler.SkipFailedItems = skipFailedItems
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runCrawl(cmd.Context(), cfg, rt.logger)
		},
	}
	cmd.Flags().IntVar(&startPage, "start-page", 1, "first listing page to probe")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many listing pages (0 = no limit)")
	cmd.Flags().BoolVar(&skipFailedItems, "skip-failed-items", false, "log failing items and continue")
	return cmd
}

func runCrawl(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer a.Close()

	summary, err := a.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl run %s: %w", a.RunID(), err)
	}
	logger.Info("crawl command finished",
		zap.String("run_id", a.RunID()),
		zap.Int("pages", summary.Pages),
		zap.Int("captured", summary.Captured),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return nil
}
