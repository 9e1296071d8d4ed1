// Package dispatcher drives the page-by-page crawl: probe a listing page, walk its
// item references, skip those already captured this month, and process the rest.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/stl-revenue-crawler/internal/crawler"
	"github.com/JakeFAU/stl-revenue-crawler/internal/extract"
	"github.com/JakeFAU/stl-revenue-crawler/internal/metrics"
)

// PagePlaceholder marks where the page number goes in Config.ListingURL. Without
// it the number is appended.
const PagePlaceholder = "{n}"

const tracerName = "github.com/JakeFAU/stl-revenue-crawler/internal/dispatcher"

// DefaultListingURL is the popular-creations feed.
const DefaultListingURL = "https://cults3d.com/en/creations/popular/page/" + PagePlaceholder

// Config controls the crawl loop.
type Config struct {
	ListingURL string
	StartPage  int
	// MaxPages stops the crawl after this many listing pages. Zero means no bound.
	MaxPages int
	// SkipFailedItems logs item errors and continues instead of ending the run.
	SkipFailedItems bool
	// Topic receives a CaptureEvent per saved record when a publisher is set.
	Topic   string
	Headers http.Header
}

// Summary counts what a run did.
type Summary struct {
	Pages    int
	Captured int
	Skipped  int
	Failed   int
}

// Crawler walks listing pages sequentially.
type Crawler struct {
	cfg       Config
	prober    crawler.Prober
	fetcher   crawler.Fetcher
	keyer     crawler.Keyer
	records   crawler.RecordStore
	processor crawler.ItemProcessor
	publisher crawler.Publisher
	runID     string
	logger    *zap.Logger
	tracer    trace.Tracer

	mu       sync.RWMutex
	progress Summary
}

// Deps bundles the collaborators of a Crawler. Publisher may be nil.
type Deps struct {
	Prober    crawler.Prober
	Fetcher   crawler.Fetcher
	Keyer     crawler.Keyer
	Records   crawler.RecordStore
	Processor crawler.ItemProcessor
	Publisher crawler.Publisher
}

// New creates a Crawler.
func New(cfg Config, deps Deps, runID string, logger *zap.Logger) (*Crawler, error) {
	if deps.Prober == nil || deps.Fetcher == nil || deps.Keyer == nil || deps.Records == nil || deps.Processor == nil {
		return nil, fmt.Errorf("prober, fetcher, keyer, records and processor are required")
	}
	if cfg.ListingURL == "" {
		cfg.ListingURL = DefaultListingURL
	}
	if cfg.StartPage <= 0 {
		cfg.StartPage = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		cfg:       cfg,
		prober:    deps.Prober,
		fetcher:   deps.Fetcher,
		keyer:     deps.Keyer,
		records:   deps.Records,
		processor: deps.Processor,
		publisher: deps.Publisher,
		runID:     runID,
		logger:    logger.With(zap.String("run_id", runID)),
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// PageURL returns the listing URL for page n.
func (c *Crawler) PageURL(n int) string {
	page := strconv.Itoa(n)
	if strings.Contains(c.cfg.ListingURL, PagePlaceholder) {
		return strings.ReplaceAll(c.cfg.ListingURL, PagePlaceholder, page)
	}
	return c.cfg.ListingURL + page
}

// Run crawls until a page probe is unsuccessful, MaxPages is reached or ctx ends.
func (c *Crawler) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	ctx, span := c.tracer.Start(ctx, "crawl.run", trace.WithAttributes(attribute.String("run_id", c.runID)))
	defer span.End()

	c.logger.Info("crawl started",
		zap.String("listing_url", c.cfg.ListingURL),
		zap.Int("start_page", c.cfg.StartPage),
	)

	for page := c.cfg.StartPage; ; page++ {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("crawl canceled before page %d: %w", page, err)
		}
		if c.cfg.MaxPages > 0 && summary.Pages >= c.cfg.MaxPages {
			c.logger.Info("page limit reached", zap.Int("max_pages", c.cfg.MaxPages))
			break
		}

		more, err := c.probe(ctx, page)
		if err != nil {
			return summary, err
		}
		if !more {
			break
		}

		err = c.crawlPage(ctx, page, &summary)
		c.setProgress(summary)
		if err != nil {
			metrics.ObservePage(metrics.PageError)
			return summary, err
		}
		summary.Pages++
		c.setProgress(summary)
		metrics.ObservePage(metrics.PageCrawled)
	}

	c.logger.Info("crawl complete",
		zap.Int("pages", summary.Pages),
		zap.Int("captured", summary.Captured),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// probe reports whether page exists. Any unsuccessful probe, including a
// transport failure, ends pagination; only cancellation is an error.
func (c *Crawler) probe(ctx context.Context, page int) (bool, error) {
	url := c.PageURL(page)
	status, err := c.prober.Probe(ctx, url)
	metrics.ObserveFetch(metrics.FetchProbe, status, 0)
	if err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("probe page %d: %w", page, err)
		}
		c.logger.Warn("page probe failed, treating as end of results",
			zap.Int("page", page),
			zap.String("url", url),
			zap.Error(err),
		)
		metrics.ObservePage(metrics.PageEnd)
		return false, nil
	}
	if !crawler.IsSuccess(status) {
		c.logger.Info("page probe unsuccessful, crawl complete",
			zap.Int("page", page),
			zap.String("url", url),
			zap.Int("status", status),
		)
		metrics.ObservePage(metrics.PageEnd)
		return false, nil
	}
	return true, nil
}

func (c *Crawler) crawlPage(ctx context.Context, page int, summary *Summary) (err error) {
	url := c.PageURL(page)
	ctx, span := c.tracer.Start(ctx, "crawl.page", trace.WithAttributes(
		attribute.Int("page", page),
		attribute.String("url", url),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{URL: url, Headers: c.cfg.Headers})
	if err != nil {
		metrics.ObserveFetch(metrics.FetchListing, 0, 0)
		return crawler.NewItemError(crawler.KindNetwork, url, "", err)
	}
	metrics.ObserveFetch(metrics.FetchListing, resp.StatusCode, resp.Duration)

	refs, err := extract.ItemRefs(resp.Body)
	if err != nil {
		return crawler.NewItemError(crawler.KindParse, url, "", err)
	}
	c.logger.Info("listing page fetched", zap.Int("page", page), zap.Int("items", len(refs)))

	for _, ref := range refs {
		if err := c.handleItem(ctx, ref, summary); err != nil {
			return err
		}
		c.setProgress(*summary)
	}
	return nil
}

// Progress returns the counts of the run so far. It is safe to call while Run
// is in progress.
func (c *Crawler) Progress() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.progress
}

// RunID identifies the run in logs and notifications.
func (c *Crawler) RunID() string {
	return c.runID
}

func (c *Crawler) setProgress(s Summary) {
	c.mu.Lock()
	c.progress = s
	c.mu.Unlock()
}

func (c *Crawler) handleItem(ctx context.Context, ref string, summary *Summary) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("crawl canceled at %s: %w", ref, err)
	}
	key, err := c.keyer.Key(ref)
	if err != nil {
		return fmt.Errorf("storage key for %s: %w", ref, err)
	}
	exists, err := c.records.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check %s: %w", ref, err)
	}
	if exists {
		summary.Skipped++
		metrics.ObserveItem(metrics.ItemSkipped)
		c.logger.Info("item already captured this month, skipping", zap.String("url", ref), zap.String("key", key))
		return nil
	}

	ctx, span := c.tracer.Start(ctx, "crawl.item", trace.WithAttributes(
		attribute.String("url", ref),
		attribute.String("key", key),
	))
	defer span.End()

	record, err := c.processor.Process(ctx, ref)
	if err != nil {
		summary.Failed++
		metrics.ObserveItem(metrics.ItemFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var itemErr *crawler.ItemError
		if c.cfg.SkipFailedItems && errors.As(err, &itemErr) && ctx.Err() == nil {
			c.logger.Warn("item failed, continuing",
				zap.String("url", ref),
				zap.String("kind", string(itemErr.Kind)),
				zap.Error(err),
			)
			return nil
		}
		return fmt.Errorf("process %s: %w", ref, err)
	}

	uri, err := c.records.Save(ctx, record, key)
	if err != nil {
		return fmt.Errorf("save %s: %w", ref, err)
	}
	summary.Captured++
	metrics.ObserveItem(metrics.ItemCaptured)
	c.logger.Info("item captured",
		zap.String("url", ref),
		zap.String("key", key),
		zap.String("uri", uri),
		zap.Float64("total_item_revenue", record.TotalRevenue),
	)
	c.notify(ctx, key, uri, record)
	return nil
}

func (c *Crawler) notify(ctx context.Context, key, uri string, record crawler.ItemRecord) {
	if c.publisher == nil || c.cfg.Topic == "" {
		return
	}
	event := crawler.CaptureEvent{
		RunID:      c.runID,
		Key:        key,
		URI:        uri,
		ItemURL:    record.ItemURL,
		RecordTime: record.RecordTime,
	}
	msgID, err := c.publisher.Publish(ctx, c.cfg.Topic, event)
	if err != nil {
		c.logger.Warn("capture notification failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.logger.Debug("capture notification published", zap.String("key", key), zap.String("message_id", msgID))
}
