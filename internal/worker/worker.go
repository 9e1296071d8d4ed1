// Package worker turns an item reference into a fully assembled record.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/stl-revenue-crawler/internal/crawler"
	"github.com/JakeFAU/stl-revenue-crawler/internal/extract"
	"github.com/JakeFAU/stl-revenue-crawler/internal/metrics"
)

// Config controls Processor behavior.
type Config struct {
	// Headers are sent with every detail-page request.
	Headers http.Header
}

// Processor fetches one detail page and builds its record.
type Processor struct {
	fetcher crawler.Fetcher
	clock   crawler.Clock
	cfg     Config
	logger  *zap.Logger
}

var _ crawler.ItemProcessor = (*Processor)(nil)

// New constructs a Processor.
func New(fetcher crawler.Fetcher, clock crawler.Clock, cfg Config, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		fetcher: fetcher,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Process fetches ref and extracts its record. On error no record is returned.
func (p *Processor) Process(ctx context.Context, ref string) (crawler.ItemRecord, error) {
	resp, err := p.fetcher.Fetch(ctx, crawler.FetchRequest{URL: ref, Headers: p.cfg.Headers})
	if err != nil {
		metrics.ObserveFetch(metrics.FetchDetail, 0, 0)
		return crawler.ItemRecord{}, crawler.NewItemError(crawler.KindNetwork, ref, "", err)
	}
	metrics.ObserveFetch(metrics.FetchDetail, resp.StatusCode, resp.Duration)
	if !resp.Success() {
		p.logger.Warn("detail page returned non-success status, parsing anyway",
			zap.String("url", ref),
			zap.Int("status", resp.StatusCode),
		)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return crawler.ItemRecord{}, crawler.NewItemError(crawler.KindParse, ref, "", fmt.Errorf("parse html: %w", err))
	}

	fields, err := extract.Extract(doc)
	if err != nil {
		return crawler.ItemRecord{}, withURL(err, ref)
	}

	record := Assemble(ref, fields, p.clock.Now())
	p.logger.Debug("item processed",
		zap.String("url", ref),
		zap.String("title", record.Title),
		zap.Int("downloads", record.Downloads),
		zap.Float64("total_item_revenue", record.TotalRevenue),
	)
	return record, nil
}

// Assemble builds a record from extracted fields, stamping the capture time and
// recomputing revenue.
func Assemble(ref string, fields crawler.ItemFields, at time.Time) crawler.ItemRecord {
	tags := fields.Tags
	if tags == nil {
		tags = []string{}
	}
	return crawler.ItemRecord{
		ItemURL:      ref,
		Title:        fields.Title,
		Tags:         tags,
		Downloads:    fields.Downloads,
		PriceRaw:     fields.PriceRaw,
		Price:        fields.Price,
		Currency:     fields.Currency,
		RecordTime:   at.UTC(),
		TotalRevenue: Revenue(fields.Downloads, fields.Price),
	}
}

// Revenue is downloads times unit price.
func Revenue(downloads int, price float64) float64 {
	return float64(downloads) * price
}

func withURL(err error, ref string) error {
	var itemErr *crawler.ItemError
	if errors.As(err, &itemErr) {
		if itemErr.URL == "" {
			itemErr.URL = ref
		}
		return itemErr
	}
	return crawler.NewItemError(crawler.KindParse, ref, "", err)
}
