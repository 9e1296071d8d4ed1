// Package app wires configuration into long-lived services and owns their
// lifecycle for a single crawl run.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/stl-revenue-crawler/internal/api"
	"github.com/JakeFAU/stl-revenue-crawler/internal/clock/system"
	"github.com/JakeFAU/stl-revenue-crawler/internal/config"
	"github.com/JakeFAU/stl-revenue-crawler/internal/crawler"
	"github.com/JakeFAU/stl-revenue-crawler/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/stl-revenue-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/stl-revenue-crawler/internal/hash/md5"
	"github.com/JakeFAU/stl-revenue-crawler/internal/id/uuid"
	"github.com/JakeFAU/stl-revenue-crawler/internal/identity"
	pubsubpublisher "github.com/JakeFAU/stl-revenue-crawler/internal/publisher/pubsub"
	gcsstore "github.com/JakeFAU/stl-revenue-crawler/internal/storage/gcs"
	"github.com/JakeFAU/stl-revenue-crawler/internal/storage/local"
	"github.com/JakeFAU/stl-revenue-crawler/internal/storage/memory"
	"github.com/JakeFAU/stl-revenue-crawler/internal/storage/postgres"
	redisstore "github.com/JakeFAU/stl-revenue-crawler/internal/storage/redis"
	"github.com/JakeFAU/stl-revenue-crawler/internal/store"
	"github.com/JakeFAU/stl-revenue-crawler/internal/telemetry"
	"github.com/JakeFAU/stl-revenue-crawler/internal/worker"
)

// ServiceName identifies the crawler in traces.
const ServiceName = "stl-revenue-crawler"

// App holds the services of one crawl run.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	runID     string
	startedAt time.Time
	crawler   *dispatcher.Crawler
	server    *api.Server
	closers   []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// New builds every service the configuration asks for. On error, whatever was
// already opened is closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	return NewWithIDs(ctx, cfg, logger, uuid.New())
}

// NewWithIDs is New with an explicit run ID source.
func NewWithIDs(ctx context.Context, cfg config.Config, logger *zap.Logger, ids crawler.IDGenerator) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	clock := system.New()
	a := &App{
		cfg:       cfg,
		logger:    logger.With(zap.String("run_id", runID)),
		runID:     runID,
		startedAt: clock.Now(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	tp, err := telemetry.InitTracerProvider(ctx, ServiceName, runID)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.addCloser("tracer provider", closerFunc(func() error {
		return tp.Shutdown(context.Background())
	}))

	blobs, err := a.openBlobStore(ctx)
	if err != nil {
		return nil, err
	}
	records, err := store.New(blobs, store.Config{
		Prefix:      cfg.Storage.Prefix,
		ContentType: cfg.Storage.ContentType,
	}, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("record store: %w", err)
	}

	publisher, err := a.openPublisher(ctx)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	})
	processor := worker.New(fetcher, clock, worker.Config{Headers: headers}, logger.Named("worker"))

	a.crawler, err = dispatcher.New(dispatcher.Config{
		ListingURL:      cfg.Crawler.ListingURL,
		StartPage:       cfg.Crawler.StartPage,
		MaxPages:        cfg.Crawler.MaxPages,
		SkipFailedItems: cfg.Crawler.SkipFailedItems,
		Topic:           cfg.PubSub.TopicName,
		Headers:         headers,
	}, dispatcher.Deps{
		Prober:    fetcher,
		Fetcher:   fetcher,
		Keyer:     identity.New(md5.New(), clock),
		Records:   records,
		Processor: processor,
		Publisher: publisher,
	}, runID, logger.Named("dispatcher"))
	if err != nil {
		return nil, fmt.Errorf("page crawler: %w", err)
	}

	if cfg.Metrics.Addr != "" {
		a.server = api.NewServer(a.crawler, a.startedAt, logger.Named("api"))
	}
	return a, nil
}

// RunID identifies this run.
func (a *App) RunID() string {
	return a.runID
}

// Run executes the crawl. When metrics.addr is set the operator server runs
// alongside it and stops once the crawl returns.
func (a *App) Run(ctx context.Context) (dispatcher.Summary, error) {
	if a.server == nil {
		return a.crawler.Run(ctx)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.server.ListenAndServe(serverCtx, a.cfg.Metrics.Addr); err != nil {
			a.logger.Error("operator server failed", zap.Error(err))
		}
	}()

	summary, err := a.crawler.Run(ctx)
	cancel()
	wg.Wait()
	return summary, err
}

// Close releases services in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", nc.name), zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) addCloser(name string, c io.Closer) {
	a.closers = append(a.closers, namedCloser{name: name, c: c})
}

func (a *App) openBlobStore(ctx context.Context) (crawler.BlobStore, error) {
	cfg := a.cfg
	a.logger.Info("opening record storage", zap.String("backend", cfg.Storage.Backend))
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		blobs, err := local.New(local.Config{BaseDir: cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local storage: %w", err)
		}
		return blobs, nil
	case config.BackendMemory:
		return memory.NewBlobStore(), nil
	case config.BackendGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		a.addCloser("gcs client", client)
		blobs, err := gcsstore.New(client, gcsstore.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs storage: %w", err)
		}
		return blobs, nil
	case config.BackendRedis:
		blobs, err := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis storage: %w", err)
		}
		a.addCloser("redis", blobs)
		return blobs, nil
	case config.BackendPostgres:
		blobs, err := postgres.NewBlobStore(ctx, postgres.BlobStoreConfig{
			DSN:             cfg.DB.DSN,
			Table:           cfg.DB.Table,
			MaxConns:        cfg.DB.MaxConns,
			MaxConnLifetime: cfg.ConnLifetime(),
		})
		if err != nil {
			return nil, fmt.Errorf("postgres storage: %w", err)
		}
		a.addCloser("postgres", closerFunc(func() error {
			blobs.Close()
			return nil
		}))
		return blobs, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func (a *App) openPublisher(ctx context.Context) (crawler.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	pub, client, err := pubsubpublisher.Connect(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher: %w", err)
	}
	a.addCloser("pubsub client", client)
	a.addCloser("pubsub topic", closerFunc(func() error {
		pub.Stop()
		return nil
	}))
	a.logger.Info("capture notifications enabled", zap.String("topic", a.cfg.PubSub.TopicName))
	return pub, nil
}
