package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/stl-revenue-crawler/internal/config"
	"github.com/JakeFAU/stl-revenue-crawler/internal/dispatcher"
)

func newSite(t *testing.T, pages int) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var page int
		if _, err := fmt.Sscanf(r.URL.Path, "/page/%d", &page); err == nil {
			if page < 1 || page > pages {
				http.NotFound(w, r)
				return
			}
			fmt.Fprintf(w, "<rss><channel><item><guid>%s/item/%d</guid></item></channel></rss>", srv.URL, page)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/item/") {
			fmt.Fprintf(w, `<html><head><meta property="og:title" content="Item %s"></head><body>
<span><span data-counter-target="number">4</span><span data-counter-target="text">downloads</span></span>
<span class="btn btn--breathing btn-group-end btn-third">$1.50</span></body></html>`, r.URL.Path)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(listingURL string) config.Config {
	return config.Config{
		Crawler: config.CrawlerConfig{ListingURL: listingURL, StartPage: 1, UserAgent: "test"},
		HTTP:    config.HTTPConfig{TimeoutSeconds: 5},
		Storage: config.StorageConfig{Backend: config.BackendMemory, ContentType: "application/json"},
	}
}

func TestRunEndToEnd(t *testing.T) {
	site := newSite(t, 2)
	ctx := context.Background()

	a, err := New(ctx, testConfig(site.URL+"/page/"), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	assert.NotEmpty(t, a.RunID())

	summary, err := a.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, dispatcher.Summary{Pages: 2, Captured: 2}, summary)
}

type fixedIDs string

func (f fixedIDs) NewID() (string, error) { return string(f), nil }

func TestNewWithIDs(t *testing.T) {
	a, err := NewWithIDs(context.Background(), testConfig("https://example.test/page/"), nil, fixedIDs("run-42"))
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "run-42", a.RunID())
}

func TestRunLocalBackendIsIdempotent(t *testing.T) {
	site := newSite(t, 1)
	ctx := context.Background()
	cfg := testConfig(site.URL + "/page/{n}")
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.BaseDir = filepath.Join(t.TempDir(), "data")

	first, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	summary, err := first.Run(ctx)
	first.Close()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Captured)

	second, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()
	summary, err = second.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, dispatcher.Summary{Pages: 1, Skipped: 1}, summary)

	matches, err := filepath.Glob(filepath.Join(cfg.Storage.BaseDir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestRunWithOperatorServer(t *testing.T) {
	site := newSite(t, 1)
	ctx := context.Background()
	cfg := testConfig(site.URL + "/page/")
	cfg.Metrics.Addr = "127.0.0.1:0"

	a, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.server)

	summary, err := a.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Captured)
}

func TestNewFailsOnUnknownBackend(t *testing.T) {
	cfg := testConfig("https://example.test/page/")
	cfg.Storage.Backend = "s3"

	_, err := New(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "unknown storage backend")
}

type mockCloser struct {
	mock.Mock
}

func (m *mockCloser) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestCloseReleasesInReverseOrder(t *testing.T) {
	var order []string
	first := new(mockCloser)
	second := new(mockCloser)
	first.On("Close").Run(func(mock.Arguments) { order = append(order, "first") }).Return(nil).Once()
	second.On("Close").Run(func(mock.Arguments) { order = append(order, "second") }).
		Return(errors.New("already closed")).Once()

	a := &App{logger: zap.NewNop()}
	a.addCloser("first", first)
	a.addCloser("second", second)

	a.Close()
	a.Close()

	first.AssertExpectations(t)
	second.AssertExpectations(t)
	assert.Equal(t, []string{"second", "first"}, order)
}
