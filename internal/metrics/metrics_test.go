package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStatusClass(t *testing.T) {
	testCases := []struct {
		name     string
		code     int
		expected string
	}{
		{"ok", 200, "2xx"},
		{"no content", 204, "2xx"},
		{"redirect", 301, "3xx"},
		{"not found", 404, "4xx"},
		{"server error", 503, "5xx"},
		{"transport error", 0, "error"},
		{"out of range", 999, "error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusClass(tc.code); got != tc.expected {
				t.Errorf("StatusClass(%d) = %q; want %q", tc.code, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if pagesTotal == nil || itemsTotal == nil || fetchesTotal == nil ||
		fetchDurationSeconds == nil || httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveCounters(t *testing.T) {
	Init()
	beforePage := testutil.ToFloat64(pagesTotal.WithLabelValues(PageEnd))
	beforeItem := testutil.ToFloat64(itemsTotal.WithLabelValues(ItemSkipped))

	ObservePage(PageEnd)
	ObserveItem(ItemSkipped)
	ObserveItem(ItemSkipped)
	ObserveFetch(FetchProbe, 404, 20*time.Millisecond)

	if val := testutil.ToFloat64(pagesTotal.WithLabelValues(PageEnd)); val != beforePage+1 {
		t.Errorf("expected pages{end} to grow by 1, got %f -> %f", beforePage, val)
	}
	if val := testutil.ToFloat64(itemsTotal.WithLabelValues(ItemSkipped)); val != beforeItem+2 {
		t.Errorf("expected items{skipped} to grow by 2, got %f -> %f", beforeItem, val)
	}
	if val := testutil.ToFloat64(fetchesTotal.WithLabelValues(FetchProbe, "4xx")); val < 1 {
		t.Errorf("expected fetches{probe,4xx} to be observed, got %f", val)
	}
	if val := testutil.CollectAndCount(fetchDurationSeconds); val <= 0 {
		t.Errorf("expected fetch duration to be observed, got %d", val)
	}
}
