package crawler

import (
	"net/http"
	"time"
)

// ItemFields is the part of a record the field extractor produces from a detail page.
type ItemFields struct {
	Title     string
	Tags      []string
	Downloads int
	PriceRaw  string
	Price     float64
	Currency  *string
}

// ItemRecord is the persisted unit, one per item and storage key.
type ItemRecord struct {
	ItemURL      string    `json:"item_url"`
	Title        string    `json:"title"`
	Tags         []string  `json:"tags"`
	Downloads    int       `json:"item_downloads"`
	PriceRaw     string    `json:"item_price_raw"`
	Price        float64   `json:"item_price"`
	Currency     *string   `json:"item_currency"`
	RecordTime   time.Time `json:"record_time"`
	TotalRevenue float64   `json:"total_item_revenue"`
}

// CaptureEvent is published after a record has been saved.
type CaptureEvent struct {
	RunID      string    `json:"run_id"`
	Key        string    `json:"key"`
	URI        string    `json:"uri"`
	ItemURL    string    `json:"item_url"`
	RecordTime time.Time `json:"record_time"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Success reports whether the status code is in [200,300).
func (r FetchResponse) Success() bool {
	return IsSuccess(r.StatusCode)
}

// IsSuccess reports whether code is a 2xx status.
func IsSuccess(code int) bool {
	return code >= 200 && code < 300
}
