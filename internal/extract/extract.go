// Package extract pulls item fields out of detail pages and item references out of
// listing feeds. Everything here is pure: callers own fetching and parsing.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/stl-revenue-crawler/internal/crawler"
)

const (
	titleSelector         = `meta[property="og:title"]`
	tagSelector           = "a.btn.btn-second.btn--max-size"
	priceSelector         = "span.btn--breathing.btn-group-end.btn-third"
	counterLabelSelector  = `span[data-counter-target="text"]`
	counterNumberSelector = `span[data-counter-target="number"]`
	guidSelector          = "guid"

	// FreeLabel is the exact price text of free items.
	FreeLabel = "Free"
)

// Record field names reported in extraction errors.
const (
	FieldTitle     = "title"
	FieldDownloads = "item_downloads"
	FieldPrice     = "item_price"
)

// Label matching is exact and case-sensitive; "Downloads" is not a download counter.
var downloadLabels = map[string]struct{}{
	"download":  {},
	"downloads": {},
}

var pricePattern = regexp.MustCompile(`[-+]?[.]?[\d]+(?:,\d\d\d)*[\.]?\d*(?:[eE][-+]?\d+)?`)

// Extract produces the semantic fields of an item detail page. Missing tags or
// download counters fall back to empty/zero; a missing title or price element is
// a KindMissingField error. Returned errors carry no URL; the caller attaches it.
func Extract(doc *goquery.Document) (crawler.ItemFields, error) {
	title, err := Title(doc)
	if err != nil {
		return crawler.ItemFields{}, err
	}
	downloads, err := Downloads(doc)
	if err != nil {
		return crawler.ItemFields{}, err
	}
	priceRaw, price, currency, err := Price(doc)
	if err != nil {
		return crawler.ItemFields{}, err
	}
	return crawler.ItemFields{
		Title:     title,
		Tags:      Tags(doc),
		Downloads: downloads,
		PriceRaw:  priceRaw,
		Price:     price,
		Currency:  currency,
	}, nil
}

// Title reads the og:title metadata.
func Title(doc *goquery.Document) (string, error) {
	meta := doc.Find(titleSelector).First()
	if meta.Length() == 0 {
		return "", crawler.NewItemError(crawler.KindMissingField, "", FieldTitle, crawler.ErrMissingField)
	}
	content, ok := meta.Attr("content")
	if !ok {
		return "", crawler.NewItemError(crawler.KindMissingField, "", FieldTitle,
			fmt.Errorf("og:title has no content attribute: %w", crawler.ErrMissingField))
	}
	return content, nil
}

// Tags returns the visible text of every tag link in page order.
func Tags(doc *goquery.Document) []string {
	tags := make([]string, 0)
	doc.Find(tagSelector).Each(func(_ int, s *goquery.Selection) {
		tags = append(tags, strings.TrimSpace(s.Text()))
	})
	return tags
}

// Downloads finds the first counter widget labelled "download" or "downloads" and
// parses its number. No such widget means 0.
func Downloads(doc *goquery.Document) (int, error) {
	var (
		downloads int
		err       error
	)
	doc.Find(counterLabelSelector).EachWithBreak(func(_ int, label *goquery.Selection) bool {
		if _, ok := downloadLabels[strings.TrimSpace(label.Text())]; !ok {
			return true
		}
		widget := label.ParentsFiltered("span").First()
		number := widget.Find(counterNumberSelector).First()
		if number.Length() == 0 {
			err = crawler.NewItemError(crawler.KindMissingField, "", FieldDownloads,
				fmt.Errorf("download counter has no number: %w", crawler.ErrMissingField))
			return false
		}
		raw := strings.TrimSpace(number.Text())
		n, convErr := strconv.Atoi(raw)
		if convErr != nil {
			err = crawler.NewItemError(crawler.KindParse, "", FieldDownloads, fmt.Errorf("parse %q: %w", raw, convErr))
			return false
		}
		downloads = n
		return false
	})
	if err != nil {
		return 0, err
	}
	return downloads, nil
}

// Price locates the buy/free button, which every detail page must have.
func Price(doc *goquery.Document) (string, float64, *string, error) {
	button := doc.Find(priceSelector).First()
	if button.Length() == 0 {
		return "", 0, nil, crawler.NewItemError(crawler.KindMissingField, "", FieldPrice, crawler.ErrMissingField)
	}
	raw := strings.TrimSpace(button.Text())
	price, currency, err := ParsePrice(raw)
	if err != nil {
		return "", 0, nil, crawler.NewItemError(crawler.KindParse, "", FieldPrice, err)
	}
	return raw, price, currency, nil
}

// ParsePrice splits display text such as "$1,234.50" into 1234.5 and "$".
// "Free" is price 0 with a nil currency. The currency is whatever remains once
// the numeric text is removed, whitespace included.
func ParsePrice(raw string) (float64, *string, error) {
	if raw == FreeLabel {
		return 0, nil, nil
	}
	numeric := pricePattern.FindString(raw)
	if numeric == "" {
		return 0, nil, fmt.Errorf("no numeric price in %q", raw)
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(numeric, ",", ""), 64)
	if err != nil {
		return 0, nil, fmt.Errorf("parse price %q: %w", numeric, err)
	}
	currency := strings.ReplaceAll(raw, numeric, "")
	return price, &currency, nil
}

// ItemRefs returns the text of every guid element of a listing feed, in order.
func ItemRefs(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	var refs []string
	doc.Find(guidSelector).Each(func(_ int, s *goquery.Selection) {
		if ref := strings.TrimSpace(s.Text()); ref != "" {
			refs = append(refs, ref)
		}
	})
	return refs, nil
}
