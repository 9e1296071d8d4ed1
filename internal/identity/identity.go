// Package identity derives storage keys from item references.
//
// A key is the hex digest of the reference followed by the UTC year and month,
// e.g. "5d41402abc4b2a76b9719d911017c592_2024_03.json". The same reference maps to
// the same key for a whole calendar month and to a new key the month after, so
// items are captured once per month.
package identity

import (
	"fmt"
	"time"

	"github.com/JakeFAU/stl-revenue-crawler/internal/crawler"
)

// Extension is appended to every key.
const Extension = ".json"

// Keyer computes keys against the current month of its clock.
type Keyer struct {
	hasher crawler.Hasher
	clock  crawler.Clock
}

// New creates a Keyer.
func New(hasher crawler.Hasher, clock crawler.Clock) *Keyer {
	return &Keyer{hasher: hasher, clock: clock}
}

// Key returns the storage key for ref in the clock's current month.
func (k *Keyer) Key(ref string) (string, error) {
	return KeyFor(k.hasher, ref, k.clock.Now())
}

// KeyFor returns the storage key for ref in the month containing at (UTC).
func KeyFor(hasher crawler.Hasher, ref string, at time.Time) (string, error) {
	digest, err := hasher.Hash([]byte(ref))
	if err != nil {
		return "", fmt.Errorf("hash item reference: %w", err)
	}
	return fmt.Sprintf("%s_%s%s", digest, Month(at), Extension), nil
}

// Month formats the UTC year and month as YYYY_MM.
func Month(at time.Time) string {
	return at.UTC().Format("2006_01")
}
