// Package md5 provides the MD5 digest used to derive storage keys. It addresses
// content, it does not protect it.
package md5

import (
	"crypto/md5" // #nosec G501 -- content addressing only, not a security boundary.
	"encoding/hex"
)

// Hasher implements crawler.Hasher using MD5.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a lowercase hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := md5.Sum(data) // #nosec G401
	return hex.EncodeToString(sum[:]), nil
}
