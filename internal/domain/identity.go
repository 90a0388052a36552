package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Fingerprint identifies a review by its trimmed, lower-cased body.
type Fingerprint string

func FingerprintOf(body string) Fingerprint {
	norm := strings.ToLower(strings.TrimSpace(body))
	sum := sha1.Sum([]byte(norm))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// IdentityIndex is the set of fingerprints already persisted for one target.
// It only grows: there is no removal.
type IdentityIndex struct {
	seen map[Fingerprint]struct{}
}

func NewIdentityIndex() *IdentityIndex {
	return &IdentityIndex{seen: make(map[Fingerprint]struct{})}
}

func (ix *IdentityIndex) Has(fp Fingerprint) bool {
	_, ok := ix.seen[fp]
	return ok
}

// Add inserts fp and reports whether it was new.
func (ix *IdentityIndex) Add(fp Fingerprint) bool {
	if ix.seen == nil {
		ix.seen = make(map[Fingerprint]struct{})
	}
	if _, ok := ix.seen[fp]; ok {
		return false
	}
	ix.seen[fp] = struct{}{}
	return true
}

func (ix *IdentityIndex) Len() int { return len(ix.seen) }
