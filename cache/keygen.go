package cache

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
)

// Suffixes appended to a key when an entry is stored as separate pieces.
// These are naming derivations only; the hash is computed once per URL.
const (
	suffixResponse = "_response"
	suffixData     = "_data"
	suffixUserInfo = "_userInfo"
)

// KeyForURL derives the cache key for a request URL: the md5 hex digest
// of the canonical absolute URL string. The same URL always maps to the
// same key, and the key is a fixed 32-character string, so composed file
// paths stay well under filesystem name limits no matter how long the
// URL is. Callers can use this to predict a cache path without I/O.
func KeyForURL(rawURL string) string {
	sum := md5.Sum([]byte(canonicalURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// canonicalURL normalizes a request URL to its absolute string form so
// that trivially different spellings of the same URL share a key.
func canonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		// Not parseable as a URL; hash the raw identifier as-is.
		return raw
	}
	return u.String()
}
