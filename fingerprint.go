package ragserve

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the dedup key for an ingest request: the URL string
// for URL submissions, the hex SHA-256 of the content for inline submissions.
//
// URL submissions are identity-addressed: two URLs serving byte-identical
// content are distinct, since re-crawling a live URL is a meaningful
// operation even when content matches. Inline submissions are
// content-addressed.
func Fingerprint(req IngestRequest) string {
	if req.URL != "" {
		return req.URL
	}
	return HashContent(req.Content)
}

// HashContent returns the hex-encoded SHA-256 of the given content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
