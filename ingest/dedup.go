package ingest

import (
	"context"
	"log/slog"

	ragserve "github.com/nholden/ragserve"
)

// DedupGuard checks whether a requested document was already ingested,
// by looking up its fingerprint against stored chunk identifiers.
type DedupGuard struct {
	store  ragserve.VectorStore
	logger *slog.Logger
}

// NewDedupGuard creates a guard backed by the given store.
func NewDedupGuard(store ragserve.VectorStore, logger *slog.Logger) *DedupGuard {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &DedupGuard{store: store, logger: logger}
}

// Check returns whether a document with the request's fingerprint already
// exists, and the fingerprint itself. The lookup is an existence check only:
// at most one match is requested and content is never compared. A store
// failure surfaces as *ragserve.DedupCheckError, deliberately distinct from
// "not a duplicate".
func (g *DedupGuard) Check(ctx context.Context, req ragserve.IngestRequest) (bool, string, error) {
	key := ragserve.Fingerprint(req)

	existing, err := g.store.GetByIdentifier(ctx, key, 1)
	if err != nil {
		g.logger.Error("duplicate_check_failed", "identifier", key, "error", err)
		return false, key, &ragserve.DedupCheckError{Key: key, Err: err}
	}
	return len(existing) > 0, key, nil
}
