package trust

import (
	"context"

	"fedreg/internal/directory"
)

// DirectoryRepository derives chains and assertion grants from the entity
// directory, so trust answers track registrations and status changes without
// a separate sync step. An active entry yields a single-hop chain to the
// configured anchor; suspended and revoked entries yield an invalid chain.
// Assertion grants follow the entity-type keys of the entry's metadata.
type DirectoryRepository struct {
	store    directory.Store
	anchorID string
}

func NewDirectoryRepository(store directory.Store, anchorID string) *DirectoryRepository {
	return &DirectoryRepository{store: store, anchorID: anchorID}
}

func (r *DirectoryRepository) Lookup(ctx context.Context, entityID string) (*ChainSummary, bool) {
	entry, err := r.store.FindByEntityID(ctx, entityID)
	if err != nil {
		return nil, false
	}
	return r.chainFor(entry), true
}

func (r *DirectoryRepository) ListAll(ctx context.Context) []*ChainSummary {
	entries, err := r.store.List(ctx)
	if err != nil {
		return nil
	}
	chains := make([]*ChainSummary, 0, len(entries))
	for _, entry := range entries {
		chains = append(chains, r.chainFor(entry))
	}
	return chains
}

func (r *DirectoryRepository) Holds(ctx context.Context, entityID, assertionID string) bool {
	entry, err := r.store.FindByEntityID(ctx, entityID)
	if err != nil || entry.Claims == nil {
		return false
	}
	return entry.Claims.HasEntityType(assertionID)
}

func (r *DirectoryRepository) chainFor(entry *directory.Entry) *ChainSummary {
	return &ChainSummary{
		EntityID:      entry.EntityID,
		Chain:         []string{entry.EntityID, r.anchorID},
		TrustAnchorID: r.anchorID,
		Valid:         entry.Status == directory.StatusActive,
	}
}
