package directory

import "context"

// Store is the persistence boundary for directory entries. Implementations
// return sentinel errors; the service translates them into domain errors.
//
// Uniqueness is enforced on entity identifier, name (case-insensitive), and
// JWKS URI when present.
type Store interface {
	// Create persists a new entry. Returns sentinel.ErrAlreadyUsed on any
	// uniqueness collision.
	Create(ctx context.Context, entry *Entry) error
	// FindByEntityID returns the entry for an identifier, or sentinel.ErrNotFound.
	FindByEntityID(ctx context.Context, entityID string) (*Entry, error)
	// List returns a snapshot of all entries. No ordering guarantee.
	List(ctx context.Context) ([]*Entry, error)
	// ListByType returns entries whose parsed metadata contains the type key.
	ListByType(ctx context.Context, entityType string) ([]*Entry, error)
	// Update replaces an existing entry, or returns sentinel.ErrNotFound.
	Update(ctx context.Context, entry *Entry) error
	// Delete removes an entry, or returns sentinel.ErrNotFound.
	Delete(ctx context.Context, entityID string) error
}
