package trust

import (
	"context"
	"sync"
)

// ChainRepository holds precomputed trust chains keyed by entity identifier.
type ChainRepository interface {
	Lookup(ctx context.Context, entityID string) (*ChainSummary, bool)
	ListAll(ctx context.Context) []*ChainSummary
}

// AssertionRepository records which entities hold which assertions
// (openid_provider, openid_relying_party, federation_entity, ...).
type AssertionRepository interface {
	Holds(ctx context.Context, entityID, assertionID string) bool
}

// InMemoryChains is a mutex-guarded ChainRepository seeded at construction.
type InMemoryChains struct {
	mu     sync.RWMutex
	chains map[string]*ChainSummary
}

func NewInMemoryChains(chains ...*ChainSummary) *InMemoryChains {
	r := &InMemoryChains{chains: make(map[string]*ChainSummary, len(chains))}
	for _, c := range chains {
		r.chains[c.EntityID] = c.Clone()
	}
	return r
}

func (r *InMemoryChains) Lookup(ctx context.Context, entityID string) (*ChainSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain, ok := r.chains[entityID]
	if !ok {
		return nil, false
	}
	return chain.Clone(), true
}

func (r *InMemoryChains) ListAll(ctx context.Context) []*ChainSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*ChainSummary, 0, len(r.chains))
	for _, chain := range r.chains {
		all = append(all, chain.Clone())
	}
	return all
}

// Put inserts or replaces a chain. Used by seeding and tests.
func (r *InMemoryChains) Put(chain *ChainSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[chain.EntityID] = chain.Clone()
}

// Remove drops a chain if present.
func (r *InMemoryChains) Remove(entityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chains, entityID)
}

// InMemoryAssertions is a mutex-guarded AssertionRepository mapping assertion
// identifiers to the set of entities that hold them.
type InMemoryAssertions struct {
	mu      sync.RWMutex
	holders map[string]map[string]struct{} // assertionID -> set of entityIDs
}

func NewInMemoryAssertions() *InMemoryAssertions {
	return &InMemoryAssertions{holders: make(map[string]map[string]struct{})}
}

func (r *InMemoryAssertions) Holds(ctx context.Context, entityID, assertionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.holders[assertionID]
	if !ok {
		return false
	}
	_, held := set[entityID]
	return held
}

// Grant records that entityID holds assertionID.
func (r *InMemoryAssertions) Grant(entityID, assertionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.holders[assertionID]
	if !ok {
		set = make(map[string]struct{})
		r.holders[assertionID] = set
	}
	set[entityID] = struct{}{}
}

// Revoke removes an assertion grant if present.
func (r *InMemoryAssertions) Revoke(entityID, assertionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.holders[assertionID]; ok {
		delete(set, entityID)
	}
}
