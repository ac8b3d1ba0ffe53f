// Package trust answers the two questions at the heart of the registry: is an
// entity trusted, and does it hold a given assertion. Chains are single-hop
// lookups against seeded repositories; the resolver never walks
// authority_hints to synthesize a chain.
package trust

// ChainSummary is a precomputed trust chain for an entity: the ordered list
// of identifiers from the entity to its anchor, plus a validity flag.
type ChainSummary struct {
	EntityID      string   `json:"entity_id"`
	Chain         []string `json:"chain"`
	TrustAnchorID string   `json:"trust_anchor_id"`
	Valid         bool     `json:"valid"`
}

// Clone returns an independent copy so callers can hold summaries across
// repository mutations.
func (c *ChainSummary) Clone() *ChainSummary {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Chain = append([]string(nil), c.Chain...)
	return &clone
}

// Status is the outcome of a trust verification. Chains is empty exactly when
// Trusted is false.
type Status struct {
	EntityID string         `json:"entity_id"`
	Trusted  bool           `json:"trusted"`
	Chains   []ChainSummary `json:"chains"`
	Metadata map[string]any `json:"metadata"`
}
