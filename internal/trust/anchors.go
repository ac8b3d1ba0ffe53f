package trust

// Anchors is the fixed set of trust anchors. Anchors are definitional: they
// are trusted because configuration says so, never resolved through the
// directory.
type Anchors struct {
	ids map[string]struct{}
}

func NewAnchors(ids ...string) *Anchors {
	a := &Anchors{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id != "" {
			a.ids[id] = struct{}{}
		}
	}
	return a
}

func (a *Anchors) Contains(id string) bool {
	if a == nil {
		return false
	}
	_, ok := a.ids[id]
	return ok
}

// List returns the anchor identifiers in unspecified order.
func (a *Anchors) List() []string {
	if a == nil {
		return nil
	}
	ids := make([]string, 0, len(a.ids))
	for id := range a.ids {
		ids = append(ids, id)
	}
	return ids
}
