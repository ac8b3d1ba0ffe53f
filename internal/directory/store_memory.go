package directory

import (
	"context"
	"strings"
	"sync"

	"fedreg/pkg/platform/sentinel"
)

// InMemory implements Store with a mutex-guarded map. This is the default
// backend; the shared state is safe for concurrent readers and writers.
type InMemory struct {
	mu        sync.RWMutex
	byEntity  map[string]*Entry
	byName    map[string]string // lower(name) -> entityID
	byJWKSURI map[string]string // jwks URI -> entityID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byEntity:  make(map[string]*Entry),
		byName:    make(map[string]string),
		byJWKSURI: make(map[string]string),
	}
}

func (s *InMemory) Create(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEntity[entry.EntityID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	nameKey := strings.ToLower(entry.Name)
	if nameKey != "" {
		if _, exists := s.byName[nameKey]; exists {
			return sentinel.ErrAlreadyUsed
		}
	}
	if entry.JWKSURI != "" {
		if _, exists := s.byJWKSURI[entry.JWKSURI]; exists {
			return sentinel.ErrAlreadyUsed
		}
	}

	s.byEntity[entry.EntityID] = entry.Clone()
	if nameKey != "" {
		s.byName[nameKey] = entry.EntityID
	}
	if entry.JWKSURI != "" {
		s.byJWKSURI[entry.JWKSURI] = entry.EntityID
	}
	return nil
}

func (s *InMemory) FindByEntityID(ctx context.Context, entityID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byEntity[entityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return entry.Clone(), nil
}

func (s *InMemory) List(ctx context.Context) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*Entry, 0, len(s.byEntity))
	for _, entry := range s.byEntity {
		entries = append(entries, entry.Clone())
	}
	return entries, nil
}

func (s *InMemory) ListByType(ctx context.Context, entityType string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*Entry
	for _, entry := range s.byEntity {
		if entry.Claims != nil && entry.Claims.HasEntityType(entityType) {
			entries = append(entries, entry.Clone())
		}
	}
	return entries, nil
}

func (s *InMemory) Update(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEntity[entry.EntityID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byEntity[entry.EntityID] = entry.Clone()
	return nil
}

func (s *InMemory) Delete(ctx context.Context, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byEntity[entityID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byEntity, entityID)
	delete(s.byName, strings.ToLower(entry.Name))
	if entry.JWKSURI != "" {
		delete(s.byJWKSURI, entry.JWKSURI)
	}
	return nil
}
