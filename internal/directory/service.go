package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "fedreg/pkg/domain-errors"
	"fedreg/internal/statement"
	"fedreg/pkg/platform/sentinel"
	"fedreg/pkg/requestcontext"
)

// Service orchestrates the entity directory: registration validation,
// metadata merges, and status changes. Stores stay dumb; all error
// translation happens here.
type Service struct {
	store        Store
	logger       *slog.Logger
	statementTTL time.Duration
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStatementTTL bounds the lifetime recorded on claims built at
// registration time.
func WithStatementTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.statementTTL = ttl
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		logger:       slog.Default(),
		statementTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the entry for an entity identifier.
func (s *Service) Get(ctx context.Context, entityID string) (*Entry, error) {
	entry, err := s.store.FindByEntityID(ctx, entityID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return entry, nil
}

// ListAll returns a snapshot of every registered entity.
func (s *Service) ListAll(ctx context.Context) ([]*Entry, error) {
	return s.store.List(ctx)
}

// ListByType returns entities whose metadata carries the given type tag.
func (s *Service) ListByType(ctx context.Context, entityType string) ([]*Entry, error) {
	return s.store.ListByType(ctx, entityType)
}

// Register creates an active entry for entityID. Requires a JWKS document or
// a JWKS URI; collisions on identifier, name, or JWKS URI are conflicts.
func (s *Service) Register(ctx context.Context, entityID string, reg Registration) (*Entry, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity_id is required")
	}
	if reg.JWKSURI == "" && len(reg.JWKS) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "either jwks or jwks_uri is required")
	}
	jwks, err := reg.parseJWKS()
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	entry := &Entry{
		ID:        uuid.New(),
		EntityID:  entityID,
		Name:      strings.TrimSpace(reg.Name),
		JWKSURI:   reg.JWKSURI,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		Claims: &statement.EntityStatementClaims{
			Issuer:         entityID,
			Subject:        entityID,
			IssuedAt:       now.Unix(),
			ExpiresAt:      now.Add(s.statementTTL).Unix(),
			JWKS:           jwks,
			Metadata:       reg.Metadata,
			AuthorityHints: reg.AuthorityHints,
			TrustMarks:     reg.TrustMarks,
		},
	}

	if err := s.store.Create(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "entity, name, or jwks_uri already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register entity")
	}

	s.logger.InfoContext(ctx, "entity registered",
		"entity_id", entityID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return entry, nil
}

// UpdateMetadata shallow-merges partial into the entry's metadata and bumps
// UpdatedAt. Type records present in partial replace whole records.
func (s *Service) UpdateMetadata(ctx context.Context, entityID string, partial statement.Metadata) (*Entry, error) {
	entry, err := s.store.FindByEntityID(ctx, entityID)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	if entry.Claims == nil {
		entry.Claims = &statement.EntityStatementClaims{Issuer: entityID, Subject: entityID}
	}
	if entry.Claims.Metadata == nil {
		entry.Claims.Metadata = statement.Metadata{}
	}
	for entityType, record := range partial {
		entry.Claims.Metadata[entityType] = record
	}
	entry.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, entry); err != nil {
		return nil, translateStoreErr(err)
	}
	return entry, nil
}

// UpdateStatus sets the lifecycle status and bumps UpdatedAt.
func (s *Service) UpdateStatus(ctx context.Context, entityID string, status Status) (*Entry, error) {
	if !status.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "status must be active, suspended, or revoked")
	}
	entry, err := s.store.FindByEntityID(ctx, entityID)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	entry.Status = status
	entry.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, entry); err != nil {
		return nil, translateStoreErr(err)
	}
	return entry, nil
}

// Remove physically deletes an entry. Prefer UpdateStatus for logical
// deletion; this exists for operator cleanup.
func (s *Service) Remove(ctx context.Context, entityID string) error {
	if err := s.store.Delete(ctx, entityID); err != nil {
		return translateStoreErr(err)
	}
	s.logger.InfoContext(ctx, "entity removed",
		"entity_id", entityID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

func translateStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "entity not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "entity already registered")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "directory store failure")
	}
}
