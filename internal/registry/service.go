package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	dErrors "fedreg/pkg/domain-errors"
	"fedreg/internal/audit"
	"fedreg/internal/directory"
	"fedreg/internal/issuer"
	"fedreg/internal/registry/metrics"
	"fedreg/internal/statement"
	"fedreg/internal/trust"
)

// Service answers recognition, authorization, and entity-info queries, and
// fronts the directory's admin operations so every mutation invalidates
// cached statements and lands in the audit trail.
type Service struct {
	directory *directory.Service
	resolver  *trust.Resolver
	issuer    *issuer.Issuer
	codec     *statement.Codec
	engine    QueryEngine
	baseID    string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     *audit.Publisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables prometheus metrics. Without it all observations are
// no-ops, which keeps tests free of registration conflicts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAudit enables the audit trail for query decisions and admin mutations.
func WithAudit(p *audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func NewService(dir *directory.Service, resolver *trust.Resolver, iss *issuer.Issuer, codec *statement.Codec, engine QueryEngine, baseID string, opts ...Option) *Service {
	s := &Service{
		directory: dir,
		resolver:  resolver,
		issuer:    iss,
		codec:     codec,
		engine:    engine,
		baseID:    baseID,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryRecognition reports whether an entity is recognized by an authority.
func (s *Service) QueryRecognition(ctx context.Context, req RecognitionRequest) (*RecognitionResult, error) {
	if req.EntityID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity_id is required")
	}
	if req.AuthorityID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "authority_id is required")
	}

	recognized := s.engine.Recognized(ctx, req)

	result := &RecognitionResult{Recognized: recognized}
	switch {
	case recognized && req.AssertionID != "":
		result.Message = fmt.Sprintf("Entity %s is recognized by authority %s for assertion %s",
			req.EntityID, req.AuthorityID, req.AssertionID)
	case recognized:
		result.Message = fmt.Sprintf("Entity %s is recognized by authority %s",
			req.EntityID, req.AuthorityID)
	default:
		result.Message = fmt.Sprintf("Entity %s is not recognized by authority %s",
			req.EntityID, req.AuthorityID)
	}

	s.metrics.IncrementRecognition(recognized)
	s.audit.Emit(ctx, audit.Event{
		Type:        audit.TypeRecognitionQuery,
		EntityID:    req.EntityID,
		AuthorityID: req.AuthorityID,
		AssertionID: req.AssertionID,
		Decision:    recognitionDecision(recognized),
	})
	return result, nil
}

// QueryAuthorization reports whether an entity holds an assertion according
// to an authority.
func (s *Service) QueryAuthorization(ctx context.Context, req AuthorizationRequest) (*AuthorizationResult, error) {
	if req.EntityID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity_id is required")
	}
	if req.AssertionID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "assertion_id is required")
	}

	// CheckAuthorization already gates on trust, so a verified assertion
	// implies a trusted entity.
	verified := s.resolver.CheckAuthorization(ctx, req.EntityID, req.AssertionID, req.AuthorityID)

	result := &AuthorizationResult{
		AssertionVerified: verified,
		Time:              contextTime(req.Context),
	}
	if verified {
		result.Message = fmt.Sprintf("Entity %s holds assertion %s according to authority %s",
			req.EntityID, req.AssertionID, req.AuthorityID)
	} else {
		result.Message = fmt.Sprintf("Entity %s does not hold assertion %s according to authority %s",
			req.EntityID, req.AssertionID, req.AuthorityID)
	}

	s.metrics.IncrementAuthorization(verified)
	s.audit.Emit(ctx, audit.Event{
		Type:        audit.TypeAuthorizationQuery,
		EntityID:    req.EntityID,
		AuthorityID: req.AuthorityID,
		AssertionID: req.AssertionID,
		Decision:    authorizationDecision(verified),
	})
	return result, nil
}

// GetEntityInfo returns the composite view of a trusted, registered entity:
// trust status, registered metadata, and a freshly issued entity statement.
// Untrusted or absent entities yield Found=false, never an error.
func (s *Service) GetEntityInfo(ctx context.Context, entityID string) (*EntityInfo, error) {
	if entityID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity_id is required")
	}

	status := s.resolver.VerifyTrust(ctx, entityID)
	entry, err := s.directory.Get(ctx, entityID)
	if err != nil || !status.Trusted {
		if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
		return &EntityInfo{
			Found:   false,
			Message: fmt.Sprintf("Entity %s is not recognized by this registry", entityID),
		}, nil
	}

	start := time.Now()
	encoded, err := s.issuer.Subordinate(ctx, entityID)
	if err != nil {
		// A failing signer is an internal fault, never an untrusted answer.
		return nil, err
	}
	s.metrics.ObserveIssuance(start)

	claims, err := s.codec.DecodeEntityStatement(encoded)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "issued statement failed to decode")
	}

	info := &EntityInfo{
		Found:           true,
		EntityID:        entityID,
		IsTrusted:       true,
		TrustChains:     status.Chains,
		CreatedAt:       claims.IssuedAt,
		ExpiresAt:       claims.ExpiresAt,
		EntityStatement: encoded,
	}
	if entry.Claims != nil {
		info.Metadata = entry.Claims.Metadata
		for _, mark := range entry.Claims.TrustMarks {
			info.TrustMarks = append(info.TrustMarks, TrustMarkView{ID: mark.ID, TrustMark: mark.TrustMark})
		}
	}

	s.audit.Emit(ctx, audit.Event{
		Type:     audit.TypeStatementIssued,
		EntityID: entityID,
	})
	return info, nil
}

// SelfStatement issues the registry's own federation entity configuration.
func (s *Service) SelfStatement(ctx context.Context) (string, error) {
	start := time.Now()
	encoded, err := s.issuer.SelfStatement(ctx)
	if err != nil {
		return "", err
	}
	s.metrics.ObserveIssuance(start)
	return encoded, nil
}

// FetchStatement issues a subordinate statement. The iss parameter must name
// this registry when supplied.
func (s *Service) FetchStatement(ctx context.Context, iss, sub string) (string, error) {
	if sub == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "sub is required")
	}
	if iss != "" && iss != s.baseID {
		return "", dErrors.New(dErrors.CodeNotFound, "unknown issuer")
	}

	start := time.Now()
	encoded, err := s.issuer.Subordinate(ctx, sub)
	if err != nil {
		return "", err
	}
	s.metrics.ObserveIssuance(start)

	s.audit.Emit(ctx, audit.Event{
		Type:     audit.TypeStatementIssued,
		EntityID: sub,
	})
	return encoded, nil
}

// ListSubordinates returns the identifiers of all registered entities.
func (s *Service) ListSubordinates(ctx context.Context) ([]string, error) {
	entries, err := s.directory.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.EntityID)
	}
	return ids, nil
}

// Register creates a directory entry and audits the mutation.
func (s *Service) Register(ctx context.Context, entityID string, reg directory.Registration) (*directory.Entry, error) {
	entry, err := s.directory.Register(ctx, entityID, reg)
	if err != nil {
		return nil, err
	}
	s.audit.Emit(ctx, audit.Event{Type: audit.TypeEntityRegistered, EntityID: entityID})
	return entry, nil
}

// UpdateMetadata merges metadata, drops cached statements, audits.
func (s *Service) UpdateMetadata(ctx context.Context, entityID string, partial statement.Metadata) (*directory.Entry, error) {
	entry, err := s.directory.UpdateMetadata(ctx, entityID, partial)
	if err != nil {
		return nil, err
	}
	s.issuer.Invalidate(entityID)
	s.audit.Emit(ctx, audit.Event{Type: audit.TypeEntityUpdated, EntityID: entityID})
	return entry, nil
}

// UpdateStatus changes lifecycle status, drops cached statements, audits.
func (s *Service) UpdateStatus(ctx context.Context, entityID string, status directory.Status) (*directory.Entry, error) {
	entry, err := s.directory.UpdateStatus(ctx, entityID, status)
	if err != nil {
		return nil, err
	}
	s.issuer.Invalidate(entityID)
	s.audit.Emit(ctx, audit.Event{Type: audit.TypeEntityUpdated, EntityID: entityID})
	return entry, nil
}

// Remove deletes an entity, drops cached statements, audits.
func (s *Service) Remove(ctx context.Context, entityID string) error {
	if err := s.directory.Remove(ctx, entityID); err != nil {
		return err
	}
	s.issuer.Invalidate(entityID)
	s.audit.Emit(ctx, audit.Event{Type: audit.TypeEntityRemoved, EntityID: entityID})
	return nil
}

// AuditTrail returns recent audit events for operators.
func (s *Service) AuditTrail(ctx context.Context, entityID string, limit int) ([]audit.Event, error) {
	if s.audit == nil {
		return nil, nil
	}
	if entityID != "" {
		return s.audit.ListByEntity(ctx, entityID)
	}
	return s.audit.ListRecent(ctx, limit)
}

// contextTime echoes context.time verbatim when present. The format is not
// validated.
func contextTime(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	if t, ok := m["time"].(string); ok {
		return t
	}
	return ""
}

func recognitionDecision(recognized bool) string {
	if recognized {
		return audit.DecisionRecognized
	}
	return audit.DecisionNotRecognized
}

func authorizationDecision(verified bool) string {
	if verified {
		return audit.DecisionAuthorized
	}
	return audit.DecisionDenied
}
