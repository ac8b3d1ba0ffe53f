package trust

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("fedreg/internal/trust")

// Resolver computes trust status from seeded repositories. Status records are
// computed on demand and never cached; two calls with no repository mutation
// in between yield equal results.
type Resolver struct {
	chains     ChainRepository
	assertions AssertionRepository
	anchors    *Anchors
	logger     *slog.Logger
}

type ResolverOption func(*Resolver)

func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewResolver(chains ChainRepository, assertions AssertionRepository, anchors *Anchors, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		chains:     chains,
		assertions: assertions,
		anchors:    anchors,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveChain returns the precomputed chain for an entity, if one exists.
// Absent entries stay absent: authority_hints are not walked.
func (r *Resolver) ResolveChain(ctx context.Context, entityID string) (*ChainSummary, bool) {
	ctx, span := tracer.Start(ctx, "trust.ResolveChain",
		trace.WithAttributes(attribute.String("entity_id", entityID)))
	defer span.End()

	chain, ok := r.chains.Lookup(ctx, entityID)
	span.SetAttributes(attribute.Bool("chain_found", ok))
	return chain, ok
}

// VerifyTrust reports whether an entity is trusted. Trust anchors are trusted
// by definition with a chain of themselves; everyone else needs a valid
// resolved chain.
func (r *Resolver) VerifyTrust(ctx context.Context, entityID string) Status {
	ctx, span := tracer.Start(ctx, "trust.VerifyTrust",
		trace.WithAttributes(attribute.String("entity_id", entityID)))
	defer span.End()

	status := Status{
		EntityID: entityID,
		Chains:   []ChainSummary{},
		Metadata: map[string]any{},
	}

	if r.anchors.Contains(entityID) {
		status.Trusted = true
		status.Chains = []ChainSummary{{
			EntityID:      entityID,
			Chain:         []string{entityID},
			TrustAnchorID: entityID,
			Valid:         true,
		}}
		span.SetAttributes(attribute.Bool("trusted", true))
		return status
	}

	chain, ok := r.chains.Lookup(ctx, entityID)
	if ok && chain.Valid {
		status.Trusted = true
		status.Chains = []ChainSummary{*chain}
	}
	span.SetAttributes(attribute.Bool("trusted", status.Trusted))
	return status
}

// CheckAuthorization reports whether an entity holds an assertion. Trust is a
// precondition: authorization never holds for an untrusted entity. The
// authority identifier is accepted for symmetry with the query surface but
// performs no narrowing beyond overall trust.
func (r *Resolver) CheckAuthorization(ctx context.Context, entityID, assertionID, authorityID string) bool {
	ctx, span := tracer.Start(ctx, "trust.CheckAuthorization",
		trace.WithAttributes(
			attribute.String("entity_id", entityID),
			attribute.String("assertion_id", assertionID),
			attribute.String("authority_id", authorityID),
		))
	defer span.End()

	if !r.VerifyTrust(ctx, entityID).Trusted {
		span.SetAttributes(attribute.Bool("authorized", false))
		return false
	}

	authorized := r.assertions.Holds(ctx, entityID, assertionID)
	span.SetAttributes(attribute.Bool("authorized", authorized))

	r.logger.DebugContext(ctx, "authorization check",
		"entity_id", entityID,
		"assertion_id", assertionID,
		"authorized", authorized,
	)
	return authorized
}
