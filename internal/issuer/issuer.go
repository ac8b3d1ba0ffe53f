// Package issuer produces signed entity statements on behalf of the registry:
// the registry's own federation entity configuration, and subordinate
// statements about registered entities.
package issuer

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	dErrors "fedreg/pkg/domain-errors"
	"fedreg/internal/directory"
	"fedreg/internal/signer"
	"fedreg/internal/statement"
	"fedreg/pkg/requestcontext"
)

// Issuer signs statements with the registry's own key. Subordinate statements
// are cached for a fraction of their lifetime so the fetch endpoint does not
// re-sign on every request; self statements are cheap and built per call.
type Issuer struct {
	codec       *statement.Codec
	directory   *directory.Service
	baseID      string
	keyRef      string
	registryJWK signer.JWK
	ttl         time.Duration
	logger      *slog.Logger
	cache       *gocache.Cache
}

type Option func(*Issuer)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Issuer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithStatementTTL sets the lifetime stamped on issued statements.
func WithStatementTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// New builds an Issuer for the registry identified by baseID. The signing
// key pair is derived from keySeed; only the public half ever leaves this
// package, embedded in every self statement and referenced by kid.
func New(codec *statement.Codec, dir *directory.Service, baseID, keySeed string, opts ...Option) *Issuer {
	pub, _ := signer.DeriveKeyPair(keySeed)
	i := &Issuer{
		codec:       codec,
		directory:   dir,
		baseID:      baseID,
		keyRef:      pub.Kid,
		registryJWK: pub,
		ttl:         24 * time.Hour,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	// Cache entries expire well before the statements they hold do.
	cacheTTL := i.ttl / 4
	if cacheTTL > time.Hour {
		cacheTTL = time.Hour
	}
	i.cache = gocache.New(cacheTTL, 2*cacheTTL)
	return i
}

// RegistryJWK returns the registry's public signing key.
func (i *Issuer) RegistryJWK() signer.JWK {
	return i.registryJWK
}

// SelfStatement issues the registry's federation entity configuration:
// iss == sub == base identifier, registry keys, federation_entity metadata.
func (i *Issuer) SelfStatement(ctx context.Context) (string, error) {
	now := requestcontext.Now(ctx)
	claims := statement.EntityStatementClaims{
		Issuer:    i.baseID,
		Subject:   i.baseID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(i.ttl).Unix(),
		JWKS:      &signer.JWKS{Keys: []signer.JWK{i.registryJWK}},
		Metadata: statement.Metadata{
			statement.EntityTypeFederationEntity: {
				"federation_fetch_endpoint": i.baseID + "/federation/fetch",
				"federation_list_endpoint":  i.baseID + "/federation/list",
			},
		},
	}

	encoded, err := i.codec.Encode(claims, i.keyRef, statement.TypeEntityStatement)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign entity configuration")
	}
	return encoded, nil
}

// Subordinate issues a statement about a registered entity: iss is the
// registry, sub is the entity, claims carry the entity's registered keys and
// metadata. Unknown subjects are not-found errors.
func (i *Issuer) Subordinate(ctx context.Context, subject string) (string, error) {
	if cached, ok := i.cache.Get(subject); ok {
		return cached.(string), nil
	}

	entry, err := i.directory.Get(ctx, subject)
	if err != nil {
		return "", err
	}

	now := requestcontext.Now(ctx)
	claims := statement.EntityStatementClaims{
		Issuer:    i.baseID,
		Subject:   entry.EntityID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(i.ttl).Unix(),
	}
	if entry.Claims != nil {
		claims.JWKS = entry.Claims.JWKS
		claims.Metadata = entry.Claims.Metadata
		claims.TrustMarks = entry.Claims.TrustMarks
	}

	encoded, err := i.codec.Encode(claims, i.keyRef, statement.TypeEntityStatement)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign subordinate statement")
	}

	i.cache.SetDefault(subject, encoded)
	i.logger.DebugContext(ctx, "subordinate statement issued", "subject", subject)
	return encoded, nil
}

// Invalidate drops any cached statement for a subject. Called after directory
// mutations so re-fetches see fresh claims.
func (i *Issuer) Invalidate(subject string) {
	i.cache.Delete(subject)
}
