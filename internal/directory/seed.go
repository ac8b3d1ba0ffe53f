package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fedreg/internal/signer"
	"fedreg/internal/statement"
	"fedreg/pkg/requestcontext"
)

// SeedDemoEntities populates the store with a small federation useful for
// local development: an OpenID provider, a relying party, and a trust mark
// issuer that marks the provider. Existing entries are left alone.
func SeedDemoEntities(ctx context.Context, store Store, codec *statement.Codec, ttl time.Duration) error {
	now := requestcontext.Now(ctx)

	tmiSeed := "seed:tmi.example.org"
	tmiKey, _ := signer.DeriveKeyPair(tmiSeed)
	mark := statement.TrustMarkClaims{
		Issuer:    "https://tmi.example.org",
		Subject:   "https://op.example.org",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		ID:        "https://tmi.example.org/marks/certified-op",
	}
	encodedMark, err := codec.Encode(mark, tmiKey.Kid, statement.TypeTrustMark)
	if err != nil {
		return fmt.Errorf("seed trust mark: %w", err)
	}

	entities := []struct {
		entityID string
		name     string
		seed     string
		metadata statement.Metadata
		marks    []statement.TrustMarkRef
	}{
		{
			entityID: "https://op.example.org",
			name:     "Demo OpenID Provider",
			seed:     "seed:op.example.org",
			metadata: statement.Metadata{
				statement.EntityTypeOpenIDProvider: {
					"issuer":                 "https://op.example.org",
					"authorization_endpoint": "https://op.example.org/authorize",
					"token_endpoint":         "https://op.example.org/token",
				},
			},
			marks: []statement.TrustMarkRef{{ID: mark.ID, TrustMark: encodedMark}},
		},
		{
			entityID: "https://rp.example.org",
			name:     "Demo Relying Party",
			seed:     "seed:rp.example.org",
			metadata: statement.Metadata{
				statement.EntityTypeRelyingParty: {
					"client_name":   "Demo Relying Party",
					"redirect_uris": []any{"https://rp.example.org/callback"},
				},
			},
		},
		{
			entityID: "https://tmi.example.org",
			name:     "Demo Trust Mark Issuer",
			seed:     tmiSeed,
			metadata: statement.Metadata{
				statement.EntityTypeTrustMarkIssuer: {
					"trust_mark_ids": []any{mark.ID},
				},
			},
		},
	}

	for _, e := range entities {
		if _, err := store.FindByEntityID(ctx, e.entityID); err == nil {
			continue
		}

		pub, _ := signer.DeriveKeyPair(e.seed)
		claims := &statement.EntityStatementClaims{
			Issuer:     e.entityID,
			Subject:    e.entityID,
			IssuedAt:   now.Unix(),
			ExpiresAt:  now.Add(ttl).Unix(),
			JWKS:       &signer.JWKS{Keys: []signer.JWK{pub}},
			Metadata:   e.metadata,
			TrustMarks: e.marks,
		}
		encoded, err := codec.Encode(*claims, pub.Kid, statement.TypeEntityStatement)
		if err != nil {
			return fmt.Errorf("seed statement for %s: %w", e.entityID, err)
		}

		entry := &Entry{
			ID:        uuid.New(),
			EntityID:  e.entityID,
			Name:      e.name,
			Statement: encoded,
			Status:    StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
			Claims:    claims,
		}
		if err := store.Create(ctx, entry); err != nil {
			return fmt.Errorf("seed entity %s: %w", e.entityID, err)
		}
	}
	return nil
}
