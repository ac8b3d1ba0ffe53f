// Package directory is the addressable store of known entities, keyed by
// entity identifier. Each entry holds the entity's current signed
// configuration and parsed claims; logical deletion happens via status.
package directory

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	dErrors "fedreg/pkg/domain-errors"
	"fedreg/internal/signer"
	"fedreg/internal/statement"
)

// Status is the lifecycle state of a directory entry. Transitions are
// unrestricted between the three values.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRevoked   Status = "revoked"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusRevoked:
		return true
	}
	return false
}

// Entry is a registered entity. UpdatedAt never precedes CreatedAt.
type Entry struct {
	ID        uuid.UUID
	EntityID  string
	Name      string
	JWKSURI   string
	Statement string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	Claims    *statement.EntityStatementClaims
}

// Clone returns a deep-enough copy so stores never hand out aliased state.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Claims != nil {
		claims := *e.Claims
		if e.Claims.Metadata != nil {
			claims.Metadata = make(statement.Metadata, len(e.Claims.Metadata))
			for k, v := range e.Claims.Metadata {
				record := make(map[string]any, len(v))
				for rk, rv := range v {
					record[rk] = rv
				}
				claims.Metadata[k] = record
			}
		}
		clone.Claims = &claims
	}
	return &clone
}

// Registration is the input for registering an entity. Either a JWKS document
// or a JWKS URI is required. The raw JWKS is kept as JSON so shape errors can
// be reported precisely instead of silently coerced.
type Registration struct {
	Name           string                   `json:"name"`
	JWKSURI        string                   `json:"jwks_uri,omitempty"`
	JWKS           json.RawMessage          `json:"jwks,omitempty"`
	Metadata       statement.Metadata       `json:"metadata,omitempty"`
	AuthorityHints []string                 `json:"authority_hints,omitempty"`
	TrustMarks     []statement.TrustMarkRef `json:"trust_marks,omitempty"`
}

// parseJWKS validates and unmarshals the registration's JWKS document.
func (r Registration) parseJWKS() (*signer.JWKS, error) {
	if len(r.JWKS) == 0 {
		return nil, nil
	}
	var probe struct {
		Keys json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(r.JWKS, &probe); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "jwks must be a JSON object")
	}
	if len(probe.Keys) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "jwks.keys is required")
	}
	var keys []signer.JWK
	if err := json.Unmarshal(probe.Keys, &keys); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "jwks.keys must be a list of keys")
	}
	return &signer.JWKS{Keys: keys}, nil
}
