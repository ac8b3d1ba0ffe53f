// Package registry is the query façade over the trust resolver, directory,
// and statement issuer. It answers recognition, authorization, and
// entity-info queries and emits audit events for each decision.
package registry

import (
	"encoding/json"

	"fedreg/internal/trust"
)

// RecognitionRequest asks whether an entity is recognized by an authority,
// optionally for a specific assertion.
type RecognitionRequest struct {
	EntityID    string          `json:"entity_id"`
	AuthorityID string          `json:"authority_id"`
	AssertionID string          `json:"assertion_id,omitempty"`
	Context     json.RawMessage `json:"context,omitempty"`
}

// RecognitionResult is the recognition answer with a human-readable message
// embedding the queried identifiers.
type RecognitionResult struct {
	Recognized bool   `json:"recognized"`
	Message    string `json:"message"`
}

// AuthorizationRequest asks whether an entity holds an assertion according to
// an authority.
type AuthorizationRequest struct {
	EntityID    string          `json:"entity_id"`
	AuthorityID string          `json:"authority_id"`
	AssertionID string          `json:"assertion_id"`
	Context     json.RawMessage `json:"context,omitempty"`
}

// AuthorizationResult carries the verification outcome. Time echoes the
// request context's "time" field unchanged when supplied.
type AuthorizationResult struct {
	AssertionVerified bool   `json:"assertion_verified"`
	Message           string `json:"message"`
	Time              string `json:"time,omitempty"`
}

// EntityInfo is the composite view of a registered, trusted entity. When
// Found is false only Message is populated.
type EntityInfo struct {
	Found           bool                      `json:"found"`
	Message         string                    `json:"message,omitempty"`
	EntityID        string                    `json:"entity_id,omitempty"`
	IsTrusted       bool                      `json:"is_trusted,omitempty"`
	TrustChains     []trust.ChainSummary      `json:"trust_chains,omitempty"`
	Metadata        map[string]map[string]any `json:"metadata,omitempty"`
	TrustMarks      []TrustMarkView           `json:"trust_marks,omitempty"`
	CreatedAt       int64                     `json:"created_at,omitempty"`
	ExpiresAt       int64                     `json:"expires_at,omitempty"`
	EntityStatement string                    `json:"entity_statement,omitempty"`
}

// TrustMarkView is the serialized form of a trust mark reference.
type TrustMarkView struct {
	ID        string `json:"id"`
	TrustMark string `json:"trust_mark,omitempty"`
}
