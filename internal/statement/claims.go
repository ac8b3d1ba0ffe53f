// Package statement implements the signed-statement structure for entity
// statements and trust marks: three dot-joined base64url segments (header,
// claims, signature) with structural validation and expiry checks. Signature
// computation is delegated to the signer package.
package statement

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fedreg/internal/signer"
)

// Statement header typ values.
const (
	TypeEntityStatement = "entity-statement+jwt"
	TypeTrustMark       = "trust-mark+jwt"
)

// Entity type tags used as metadata keys and assertion identifiers.
const (
	EntityTypeFederationEntity = "federation_entity"
	EntityTypeOpenIDProvider   = "openid_provider"
	EntityTypeRelyingParty     = "openid_relying_party"
	EntityTypeTrustMarkIssuer  = "trust_mark_issuer"
)

// Metadata maps an entity-type tag to its type-specific metadata record.
// Presence of a tag is the basis for "does entity support capability X".
type Metadata map[string]map[string]any

// TrustMarkRef pairs a trust mark identifier with its signed statement as it
// appears inside an entity statement's trust_marks claim.
type TrustMarkRef struct {
	ID        string `json:"id"`
	TrustMark string `json:"trust_mark"`
}

// EntityStatementClaims is the claim set of an entity statement. iss == sub
// marks a self-statement (the entity's own configuration); distinct values
// mark a statement about a subordinate.
type EntityStatementClaims struct {
	Issuer         string         `json:"iss"`
	Subject        string         `json:"sub"`
	IssuedAt       int64          `json:"iat"`
	ExpiresAt      int64          `json:"exp,omitempty"`
	JWKS           *signer.JWKS   `json:"jwks,omitempty"`
	Metadata       Metadata       `json:"metadata,omitempty"`
	AuthorityHints []string       `json:"authority_hints,omitempty"`
	TrustMarks     []TrustMarkRef `json:"trust_marks,omitempty"`
}

// SelfStatement reports whether this is an entity's own configuration.
func (c EntityStatementClaims) SelfStatement() bool {
	return c.Issuer != "" && c.Issuer == c.Subject
}

// HasEntityType reports whether the metadata carries the given type tag.
func (c EntityStatementClaims) HasEntityType(entityType string) bool {
	_, ok := c.Metadata[entityType]
	return ok
}

// TrustMarkClaims is the claim set of a trust mark statement: an issuer's
// attestation that sub satisfies the compliance framework named by id.
type TrustMarkClaims struct {
	Issuer    string `json:"iss"`
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp,omitempty"`
	ID        string `json:"id"`
	Mark      string `json:"mark,omitempty"`
}

// jwt.Claims implementations so both claim sets can be handed straight to the
// golang-jwt builder.

func (c EntityStatementClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return numericDate(c.ExpiresAt), nil
}

func (c EntityStatementClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return numericDate(c.IssuedAt), nil
}

func (c EntityStatementClaims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c EntityStatementClaims) GetIssuer() (string, error)              { return c.Issuer, nil }
func (c EntityStatementClaims) GetSubject() (string, error)             { return c.Subject, nil }
func (c EntityStatementClaims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }

func (c TrustMarkClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return numericDate(c.ExpiresAt), nil
}

func (c TrustMarkClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return numericDate(c.IssuedAt), nil
}

func (c TrustMarkClaims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c TrustMarkClaims) GetIssuer() (string, error)              { return c.Issuer, nil }
func (c TrustMarkClaims) GetSubject() (string, error)             { return c.Subject, nil }
func (c TrustMarkClaims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }

func numericDate(unix int64) *jwt.NumericDate {
	if unix == 0 {
		return nil
	}
	return jwt.NewNumericDate(time.Unix(unix, 0))
}
