package statement

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fedreg/internal/signer"
	"fedreg/pkg/platform/sentinel"
	"fedreg/pkg/requestcontext"
)

// Header is the protected header of a signed statement.
type Header struct {
	Typ string `json:"typ"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// Decoded is the result of splitting a statement string without verifying it.
type Decoded struct {
	Header       Header
	Claims       json.RawMessage
	Signature    []byte
	SigningInput string
}

// Codec builds and parses signed statements. Signatures come from the
// injected provider; with the mock provider encoding is fully deterministic.
type Codec struct {
	provider signer.Provider
	method   jwt.SigningMethod
}

func NewCodec(provider signer.Provider) *Codec {
	return &Codec{
		provider: provider,
		method:   providerMethod{provider: provider},
	}
}

// Encode serializes header and claims, signs base64url(header) + "." +
// base64url(claims) via the provider, and returns the three-segment string.
func (c *Codec) Encode(claims jwt.Claims, keyRef, typ string) (string, error) {
	if keyRef == "" {
		return "", fmt.Errorf("encode statement: key reference is required")
	}
	switch typ {
	case TypeEntityStatement, TypeTrustMark:
	default:
		return "", fmt.Errorf("encode statement: unsupported typ %q", typ)
	}

	token := jwt.NewWithClaims(c.method, claims)
	token.Header["typ"] = typ
	token.Header["kid"] = keyRef

	signed, err := token.SignedString(keyRef)
	if err != nil {
		return "", fmt.Errorf("encode statement: %w", err)
	}
	return signed, nil
}

// Decode splits a statement string into header, raw claims, and signature.
// Malformed input (wrong segment count, invalid base64url or JSON) reports
// sentinel.ErrMalformed.
func (c *Codec) Decode(s string) (*Decoded, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("statement must have three segments, got %d: %w", len(parts), sentinel.ErrMalformed)
	}

	headerRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decode header segment: %w", sentinel.ErrMalformed)
	}
	var header Header
	if err := json.Unmarshal(headerRaw, &header); err != nil {
		return nil, fmt.Errorf("parse header JSON: %w", sentinel.ErrMalformed)
	}

	claimsRaw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode claims segment: %w", sentinel.ErrMalformed)
	}
	if !json.Valid(claimsRaw) {
		return nil, fmt.Errorf("parse claims JSON: %w", sentinel.ErrMalformed)
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("decode signature segment: %w", sentinel.ErrMalformed)
	}

	return &Decoded{
		Header:       header,
		Claims:       claimsRaw,
		Signature:    sig,
		SigningInput: parts[0] + "." + parts[1],
	}, nil
}

// DecodeEntityStatement decodes and unmarshals an entity statement's claims.
func (c *Codec) DecodeEntityStatement(s string) (*EntityStatementClaims, error) {
	dec, err := c.Decode(s)
	if err != nil {
		return nil, err
	}
	var claims EntityStatementClaims
	if err := json.Unmarshal(dec.Claims, &claims); err != nil {
		return nil, fmt.Errorf("parse entity statement claims: %w", sentinel.ErrMalformed)
	}
	return &claims, nil
}

// DecodeTrustMark decodes and unmarshals a trust mark's claims.
func (c *Codec) DecodeTrustMark(s string) (*TrustMarkClaims, error) {
	dec, err := c.Decode(s)
	if err != nil {
		return nil, err
	}
	var claims TrustMarkClaims
	if err := json.Unmarshal(dec.Claims, &claims); err != nil {
		return nil, fmt.Errorf("parse trust mark claims: %w", sentinel.ErrMalformed)
	}
	return &claims, nil
}

// StructurallyValid reports whether s is a well-formed, unexpired statement of
// the expected typ. It never returns an error: malformed or expired input
// yields false. This check is purely structural; cryptographic verification
// is the provider's separate concern.
func (c *Codec) StructurallyValid(ctx context.Context, s, expectedTyp string) bool {
	dec, err := c.Decode(s)
	if err != nil {
		return false
	}
	if dec.Header.Typ != expectedTyp || dec.Header.Alg == "" || dec.Header.Kid == "" {
		return false
	}

	now := requestcontext.Now(ctx)
	switch expectedTyp {
	case TypeEntityStatement:
		var claims EntityStatementClaims
		if err := json.Unmarshal(dec.Claims, &claims); err != nil {
			return false
		}
		return entityStatementValid(&claims, now)
	case TypeTrustMark:
		var claims TrustMarkClaims
		if err := json.Unmarshal(dec.Claims, &claims); err != nil {
			return false
		}
		return trustMarkValid(&claims, now)
	}
	return false
}

// Verify checks the statement's signature against a public key via the
// provider. A provider failure is surfaced, never folded into false.
func (c *Codec) Verify(s string, key *signer.JWK) (bool, error) {
	dec, err := c.Decode(s)
	if err != nil {
		return false, err
	}
	return c.provider.Verify([]byte(dec.SigningInput), dec.Signature, key)
}

func entityStatementValid(claims *EntityStatementClaims, now time.Time) bool {
	if claims.Issuer == "" || claims.Subject == "" || claims.IssuedAt == 0 {
		return false
	}
	// exp is always required on entity statements.
	if claims.ExpiresAt == 0 || claims.ExpiresAt <= claims.IssuedAt {
		return false
	}
	// A self-statement must publish the subject's keys.
	if claims.SelfStatement() && (claims.JWKS == nil || len(claims.JWKS.Keys) == 0) {
		return false
	}
	return now.Unix() < claims.ExpiresAt
}

func trustMarkValid(claims *TrustMarkClaims, now time.Time) bool {
	if claims.Issuer == "" || claims.Subject == "" || claims.IssuedAt == 0 || claims.ID == "" {
		return false
	}
	// Absent exp means a non-expiring mark.
	if claims.ExpiresAt != 0 && now.Unix() >= claims.ExpiresAt {
		return false
	}
	return true
}

// providerMethod adapts a signer.Provider to the golang-jwt signing method
// interface. The signing key handed to the jwt library is the key reference
// string; verification expects a *signer.JWK.
type providerMethod struct {
	provider signer.Provider
}

func (m providerMethod) Alg() string { return m.provider.Algorithm() }

func (m providerMethod) Sign(signingString string, key any) ([]byte, error) {
	keyRef, ok := key.(string)
	if !ok {
		return nil, jwt.ErrInvalidKeyType
	}
	return m.provider.Sign([]byte(signingString), keyRef)
}

func (m providerMethod) Verify(signingString string, sig []byte, key any) error {
	jwk, ok := key.(*signer.JWK)
	if !ok {
		return jwt.ErrInvalidKeyType
	}
	valid, err := m.provider.Verify([]byte(signingString), sig, jwk)
	if err != nil {
		return err
	}
	if !valid {
		return jwt.ErrSignatureInvalid
	}
	return nil
}
