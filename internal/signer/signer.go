// Package signer holds the signing boundary for federation statements. The
// shipped implementation is a deterministic mock digest; a production
// deployment substitutes a real asymmetric provider (ES256, RS256) behind the
// same interface without touching the statement codec.
package signer

//go:generate mockgen -source=signer.go -destination=mocks/signer_mock.go -package=mocks Provider

// Provider produces and checks signatures over a statement's signing input.
type Provider interface {
	// Algorithm is the value advertised in the statement header alg field.
	Algorithm() string
	// Sign computes a signature over signingInput using the key named by keyRef.
	Sign(signingInput []byte, keyRef string) ([]byte, error)
	// Verify reports whether sig is a valid signature over signingInput for
	// the given public key. A provider failure is an error, never a false.
	Verify(signingInput, sig []byte, key *JWK) (bool, error)
}

// JWK is a JSON Web Key-shaped record. Only the fields relevant to this
// registry are modeled; private components (D) stay empty on published keys.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid,omitempty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	D   string `json:"d,omitempty"`
}

// JWKS is a set of public signing keys.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// Public strips private components from a key for publication.
func (k JWK) Public() JWK {
	k.D = ""
	return k
}
