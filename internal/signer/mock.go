package signer

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// AlgMock is the header alg value advertised by the mock provider. It is
// deliberately not a registered JOSE algorithm so nothing downstream mistakes
// these signatures for real cryptography.
const AlgMock = "MOCK256"

// MockSigner derives a one-way digest of the signing input concatenated with
// the key identifier and treats that digest as the signature. Deterministic:
// same input and key ref always yield the same signature.
type MockSigner struct{}

func NewMockSigner() *MockSigner {
	return &MockSigner{}
}

func (s *MockSigner) Algorithm() string { return AlgMock }

func (s *MockSigner) Sign(signingInput []byte, keyRef string) ([]byte, error) {
	if keyRef == "" {
		return nil, fmt.Errorf("sign: key reference is required")
	}
	return digest(signingInput, keyRef), nil
}

func (s *MockSigner) Verify(signingInput, sig []byte, key *JWK) (bool, error) {
	if key == nil || key.Kid == "" {
		return false, fmt.Errorf("verify: public key with kid is required")
	}
	expected := digest(signingInput, key.Kid)
	return subtle.ConstantTimeCompare(sig, expected) == 1, nil
}

func digest(signingInput []byte, keyRef string) []byte {
	h := sha3.New256()
	h.Write(signingInput)
	h.Write([]byte(keyRef))
	return h.Sum(nil)
}

// DeriveKeyPair produces a deterministic mock key pair from a seed string for
// fixtures and local development. Replace with real key generation in
// production; the coordinates here are digests, not curve points.
func DeriveKeyPair(seed string) (JWK, JWK) {
	kidSum := sha3.Sum256([]byte(seed + ":kid"))
	xSum := sha3.Sum256([]byte(seed + ":x"))
	ySum := sha3.Sum256([]byte(seed + ":y"))
	dSum := sha3.Sum256([]byte(seed + ":d"))

	pub := JWK{
		Kty: "EC",
		Crv: "P-256",
		Kid: hex.EncodeToString(kidSum[:8]),
		Use: "sig",
		Alg: AlgMock,
		X:   base64.RawURLEncoding.EncodeToString(xSum[:]),
		Y:   base64.RawURLEncoding.EncodeToString(ySum[:]),
	}
	priv := pub
	priv.D = base64.RawURLEncoding.EncodeToString(dSum[:])
	return pub, priv
}
