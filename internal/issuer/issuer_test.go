package issuer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "fedreg/pkg/domain-errors"
	"fedreg/internal/directory"
	"fedreg/internal/signer"
	"fedreg/internal/statement"
	"fedreg/pkg/requestcontext"
)

const (
	baseID  = "https://registry.example.org"
	keySeed = "test-registry-seed"
)

type IssuerSuite struct {
	suite.Suite
	codec  *statement.Codec
	dir    *directory.Service
	issuer *Issuer
	now    time.Time
	ctx    context.Context
}

func (s *IssuerSuite) SetupTest() {
	s.codec = statement.NewCodec(signer.NewMockSigner())
	s.dir = directory.NewService(directory.NewInMemory())
	s.issuer = New(s.codec, s.dir, baseID, keySeed, WithStatementTTL(time.Hour))
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestIssuerSuite(t *testing.T) {
	suite.Run(t, new(IssuerSuite))
}

func (s *IssuerSuite) register(entityID string) {
	_, err := s.dir.Register(s.ctx, entityID, directory.Registration{
		JWKS: json.RawMessage(`{"keys":[{"kty":"EC","kid":"sub-key","crv":"P-256","x":"eA","y":"eQ"}]}`),
		Metadata: statement.Metadata{
			statement.EntityTypeOpenIDProvider: {"issuer": entityID},
		},
	})
	s.Require().NoError(err)
}

// TestSelfStatement verifies the registry's own entity configuration.
func (s *IssuerSuite) TestSelfStatement() {
	encoded, err := s.issuer.SelfStatement(s.ctx)
	s.Require().NoError(err)

	claims, err := s.codec.DecodeEntityStatement(encoded)
	s.Require().NoError(err)
	s.Equal(baseID, claims.Issuer)
	s.Equal(baseID, claims.Subject)
	s.True(claims.SelfStatement())
	s.Equal(s.now.Unix(), claims.IssuedAt)
	s.Equal(s.now.Add(time.Hour).Unix(), claims.ExpiresAt)
	s.Require().NotNil(claims.JWKS)
	s.Equal(s.issuer.RegistryJWK().Kid, claims.JWKS.Keys[0].Kid)
	s.Contains(claims.Metadata, statement.EntityTypeFederationEntity)

	s.True(s.codec.StructurallyValid(s.ctx, encoded, statement.TypeEntityStatement))
}

// TestSubordinate verifies statements about registered entities.
func (s *IssuerSuite) TestSubordinate() {
	s.Run("issues a statement with the entity's registered claims", func() {
		s.register("https://op.example.org")

		encoded, err := s.issuer.Subordinate(s.ctx, "https://op.example.org")
		s.Require().NoError(err)

		claims, err := s.codec.DecodeEntityStatement(encoded)
		s.Require().NoError(err)
		s.Equal(baseID, claims.Issuer)
		s.Equal("https://op.example.org", claims.Subject)
		s.False(claims.SelfStatement())
		s.Require().NotNil(claims.JWKS)
		s.Equal("sub-key", claims.JWKS.Keys[0].Kid)
		s.Contains(claims.Metadata, statement.EntityTypeOpenIDProvider)
	})

	s.Run("unknown subject is not found", func() {
		_, err := s.issuer.Subordinate(s.ctx, "https://unknown.example.org")
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("repeated fetches are served from cache", func() {
		s.register("https://cached.example.org")

		first, err := s.issuer.Subordinate(s.ctx, "https://cached.example.org")
		s.Require().NoError(err)

		// A later request time would change iat; the cached copy wins.
		later := requestcontext.WithTime(context.Background(), s.now.Add(time.Minute))
		second, err := s.issuer.Subordinate(later, "https://cached.example.org")
		s.Require().NoError(err)
		s.Equal(first, second)
	})

	s.Run("invalidation forces a fresh statement", func() {
		s.register("https://fresh.example.org")

		first, err := s.issuer.Subordinate(s.ctx, "https://fresh.example.org")
		s.Require().NoError(err)

		s.issuer.Invalidate("https://fresh.example.org")
		later := requestcontext.WithTime(context.Background(), s.now.Add(time.Minute))
		second, err := s.issuer.Subordinate(later, "https://fresh.example.org")
		s.Require().NoError(err)
		s.NotEqual(first, second)
	})
}

// TestPublishedKeyMaterial verifies only the public key half ever leaves the
// issuer and that issued statements verify against the advertised key.
func (s *IssuerSuite) TestPublishedKeyMaterial() {
	key := s.issuer.RegistryJWK()
	s.Empty(key.D)

	encoded, err := s.issuer.SelfStatement(s.ctx)
	s.Require().NoError(err)

	claims, err := s.codec.DecodeEntityStatement(encoded)
	s.Require().NoError(err)
	s.Require().NotNil(claims.JWKS)
	for _, k := range claims.JWKS.Keys {
		s.Empty(k.D)
	}

	// The header names the key, never the seed it was derived from.
	dec, err := s.codec.Decode(encoded)
	s.Require().NoError(err)
	s.Equal(key.Kid, dec.Header.Kid)
	s.NotEqual(keySeed, dec.Header.Kid)

	ok, err := s.codec.Verify(encoded, &key)
	s.Require().NoError(err)
	s.True(ok)
}
