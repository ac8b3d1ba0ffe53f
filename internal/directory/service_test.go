package directory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "fedreg/pkg/domain-errors"
	"fedreg/internal/statement"
	"fedreg/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *InMemory
	service *Service
	now     time.Time
	ctx     context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemory()
	s.service = NewService(s.store, WithStatementTTL(24*time.Hour))
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func validJWKS() json.RawMessage {
	return json.RawMessage(`{"keys":[{"kty":"EC","kid":"k1","crv":"P-256","x":"eA","y":"eQ"}]}`)
}

// TestRegister covers registration validation and claim construction.
func (s *ServiceSuite) TestRegister() {
	s.Run("registers with inline jwks", func() {
		entry, err := s.service.Register(s.ctx, "https://op.example.org", Registration{
			Name: "Provider",
			JWKS: validJWKS(),
			Metadata: statement.Metadata{
				statement.EntityTypeOpenIDProvider: {"issuer": "https://op.example.org"},
			},
		})
		s.Require().NoError(err)
		s.Equal(StatusActive, entry.Status)
		s.Equal("https://op.example.org", entry.Claims.Issuer)
		s.Equal("https://op.example.org", entry.Claims.Subject)
		s.Equal(s.now.Unix(), entry.Claims.IssuedAt)
		s.Equal(s.now.Add(24*time.Hour).Unix(), entry.Claims.ExpiresAt)
		s.True(entry.Claims.SelfStatement())
		s.Require().NotNil(entry.Claims.JWKS)
		s.Equal("k1", entry.Claims.JWKS.Keys[0].Kid)
	})

	s.Run("registers with jwks_uri only", func() {
		entry, err := s.service.Register(s.ctx, "https://rp.example.org", Registration{
			Name:    "Party",
			JWKSURI: "https://rp.example.org/jwks.json",
		})
		s.Require().NoError(err)
		s.Nil(entry.Claims.JWKS)
		s.Equal("https://rp.example.org/jwks.json", entry.JWKSURI)
	})

	s.Run("rejects empty entity_id", func() {
		_, err := s.service.Register(s.ctx, "  ", Registration{JWKS: validJWKS()})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects missing key material", func() {
		_, err := s.service.Register(s.ctx, "https://nokeys.example.org", Registration{Name: "NoKeys"})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects jwks that is not an object", func() {
		_, err := s.service.Register(s.ctx, "https://bad.example.org", Registration{
			JWKS: json.RawMessage(`"not-an-object"`),
		})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects jwks whose keys is not a list", func() {
		_, err := s.service.Register(s.ctx, "https://bad2.example.org", Registration{
			JWKS: json.RawMessage(`{"keys":{"kty":"EC"}}`),
		})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("duplicate registration is a conflict", func() {
		_, err := s.service.Register(s.ctx, "https://twice.example.org", Registration{JWKS: validJWKS()})
		s.Require().NoError(err)

		_, err = s.service.Register(s.ctx, "https://twice.example.org", Registration{JWKS: validJWKS()})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// TestMetadataMerge verifies partial metadata updates replace whole type records.
func (s *ServiceSuite) TestMetadataMerge() {
	s.Run("merges new type and replaces existing record", func() {
		_, err := s.service.Register(s.ctx, "https://merge.example.org", Registration{
			JWKS: validJWKS(),
			Metadata: statement.Metadata{
				statement.EntityTypeOpenIDProvider: {"issuer": "old", "token_endpoint": "t"},
			},
		})
		s.Require().NoError(err)

		later := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
		entry, err := s.service.UpdateMetadata(later, "https://merge.example.org", statement.Metadata{
			statement.EntityTypeOpenIDProvider:   {"issuer": "new"},
			statement.EntityTypeFederationEntity: {"organization_name": "Org"},
		})
		s.Require().NoError(err)

		op := entry.Claims.Metadata[statement.EntityTypeOpenIDProvider]
		s.Equal("new", op["issuer"])
		s.NotContains(op, "token_endpoint") // whole record replaced
		s.Contains(entry.Claims.Metadata, statement.EntityTypeFederationEntity)
		s.True(entry.UpdatedAt.After(entry.CreatedAt))
	})

	s.Run("unknown entity is not found", func() {
		_, err := s.service.UpdateMetadata(s.ctx, "https://nope.example.org", statement.Metadata{})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// TestStatusChanges verifies lifecycle transitions.
func (s *ServiceSuite) TestStatusChanges() {
	s.Run("suspend then revoke then reactivate", func() {
		_, err := s.service.Register(s.ctx, "https://life.example.org", Registration{JWKS: validJWKS()})
		s.Require().NoError(err)

		for _, status := range []Status{StatusSuspended, StatusRevoked, StatusActive} {
			entry, err := s.service.UpdateStatus(s.ctx, "https://life.example.org", status)
			s.Require().NoError(err)
			s.Equal(status, entry.Status)
		}
	})

	s.Run("rejects unknown status value", func() {
		_, err := s.service.UpdateStatus(s.ctx, "https://life.example.org", Status("zombie"))
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// TestRemove verifies physical deletion.
func (s *ServiceSuite) TestRemove() {
	s.Run("removes an entity", func() {
		_, err := s.service.Register(s.ctx, "https://rm.example.org", Registration{JWKS: validJWKS()})
		s.Require().NoError(err)

		s.Require().NoError(s.service.Remove(s.ctx, "https://rm.example.org"))

		_, err = s.service.Get(s.ctx, "https://rm.example.org")
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("removing unknown entity is not found", func() {
		err := s.service.Remove(s.ctx, "https://missing.example.org")
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
