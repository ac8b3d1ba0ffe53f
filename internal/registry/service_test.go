package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	dErrors "fedreg/pkg/domain-errors"
	"fedreg/internal/audit"
	"fedreg/internal/directory"
	"fedreg/internal/issuer"
	"fedreg/internal/signer"
	"fedreg/internal/signer/mocks"
	"fedreg/internal/statement"
	"fedreg/internal/trust"
	"fedreg/pkg/requestcontext"
)

const (
	baseID   = "https://registry.example.org"
	anchorID = "https://trust-anchor.example.org"
	opID     = "https://op.example.org"
)

type ServiceSuite struct {
	suite.Suite
	dir      *directory.Service
	store    *directory.InMemory
	resolver *trust.Resolver
	auditLog *audit.InMemory
	service  *Service
	ctx      context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.store = directory.NewInMemory()
	s.dir = directory.NewService(s.store)

	anchors := trust.NewAnchors(anchorID)
	repo := trust.NewDirectoryRepository(s.store, anchorID)
	s.resolver = trust.NewResolver(repo, repo, anchors)

	codec := statement.NewCodec(signer.NewMockSigner())
	iss := issuer.New(codec, s.dir, baseID, "test-seed")

	s.auditLog = audit.NewInMemory()
	engine := NewTrustChainEngine(s.resolver, anchors, baseID)
	s.service = NewService(s.dir, s.resolver, iss, codec, engine, baseID,
		WithAudit(audit.NewPublisher(s.auditLog, nil)),
	)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) register(entityID, entityType string) {
	_, err := s.dir.Register(s.ctx, entityID, directory.Registration{
		JWKS:     json.RawMessage(`{"keys":[{"kty":"EC","kid":"k1","crv":"P-256","x":"eA","y":"eQ"}]}`),
		Metadata: statement.Metadata{entityType: {"issuer": entityID}},
	})
	s.Require().NoError(err)
}

// TestQueryRecognition covers the recognition decision surface.
func (s *ServiceSuite) TestQueryRecognition() {
	s.register(opID, statement.EntityTypeOpenIDProvider)

	s.Run("seeded provider is recognized by the trust anchor", func() {
		result, err := s.service.QueryRecognition(s.ctx, RecognitionRequest{
			EntityID:    opID,
			AuthorityID: anchorID,
		})
		s.Require().NoError(err)
		s.True(result.Recognized)
		s.Contains(result.Message, opID)
		s.Contains(result.Message, anchorID)
	})

	s.Run("unknown entity is not recognized", func() {
		result, err := s.service.QueryRecognition(s.ctx, RecognitionRequest{
			EntityID:    "https://unknown.example.org",
			AuthorityID: anchorID,
		})
		s.Require().NoError(err)
		s.False(result.Recognized)
		s.Contains(result.Message, "not recognized")
		s.Contains(result.Message, "https://unknown.example.org")
	})

	s.Run("recognition narrows on assertion when supplied", func() {
		held, err := s.service.QueryRecognition(s.ctx, RecognitionRequest{
			EntityID:    opID,
			AuthorityID: anchorID,
			AssertionID: statement.EntityTypeOpenIDProvider,
		})
		s.Require().NoError(err)
		s.True(held.Recognized)

		notHeld, err := s.service.QueryRecognition(s.ctx, RecognitionRequest{
			EntityID:    opID,
			AuthorityID: anchorID,
			AssertionID: statement.EntityTypeRelyingParty,
		})
		s.Require().NoError(err)
		s.False(notHeld.Recognized)
	})

	s.Run("registry's own identifier is a valid authority", func() {
		result, err := s.service.QueryRecognition(s.ctx, RecognitionRequest{
			EntityID:    opID,
			AuthorityID: baseID,
		})
		s.Require().NoError(err)
		s.True(result.Recognized)
	})

	s.Run("unknown authority invalidates recognition", func() {
		result, err := s.service.QueryRecognition(s.ctx, RecognitionRequest{
			EntityID:    opID,
			AuthorityID: "https://rogue.example.org",
		})
		s.Require().NoError(err)
		s.False(result.Recognized)
	})

	s.Run("missing identifiers are invalid input", func() {
		_, err := s.service.QueryRecognition(s.ctx, RecognitionRequest{AuthorityID: anchorID})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = s.service.QueryRecognition(s.ctx, RecognitionRequest{EntityID: opID})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("decisions land in the audit trail", func() {
		_, err := s.service.QueryRecognition(s.ctx, RecognitionRequest{EntityID: opID, AuthorityID: anchorID})
		s.Require().NoError(err)

		events, err := s.auditLog.ListByEntity(s.ctx, opID)
		s.Require().NoError(err)
		s.Require().NotEmpty(events)
		s.Equal(audit.TypeRecognitionQuery, events[0].Type)
		s.Equal(audit.DecisionRecognized, events[0].Decision)
	})
}

// TestDirectoryStrategy verifies the simple membership engine.
func (s *ServiceSuite) TestDirectoryStrategy() {
	s.service.engine = NewDirectoryEngine(s.dir)
	s.register(opID, statement.EntityTypeOpenIDProvider)

	result, err := s.service.QueryRecognition(s.ctx, RecognitionRequest{
		EntityID:    opID,
		AuthorityID: "https://anything.example.org",
	})
	s.Require().NoError(err)
	s.True(result.Recognized)

	result, err = s.service.QueryRecognition(s.ctx, RecognitionRequest{
		EntityID:    "https://unknown.example.org",
		AuthorityID: anchorID,
	})
	s.Require().NoError(err)
	s.False(result.Recognized)
}

// TestQueryAuthorization covers assertion verification.
func (s *ServiceSuite) TestQueryAuthorization() {
	s.register(opID, statement.EntityTypeOpenIDProvider)

	s.Run("provider holds openid_provider but not openid_relying_party", func() {
		held, err := s.service.QueryAuthorization(s.ctx, AuthorizationRequest{
			EntityID:    opID,
			AuthorityID: anchorID,
			AssertionID: statement.EntityTypeOpenIDProvider,
		})
		s.Require().NoError(err)
		s.True(held.AssertionVerified)

		notHeld, err := s.service.QueryAuthorization(s.ctx, AuthorizationRequest{
			EntityID:    opID,
			AuthorityID: anchorID,
			AssertionID: statement.EntityTypeRelyingParty,
		})
		s.Require().NoError(err)
		s.False(notHeld.AssertionVerified)
		s.Contains(notHeld.Message, "does not hold")
	})

	s.Run("suspended entity loses authorization", func() {
		_, err := s.dir.UpdateStatus(s.ctx, opID, directory.StatusSuspended)
		s.Require().NoError(err)

		result, err := s.service.QueryAuthorization(s.ctx, AuthorizationRequest{
			EntityID:    opID,
			AuthorityID: anchorID,
			AssertionID: statement.EntityTypeOpenIDProvider,
		})
		s.Require().NoError(err)
		s.False(result.AssertionVerified)
	})

	s.Run("time echoes context.time verbatim", func() {
		result, err := s.service.QueryAuthorization(s.ctx, AuthorizationRequest{
			EntityID:    opID,
			AuthorityID: anchorID,
			AssertionID: statement.EntityTypeOpenIDProvider,
			Context:     json.RawMessage(`{"time":"not-even-a-timestamp"}`),
		})
		s.Require().NoError(err)
		s.Equal("not-even-a-timestamp", result.Time)
	})
}

// TestGetEntityInfo covers the composite entity view.
func (s *ServiceSuite) TestGetEntityInfo() {
	s.register(opID, statement.EntityTypeOpenIDProvider)

	s.Run("trusted entity yields a full view with a signed statement", func() {
		info, err := s.service.GetEntityInfo(s.ctx, opID)
		s.Require().NoError(err)
		s.True(info.Found)
		s.True(info.IsTrusted)
		s.Equal(opID, info.EntityID)
		s.Require().NotEmpty(info.TrustChains)
		s.Equal(anchorID, info.TrustChains[0].TrustAnchorID)
		s.Contains(info.Metadata, statement.EntityTypeOpenIDProvider)
		s.NotEmpty(info.EntityStatement)
		s.Greater(info.ExpiresAt, info.CreatedAt)
	})

	s.Run("absent entity yields found false", func() {
		info, err := s.service.GetEntityInfo(s.ctx, "https://ghost.example.org")
		s.Require().NoError(err)
		s.False(info.Found)
		s.Contains(info.Message, "not recognized")
	})

	s.Run("revoked entity yields found false", func() {
		_, err := s.dir.UpdateStatus(s.ctx, opID, directory.StatusRevoked)
		s.Require().NoError(err)

		info, err := s.service.GetEntityInfo(s.ctx, opID)
		s.Require().NoError(err)
		s.False(info.Found)
	})
}

// TestSignerFailure verifies a broken signer surfaces as an error, never as
// an untrusted answer.
func TestSignerFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Algorithm().Return("MOCK256").AnyTimes()
	provider.EXPECT().Sign(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("hsm offline")).AnyTimes()

	store := directory.NewInMemory()
	dir := directory.NewService(store)
	anchors := trust.NewAnchors(anchorID)
	repo := trust.NewDirectoryRepository(store, anchorID)
	resolver := trust.NewResolver(repo, repo, anchors)
	codec := statement.NewCodec(provider)
	iss := issuer.New(codec, dir, baseID, "test-seed")
	service := NewService(dir, resolver, iss, codec, NewTrustChainEngine(resolver, anchors, baseID), baseID)

	ctx := context.Background()
	_, err := dir.Register(ctx, opID, directory.Registration{
		JWKS:     json.RawMessage(`{"keys":[{"kty":"EC","kid":"k1","crv":"P-256","x":"eA","y":"eQ"}]}`),
		Metadata: statement.Metadata{statement.EntityTypeOpenIDProvider: {}},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := service.GetEntityInfo(ctx, opID); err == nil {
		t.Fatal("expected signer failure to propagate from GetEntityInfo")
	}
	if _, err := service.SelfStatement(ctx); err == nil {
		t.Fatal("expected signer failure to propagate from SelfStatement")
	}
	if _, err := service.FetchStatement(ctx, baseID, opID); err == nil {
		t.Fatal("expected signer failure to propagate from FetchStatement")
	}
}
