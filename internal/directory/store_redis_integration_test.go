//go:build integration

package directory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"fedreg/internal/statement"
	"fedreg/pkg/platform/sentinel"
	"fedreg/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *Redis
	ctx   context.Context
}

func (s *RedisStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) newEntry(entityID, name string) *Entry {
	now := time.Now().UTC().Truncate(time.Second)
	return &Entry{
		ID:        uuid.New(),
		EntityID:  entityID,
		Name:      name,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		Claims: &statement.EntityStatementClaims{
			Issuer:   entityID,
			Subject:  entityID,
			IssuedAt: now.Unix(),
			Metadata: statement.Metadata{
				statement.EntityTypeOpenIDProvider: {"issuer": entityID},
			},
		},
	}
}

func (s *RedisStoreSuite) TestRoundTrip() {
	entry := s.newEntry("https://op.example.org", "Provider")
	s.Require().NoError(s.store.Create(s.ctx, entry))

	found, err := s.store.FindByEntityID(s.ctx, entry.EntityID)
	s.Require().NoError(err)
	s.Equal(entry.ID, found.ID)
	s.Equal(entry.Name, found.Name)
	s.Require().NotNil(found.Claims)
	s.Equal(entry.EntityID, found.Claims.Issuer)
}

func (s *RedisStoreSuite) TestUniqueness() {
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry("https://a.example.org", "Alpha")))

	s.Require().ErrorIs(
		s.store.Create(s.ctx, s.newEntry("https://a.example.org", "Other")),
		sentinel.ErrAlreadyUsed,
	)
	s.Require().ErrorIs(
		s.store.Create(s.ctx, s.newEntry("https://b.example.org", "ALPHA")),
		sentinel.ErrAlreadyUsed,
	)

	// A failed create must not leave partial index keys behind.
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry("https://b.example.org", "Beta")))
}

func (s *RedisStoreSuite) TestListAndFilter() {
	op := s.newEntry("https://op.example.org", "OP")
	rp := s.newEntry("https://rp.example.org", "RP")
	rp.Claims.Metadata = statement.Metadata{
		statement.EntityTypeRelyingParty: {"client_name": "RP"},
	}
	s.Require().NoError(s.store.Create(s.ctx, op))
	s.Require().NoError(s.store.Create(s.ctx, rp))

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 2)

	providers, err := s.store.ListByType(s.ctx, statement.EntityTypeOpenIDProvider)
	s.Require().NoError(err)
	s.Require().Len(providers, 1)
	s.Equal("https://op.example.org", providers[0].EntityID)
}

func (s *RedisStoreSuite) TestUpdateAndDelete() {
	entry := s.newEntry("https://mut.example.org", "Mut")
	s.Require().NoError(s.store.Create(s.ctx, entry))

	entry.Status = StatusSuspended
	entry.Name = "Renamed"
	s.Require().NoError(s.store.Update(s.ctx, entry))

	found, err := s.store.FindByEntityID(s.ctx, entry.EntityID)
	s.Require().NoError(err)
	s.Equal(StatusSuspended, found.Status)
	s.Equal("Renamed", found.Name)

	// Old name must be released after the rename.
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry("https://other.example.org", "Mut")))

	s.Require().NoError(s.store.Delete(s.ctx, entry.EntityID))
	_, err = s.store.FindByEntityID(s.ctx, entry.EntityID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.store.Delete(s.ctx, entry.EntityID), sentinel.ErrNotFound)
}
