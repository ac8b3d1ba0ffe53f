//go:build integration

package directory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"fedreg/internal/statement"
	"fedreg/pkg/platform/sentinel"
	"fedreg/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pool  *pgxpool.Pool
	store *Postgres
	ctx   context.Context
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	pg := containers.NewPostgresContainer(s.T())

	pool, err := pgxpool.New(s.ctx, pg.DSN)
	s.Require().NoError(err)
	s.pool = pool

	s.store = NewPostgres(pool)
	s.Require().NoError(s.store.EnsureSchema(s.ctx))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, `TRUNCATE registered_entities`)
	s.Require().NoError(err)
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) newEntry(entityID, name, entityType string) *Entry {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &Entry{
		ID:        uuid.New(),
		EntityID:  entityID,
		Name:      name,
		Statement: "header.payload.signature",
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		Claims: &statement.EntityStatementClaims{
			Issuer:   entityID,
			Subject:  entityID,
			IssuedAt: now.Unix(),
			Metadata: statement.Metadata{entityType: {"issuer": entityID}},
		},
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	entry := s.newEntry("https://op.example.org", "Provider", statement.EntityTypeOpenIDProvider)
	s.Require().NoError(s.store.Create(s.ctx, entry))

	found, err := s.store.FindByEntityID(s.ctx, entry.EntityID)
	s.Require().NoError(err)
	s.Equal(entry.ID, found.ID)
	s.Equal(entry.Name, found.Name)
	s.Equal(entry.Statement, found.Statement)
	s.Equal(StatusActive, found.Status)
	s.Require().NotNil(found.Claims)
	s.Equal(entry.EntityID, found.Claims.Issuer)
}

func (s *PostgresStoreSuite) TestUniqueViolations() {
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry("https://a.example.org", "Alpha", statement.EntityTypeOpenIDProvider)))

	err := s.store.Create(s.ctx, s.newEntry("https://a.example.org", "Other", statement.EntityTypeOpenIDProvider))
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	err = s.store.Create(s.ctx, s.newEntry("https://b.example.org", "ALPHA", statement.EntityTypeOpenIDProvider))
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestListByType() {
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry("https://op.example.org", "OP", statement.EntityTypeOpenIDProvider)))
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry("https://rp.example.org", "RP", statement.EntityTypeRelyingParty)))

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 2)

	providers, err := s.store.ListByType(s.ctx, statement.EntityTypeOpenIDProvider)
	s.Require().NoError(err)
	s.Require().Len(providers, 1)
	s.Equal("https://op.example.org", providers[0].EntityID)
}

func (s *PostgresStoreSuite) TestUpdateAndDelete() {
	entry := s.newEntry("https://mut.example.org", "Mut", statement.EntityTypeOpenIDProvider)
	s.Require().NoError(s.store.Create(s.ctx, entry))

	entry.Status = StatusRevoked
	entry.UpdatedAt = entry.UpdatedAt.Add(time.Minute)
	s.Require().NoError(s.store.Update(s.ctx, entry))

	found, err := s.store.FindByEntityID(s.ctx, entry.EntityID)
	s.Require().NoError(err)
	s.Equal(StatusRevoked, found.Status)

	s.Require().NoError(s.store.Delete(s.ctx, entry.EntityID))
	_, err = s.store.FindByEntityID(s.ctx, entry.EntityID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.store.Update(s.ctx, entry), sentinel.ErrNotFound)
	s.Require().ErrorIs(s.store.Delete(s.ctx, entry.EntityID), sentinel.ErrNotFound)
}
