package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fedreg/internal/statement"
	"fedreg/pkg/platform/sentinel"
)

// Postgres implements Store on a pgx connection pool. Claims are stored as
// jsonb so ListByType can filter on metadata keys server-side.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Schema is applied at startup. Uniqueness constraints mirror the in-memory
// store: entity id, lower(name), and jwks_uri when present.
const Schema = `
CREATE TABLE IF NOT EXISTS registered_entities (
	id UUID PRIMARY KEY,
	entity_id TEXT NOT NULL UNIQUE,
	name TEXT,
	jwks_uri TEXT,
	statement TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	claims JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS registered_entities_name_key
	ON registered_entities (lower(name)) WHERE name <> '';
CREATE UNIQUE INDEX IF NOT EXISTS registered_entities_jwks_uri_key
	ON registered_entities (jwks_uri) WHERE jwks_uri IS NOT NULL;
`

// EnsureSchema creates the table and indexes if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure directory schema: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, entry *Entry) error {
	claims, err := marshalClaims(entry.Claims)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO registered_entities
			(id, entity_id, name, jwks_uri, statement, status, claims, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)`,
		entry.ID, entry.EntityID, entry.Name, entry.JWKSURI, entry.Statement,
		string(entry.Status), claims, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

func (s *Postgres) FindByEntityID(ctx context.Context, entityID string) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, entity_id, name, jwks_uri, statement, status, claims, created_at, updated_at
		FROM registered_entities WHERE entity_id = $1`, entityID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return entry, nil
}

func (s *Postgres) List(ctx context.Context) ([]*Entry, error) {
	return s.query(ctx, `
		SELECT id, entity_id, name, jwks_uri, statement, status, claims, created_at, updated_at
		FROM registered_entities`)
}

func (s *Postgres) ListByType(ctx context.Context, entityType string) ([]*Entry, error) {
	return s.query(ctx, `
		SELECT id, entity_id, name, jwks_uri, statement, status, claims, created_at, updated_at
		FROM registered_entities WHERE claims->'metadata' ? $1`, entityType)
}

func (s *Postgres) Update(ctx context.Context, entry *Entry) error {
	claims, err := marshalClaims(entry.Claims)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE registered_entities
		SET name = $2, jwks_uri = NULLIF($3, ''), statement = $4, status = $5,
			claims = $6, updated_at = $7
		WHERE entity_id = $1`,
		entry.EntityID, entry.Name, entry.JWKSURI, entry.Statement,
		string(entry.Status), claims, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, entityID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM registered_entities WHERE entity_id = $1`, entityID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) query(ctx context.Context, sql string, args ...any) ([]*Entry, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		entry     Entry
		jwksURI   *string
		status    string
		claimsRaw []byte
	)
	err := row.Scan(&entry.ID, &entry.EntityID, &entry.Name, &jwksURI, &entry.Statement,
		&status, &claimsRaw, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if jwksURI != nil {
		entry.JWKSURI = *jwksURI
	}
	entry.Status = Status(status)
	if len(claimsRaw) > 0 {
		var claims statement.EntityStatementClaims
		if err := json.Unmarshal(claimsRaw, &claims); err != nil {
			return nil, fmt.Errorf("unmarshal claims: %w", err)
		}
		entry.Claims = &claims
	}
	return &entry, nil
}

func marshalClaims(claims *statement.EntityStatementClaims) ([]byte, error) {
	if claims == nil {
		return nil, nil
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("marshal claims: %w", err)
	}
	return raw, nil
}
