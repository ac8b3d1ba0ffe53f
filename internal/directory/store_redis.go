package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"fedreg/pkg/platform/sentinel"
)

const (
	redisEntryPrefix   = "directory:entry:"
	redisNamePrefix    = "directory:name:"
	redisJWKSURIPrefix = "directory:jwksuri:"
	redisIndexKey      = "directory:entities"
)

// Redis implements Store on a redis client. Entries are JSON blobs keyed by
// entity id; name and jwks_uri uniqueness is enforced with SetNX index keys,
// and a set of entity ids backs List.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Create(ctx context.Context, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisEntryPrefix+entry.EntityID, raw, 0).Result()
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	if !ok {
		return sentinel.ErrAlreadyUsed
	}

	if err := s.claimIndex(ctx, redisNamePrefix+strings.ToLower(entry.Name), entry.Name, entry.EntityID); err != nil {
		s.client.Del(ctx, redisEntryPrefix+entry.EntityID)
		return err
	}
	if err := s.claimIndex(ctx, redisJWKSURIPrefix+entry.JWKSURI, entry.JWKSURI, entry.EntityID); err != nil {
		s.client.Del(ctx, redisEntryPrefix+entry.EntityID, redisNamePrefix+strings.ToLower(entry.Name))
		return err
	}

	if err := s.client.SAdd(ctx, redisIndexKey, entry.EntityID).Err(); err != nil {
		return fmt.Errorf("index entry: %w", err)
	}
	return nil
}

func (s *Redis) claimIndex(ctx context.Context, key, value, entityID string) error {
	if value == "" {
		return nil
	}
	ok, err := s.client.SetNX(ctx, key, entityID, 0).Result()
	if err != nil {
		return fmt.Errorf("claim index %q: %w", key, err)
	}
	if !ok {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *Redis) FindByEntityID(ctx context.Context, entityID string) (*Entry, error) {
	raw, err := s.client.Get(ctx, redisEntryPrefix+entityID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &entry, nil
}

func (s *Redis) List(ctx context.Context) ([]*Entry, error) {
	ids, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisEntryPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch entries: %w", err)
	}

	entries := make([]*Entry, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (s *Redis) ListByType(ctx context.Context, entityType string) ([]*Entry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	filtered := entries[:0]
	for _, entry := range entries {
		if entry.Claims != nil && entry.Claims.HasEntityType(entityType) {
			filtered = append(filtered, entry)
		}
	}
	return filtered, nil
}

func (s *Redis) Update(ctx context.Context, entry *Entry) error {
	current, err := s.FindByEntityID(ctx, entry.EntityID)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := s.client.Set(ctx, redisEntryPrefix+entry.EntityID, raw, 0).Err(); err != nil {
		return fmt.Errorf("update entry: %w", err)
	}

	// Move index keys if the unique fields changed.
	if !strings.EqualFold(current.Name, entry.Name) {
		s.client.Del(ctx, redisNamePrefix+strings.ToLower(current.Name))
		if entry.Name != "" {
			s.client.Set(ctx, redisNamePrefix+strings.ToLower(entry.Name), entry.EntityID, 0)
		}
	}
	if current.JWKSURI != entry.JWKSURI {
		if current.JWKSURI != "" {
			s.client.Del(ctx, redisJWKSURIPrefix+current.JWKSURI)
		}
		if entry.JWKSURI != "" {
			s.client.Set(ctx, redisJWKSURIPrefix+entry.JWKSURI, entry.EntityID, 0)
		}
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context, entityID string) error {
	entry, err := s.FindByEntityID(ctx, entityID)
	if err != nil {
		return err
	}

	keys := []string{redisEntryPrefix + entityID}
	if entry.Name != "" {
		keys = append(keys, redisNamePrefix+strings.ToLower(entry.Name))
	}
	if entry.JWKSURI != "" {
		keys = append(keys, redisJWKSURIPrefix+entry.JWKSURI)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if err := s.client.SRem(ctx, redisIndexKey, entityID).Err(); err != nil {
		return fmt.Errorf("deindex entry: %w", err)
	}
	return nil
}
