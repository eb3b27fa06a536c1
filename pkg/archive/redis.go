package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/modgraph/pkg/cache"
)

// DefaultRedisPrefix namespaces archive keys in a shared Redis.
const DefaultRedisPrefix = "modgraph:archive:"

// RedisStore keeps archives in Redis. Expiry is delegated to Redis TTLs.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore connects to the Redis server at url and verifies the
// connection. An empty prefix uses [DefaultRedisPrefix].
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := cache.Ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisStoreFromClient(client, prefix), nil
}

// NewRedisStoreFromClient wraps an existing client. The store closes the
// client on Close.
func NewRedisStoreFromClient(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(docID string) string {
	return s.prefix + cache.Hash([]byte(docID))
}

func (s *RedisStore) Load(ctx context.Context, docID string) (*Archive, error) {
	data, err := s.client.Get(ctx, s.key(docID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archive: %w", err)
	}
	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse archive: %w", err)
	}
	if a.IsExpired() {
		return nil, nil
	}
	return &a, nil
}

func (s *RedisStore) Save(ctx context.Context, a *Archive) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}
	if err := s.client.Set(ctx, s.key(a.DocumentID), data, a.TTL()).Err(); err != nil {
		return fmt.Errorf("set archive: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, docID string) error {
	return s.client.Del(ctx, s.key(docID)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
