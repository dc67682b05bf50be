package querycache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces query keys in a shared Redis.
const DefaultKeyPrefix = "paperretrieval:query:"

// RedisCmdable is the subset of redis.Cmdable used by RedisStore.
type RedisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps each query's timestamp under <prefix><query> as a
// decimal integer. Keys never expire: staleness is decided by Cache, and a
// stale entry is still needed to know the query was seen.
type RedisStore struct {
	rdb    RedisCmdable
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. An empty prefix selects
// DefaultKeyPrefix.
func NewRedisStore(rdb RedisCmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(query string) string {
	return s.prefix + query
}

// LastFetched reads the timestamp for query.
func (s *RedisStore) LastFetched(ctx context.Context, query string) (int64, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(query)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis get: %w", err)
	}

	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis value for %q is not a timestamp: %w", query, err)
	}
	return ts, true, nil
}

// Touch stores unix for query.
func (s *RedisStore) Touch(ctx context.Context, query string, unix int64) error {
	if err := s.rdb.Set(ctx, s.key(query), strconv.FormatInt(unix, 10), 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// DialRedis connects to Redis and verifies the connection with a ping.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
