package cache

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"
)

const (
	keyPrefixFlag = "cache-key-prefix"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   keyPrefixFlag,
			Usage:  "prefix for all cache keys",
			Value:  "epguides",
			EnvVar: "CACHE_KEY_PREFIX",
		},
	)
}

// Store is a thin typed layer over Redis. It is an optimization, not a
// source of truth: reads fail soft as misses and writes are fire-and-forget,
// so a broken cache only makes the service slower, never incorrect.
type Store struct {
	rc     *cs.RedisClient
	prefix string
}

func New(c *cli.Context, rc *cs.RedisClient) *Store {
	return &Store{
		rc:     rc,
		prefix: c.String(keyPrefixFlag),
	}
}

func (s *Store) client() redis.UniversalClient {
	if s.rc == nil {
		return nil
	}
	return s.rc.Get()
}

// GetJSON reads and decodes the value stored under key into out. Any
// transport or decode error is reported as a miss.
func (s *Store) GetJSON(ctx context.Context, key string, out any) bool {
	cl := s.client()
	if cl == nil {
		return false
	}
	data, err := cl.Get(ctx, s.prefixed(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		log.WithError(err).Warnf("cache read failed for %v", key)
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.WithError(err).Warnf("cache decode failed for %v", key)
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key with the given ttl. Failures
// are logged and swallowed.
func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	cl := s.client()
	if cl == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Warnf("cache encode failed for %v", key)
		return
	}
	if err := cl.Set(ctx, s.prefixed(key), data, ttl).Err(); err != nil {
		log.WithError(err).Warnf("cache write failed for %v", key)
	}
}

// Drop removes the given keys. Failures are logged and swallowed.
func (s *Store) Drop(ctx context.Context, keys ...string) {
	cl := s.client()
	if cl == nil || len(keys) == 0 {
		return
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefixed(k)
	}
	if err := cl.Del(ctx, prefixed...).Err(); err != nil {
		log.WithError(err).Warn("cache drop failed")
	}
}

// Flush drops every key in the current database. Administrative only.
func (s *Store) Flush(ctx context.Context) error {
	cl := s.client()
	if cl == nil {
		return errors.New("redis client not available")
	}
	if err := cl.FlushDB(ctx).Err(); err != nil {
		return errors.Wrap(err, "failed to flush cache")
	}
	return nil
}

// Ping reports whether the cache backend is reachable.
func (s *Store) Ping(ctx context.Context) bool {
	cl := s.client()
	if cl == nil {
		return false
	}
	if err := cl.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("cache ping failed")
		return false
	}
	return true
}

func (s *Store) prefixed(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}
