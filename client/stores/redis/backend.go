// Package redis provides a Redis credential backend for vaultclient, for
// processes that share one session across replicas.
package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cerbyonvault/vaultclient/client"
)

// KeyPrefix namespaces credential keys
const KeyPrefix = "vaultclient:cred:"

// Cmdable is the subset of go-redis the backend needs; *redis.Client satisfies it
type Cmdable = redis.Cmdable

// Backend implements client.Backend as one Redis string per profile
type Backend struct {
	rdb     Cmdable
	profile string
	ttl     time.Duration
}

var _ client.Backend = (*Backend)(nil)

// NewBackend creates a backend for profile. A positive ttl expires the stored
// pair; it should not be shorter than the refresh token lifetime.
func NewBackend(rdb Cmdable, profile string, ttl time.Duration) *Backend {
	if profile == "" {
		profile = "default"
	}
	return &Backend{rdb: rdb, profile: profile, ttl: ttl}
}

func (b *Backend) key() string {
	return KeyPrefix + b.profile
}

func (b *Backend) Read(ctx context.Context) ([]byte, error) {
	data, err := b.rdb.Get(ctx, b.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *Backend) Write(ctx context.Context, data []byte) error {
	return b.rdb.Set(ctx, b.key(), data, b.ttl).Err()
}

func (b *Backend) Delete(ctx context.Context) error {
	return b.rdb.Del(ctx, b.key()).Err()
}

// Profiles lists stored profiles by scanning the key prefix
func Profiles(ctx context.Context, rdb Cmdable) ([]string, error) {
	var profiles []string
	iter := rdb.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		profiles = append(profiles, strings.TrimPrefix(iter.Val(), KeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}
