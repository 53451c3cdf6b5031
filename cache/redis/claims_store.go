// Package redis provides a Redis-backed claims store so that multiple
// replicas can share verified provider claims.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	patgate "go.pilab.hu/patgate"
	"go.pilab.hu/patgate/cache"
	"go.pilab.hu/patgate/domain"
)

// ClaimsStore implements cache.ClaimsStore using Redis.
type ClaimsStore struct {
	client *redis.Client
	prefix string
}

// NewClaimsStore creates a new ClaimsStore instance.
func NewClaimsStore(client *redis.Client, prefix string) *ClaimsStore {
	return &ClaimsStore{
		client: client,
		prefix: prefix,
	}
}

func (s *ClaimsStore) redisKey(rawToken string) string {
	return fmt.Sprintf("%s:claims:%s", s.prefix, patgate.HashSecret(rawToken))
}

// Set stores the principal as JSON with the given TTL.
func (s *ClaimsStore) Set(ctx context.Context, rawToken string, principal *domain.Principal, ttl time.Duration) error {
	payload, err := json.Marshal(principal)
	if err != nil {
		return fmt.Errorf("failed to marshal principal: %w", err)
	}

	if err := s.client.Set(ctx, s.redisKey(rawToken), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set claims in Redis: %w", err)
	}

	return nil
}

// Get returns the cached principal. Redis failures degrade to a cache
// miss so verification falls through to the provider.
func (s *ClaimsStore) Get(ctx context.Context, rawToken string) (*domain.Principal, bool) {
	payload, err := s.client.Get(ctx, s.redisKey(rawToken)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("Redis claims lookup failed, treating as miss")
		}
		return nil, false
	}

	var principal domain.Principal
	if err := json.Unmarshal(payload, &principal); err != nil {
		log.Warn().Err(err).Msg("Failed to unmarshal cached claims, treating as miss")
		return nil, false
	}

	return &principal, true
}

// Delete removes a cached entry.
func (s *ClaimsStore) Delete(ctx context.Context, rawToken string) error {
	return s.client.Del(ctx, s.redisKey(rawToken)).Err()
}

var _ cache.ClaimsStore = (*ClaimsStore)(nil)
