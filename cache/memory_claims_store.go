package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	patgate "go.pilab.hu/patgate"
	"go.pilab.hu/patgate/domain"
)

// MemoryClaimsStore implements ClaimsStore using ttlcache.
type MemoryClaimsStore struct {
	cache *ttlcache.Cache[string, *domain.Principal]
}

// NewMemoryClaimsStore creates a new in-memory claims store with
// automatic expiry cleanup.
func NewMemoryClaimsStore(defaultTTL time.Duration) *MemoryClaimsStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *domain.Principal](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, *domain.Principal](),
	)

	go cache.Start()

	return &MemoryClaimsStore{
		cache: cache,
	}
}

// Set implements ClaimsStore.Set.
func (s *MemoryClaimsStore) Set(_ context.Context, rawToken string, principal *domain.Principal, ttl time.Duration) error {
	s.cache.Set(patgate.HashSecret(rawToken), principal, ttl)
	return nil
}

// Get implements ClaimsStore.Get.
func (s *MemoryClaimsStore) Get(_ context.Context, rawToken string) (*domain.Principal, bool) {
	item := s.cache.Get(patgate.HashSecret(rawToken))
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Delete implements ClaimsStore.Delete.
func (s *MemoryClaimsStore) Delete(_ context.Context, rawToken string) error {
	s.cache.Delete(patgate.HashSecret(rawToken))
	return nil
}

// Stop halts the background cleanup goroutine.
func (s *MemoryClaimsStore) Stop() {
	s.cache.Stop()
}

var _ ClaimsStore = (*MemoryClaimsStore)(nil)
