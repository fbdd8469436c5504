package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/storefront/core"
	"github.com/layer-3/storefront/pkg/idx"
	"github.com/layer-3/storefront/ports"
)

// MemoryIdentityStore is an in-memory implementation of ports.IdentityStore
type MemoryIdentityStore struct {
	byAddress map[string]*core.Identity
	byID      map[string]*core.Identity
	mu        sync.RWMutex
}

// NewMemoryIdentityStore creates a new in-memory identity store
func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{
		byAddress: make(map[string]*core.Identity),
		byID:      make(map[string]*core.Identity),
	}
}

var _ ports.IdentityStore = (*MemoryIdentityStore)(nil)

// FindByAddress returns a copy of the identity registered for address
func (s *MemoryIdentityStore) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.byAddress[address]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *identity
	return &cp, nil
}

// CreateIdentity inserts a new identity, failing if the address is taken
func (s *MemoryIdentityStore) CreateIdentity(ctx context.Context, address string, lastLogin time.Time) (*core.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byAddress[address]; ok {
		return nil, ports.ErrAlreadyExists
	}

	identity := &core.Identity{
		ID:        idx.New().String(),
		Address:   address,
		LastLogin: lastLogin,
		CreatedAt: lastLogin,
	}
	s.byAddress[address] = identity
	s.byID[identity.ID] = identity

	cp := *identity
	return &cp, nil
}

// UpdateLastLogin sets the last login timestamp of identity id
func (s *MemoryIdentityStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byID[id]
	if !ok {
		return ports.ErrNotFound
	}
	identity.LastLogin = at
	return nil
}

// Ping always succeeds
func (s *MemoryIdentityStore) Ping(ctx context.Context) error {
	return nil
}

// MemoryNonceStore is an in-memory implementation of ports.NonceStore.
// Expired entries are swept lazily on Consume.
type MemoryNonceStore struct {
	used map[string]time.Time
	mu   sync.Mutex
	now  func() time.Time
}

// NewMemoryNonceStore creates a new in-memory nonce store
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		used: make(map[string]time.Time),
		now:  time.Now,
	}
}

var _ ports.NonceStore = (*MemoryNonceStore)(nil)

// Consume marks nonce as used until ttl elapses
func (s *MemoryNonceStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for n, expiry := range s.used {
		if !now.Before(expiry) {
			delete(s.used, n)
		}
	}

	if _, ok := s.used[nonce]; ok {
		return false, nil
	}
	s.used[nonce] = now.Add(ttl)
	return true, nil
}

// Release drops nonce from the used set
func (s *MemoryNonceStore) Release(ctx context.Context, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.used, nonce)
	return nil
}
