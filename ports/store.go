package ports

import (
	"context"
	"errors"
	"time"

	"github.com/layer-3/storefront/core"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// IdentityStore is the system of record for wallet identities.
// Addresses are passed already lower-cased.
type IdentityStore interface {
	FindByAddress(ctx context.Context, address string) (*core.Identity, error)
	CreateIdentity(ctx context.Context, address string, lastLogin time.Time) (*core.Identity, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	Ping(ctx context.Context) error
}

// NonceStore records consumed challenge nonces for replay protection
type NonceStore interface {
	// Consume marks nonce as used for ttl. It reports false if the nonce was already used.
	Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error)

	// Release forgets a consumed nonce so the same challenge can be verified again
	Release(ctx context.Context, nonce string) error
}
