// Package sqlite persists wallet identities in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/storefront/core"
	"github.com/layer-3/storefront/pkg/idx"
	"github.com/layer-3/storefront/ports"
	_ "modernc.org/sqlite"
)

// Store is a SQLite implementation of ports.IdentityStore
type Store struct {
	db *sql.DB
}

var _ ports.IdentityStore = (*Store)(nil)

// NewStore opens the database at dsn. Call ApplyMigrations before use.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// An in-memory database only lives as long as its connection
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindByAddress returns the identity registered for address
func (s *Store) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, wallet_address, last_login, created_at FROM identities WHERE wallet_address = ?`,
		address,
	)

	var (
		identity             core.Identity
		lastLogin, createdAt string
	)
	if err := row.Scan(&identity.ID, &identity.Address, &lastLogin, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}

	var err error
	if identity.LastLogin, err = parseTime(lastLogin); err != nil {
		return nil, err
	}
	if identity.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &identity, nil
}

// CreateIdentity inserts a new identity with a ULID id
func (s *Store) CreateIdentity(ctx context.Context, address string, lastLogin time.Time) (*core.Identity, error) {
	identity := &core.Identity{
		ID:        idx.New().String(),
		Address:   address,
		LastLogin: lastLogin.UTC(),
		CreatedAt: lastLogin.UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identities (id, wallet_address, last_login, created_at) VALUES (?, ?, ?, ?)`,
		identity.ID, identity.Address, formatTime(identity.LastLogin), formatTime(identity.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ports.ErrAlreadyExists
		}
		return nil, err
	}

	return identity, nil
}

// UpdateLastLogin sets last_login for identity id
func (s *Store) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE identities SET last_login = ? WHERE id = ?`,
		formatTime(at.UTC()), id,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
