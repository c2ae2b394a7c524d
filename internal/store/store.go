// Package store persists token registrations.
//
// Two backends implement [Store]: PostgreSQL through pgx for production
// and SQLite for local use and tests. Both enforce name uniqueness with a
// unique index, which is the final guard behind the validator's
// best-effort pre-write check.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/calctoken/internal/config"
	"github.com/JonMunkholm/calctoken/internal/token"
)

var (
	// ErrNotFound is returned when no registration matches the given ID.
	ErrNotFound = errors.New("token registration not found")

	// ErrDuplicateName is returned when a write violates the unique name index.
	ErrDuplicateName = errors.New("token name already exists")
)

// Store is the persistence contract for token registrations.
type Store interface {
	token.Registry

	Get(ctx context.Context, id uuid.UUID) (*token.Registration, error)
	List(ctx context.Context) ([]token.Registration, error)

	// Create assigns an ID and timestamps, persists reg and returns the
	// stored copy.
	Create(ctx context.Context, reg token.Registration) (*token.Registration, error)

	// Update overwrites the registration with reg.ID.
	Update(ctx context.Context, reg token.Registration) (*token.Registration, error)

	Delete(ctx context.Context, id uuid.UUID) error

	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	Close()
}

// Options tune name matching for both backends.
type Options struct {
	// CaseInsensitiveNames makes FindByName and the unique index ignore
	// letter case. Default is exact, case-sensitive matching.
	CaseInsensitiveNames bool
}

// Open connects to the backend named by driver ("postgres" or "sqlite").
func Open(ctx context.Context, driver, url string, opts Options) (Store, error) {
	switch driver {
	case "postgres", "":
		pg, err := OpenPostgres(ctx, url, opts)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "sqlite":
		lite, err := OpenSQLite(url, opts)
		if err != nil {
			return nil, err
		}
		return lite, nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", driver)
	}
}

// OpenFromConfig opens the configured backend, applying pool settings for
// postgres.
func OpenFromConfig(ctx context.Context, cfg config.DatabaseConfig, opts Options) (Store, error) {
	if cfg.Driver == "sqlite" {
		return Open(ctx, cfg.Driver, cfg.URL, opts)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return NewPostgres(pool, opts), nil
}
