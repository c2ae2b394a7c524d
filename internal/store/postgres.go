package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/calctoken/internal/token"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS token_registrations (
	id                  UUID PRIMARY KEY,
	name                TEXT NOT NULL,
	provider_class_name TEXT NOT NULL,
	calculation_name    TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS token_registrations_name_key ON token_registrations (name);
`

const postgresCaseInsensitiveIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS token_registrations_name_lower_key ON token_registrations (lower(name));
`

const registrationColumns = `id, name, provider_class_name, calculation_name, description, created_at, updated_at`

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	db   DBTX
	opts Options
}

// NewPostgres wraps an existing pool. The caller owns pool configuration;
// Close closes the pool.
func NewPostgres(pool *pgxpool.Pool, opts Options) *Postgres {
	return &Postgres{pool: pool, db: pool, opts: opts}
}

// OpenPostgres parses url, connects and verifies the connection.
func OpenPostgres(ctx context.Context, url string, opts Options) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return NewPostgres(pool, opts), nil
}

// Migrate creates the registrations table and its indexes.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if p.opts.CaseInsensitiveNames {
		if _, err := p.db.Exec(ctx, postgresCaseInsensitiveIndex); err != nil {
			return fmt.Errorf("migrate case-insensitive index: %w", err)
		}
	}
	return nil
}

// FindByName returns the registration named name, or nil if none exists.
func (p *Postgres) FindByName(ctx context.Context, name string) (*token.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM token_registrations WHERE name = $1`
	if p.opts.CaseInsensitiveNames {
		query = `SELECT ` + registrationColumns + ` FROM token_registrations WHERE lower(name) = lower($1)`
	}

	reg, err := scanRegistration(p.db.QueryRow(ctx, query, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	return reg, nil
}

// Get returns the registration with the given ID.
func (p *Postgres) Get(ctx context.Context, id uuid.UUID) (*token.Registration, error) {
	reg, err := scanRegistration(p.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM token_registrations WHERE id = $1`, toPgUUID(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// List returns all registrations ordered by name.
func (p *Postgres) List(ctx context.Context) ([]token.Registration, error) {
	rows, err := p.db.Query(ctx, `SELECT `+registrationColumns+` FROM token_registrations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]token.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// Create inserts reg with a fresh ID.
func (p *Postgres) Create(ctx context.Context, reg token.Registration) (*token.Registration, error) {
	reg = reg.Normalized()
	reg.ID = uuid.New()

	created, err := scanRegistration(p.db.QueryRow(ctx, `
		INSERT INTO token_registrations (id, name, provider_class_name, calculation_name, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+registrationColumns,
		toPgUUID(reg.ID), reg.Name, reg.ProviderClassName, reg.CalculationName, reg.Description,
	))
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, reg.Name)
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}
	return created, nil
}

// Update overwrites the mutable fields of the registration with reg.ID.
func (p *Postgres) Update(ctx context.Context, reg token.Registration) (*token.Registration, error) {
	reg = reg.Normalized()

	updated, err := scanRegistration(p.db.QueryRow(ctx, `
		UPDATE token_registrations
		SET name = $2, provider_class_name = $3, calculation_name = $4, description = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+registrationColumns,
		toPgUUID(reg.ID), reg.Name, reg.ProviderClassName, reg.CalculationName, reg.Description,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, reg.Name)
		}
		return nil, fmt.Errorf("update registration: %w", err)
	}
	return updated, nil
}

// Delete removes the registration with the given ID.
func (p *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM token_registrations WHERE id = $1`, toPgUUID(id))
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// scanRegistration scans a single row in registrationColumns order.
func scanRegistration(row pgx.Row) (*token.Registration, error) {
	var (
		id        pgtype.UUID
		reg       token.Registration
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(&id, &reg.Name, &reg.ProviderClassName, &reg.CalculationName,
		&reg.Description, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if id.Valid {
		reg.ID = uuid.UUID(id.Bytes)
	}
	reg.CreatedAt = createdAt.Time
	reg.UpdatedAt = updatedAt.Time
	return &reg, nil
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: id != uuid.Nil}
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// compile-time interface checks
var (
	_ Store = (*Postgres)(nil)
	_ Store = (*SQLite)(nil)
)
