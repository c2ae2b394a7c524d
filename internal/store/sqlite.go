package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/JonMunkholm/calctoken/internal/token"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS token_registrations (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	provider_class_name TEXT NOT NULL,
	calculation_name    TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	created_at          TEXT NOT NULL,
	updated_at          TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS token_registrations_name_key ON token_registrations (name);
`

const sqliteCaseInsensitiveIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS token_registrations_name_nocase_key ON token_registrations (name COLLATE NOCASE);
`

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db   *sql.DB
	opts Options
}

// OpenSQLite opens (creating if needed) the database at path.
// Use ":memory:" only with a single connection; the pool is capped at one.
func OpenSQLite(path string, opts Options) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLite{db: db, opts: opts}, nil
}

// Migrate creates the registrations table and its indexes.
func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if s.opts.CaseInsensitiveNames {
		if _, err := s.db.ExecContext(ctx, sqliteCaseInsensitiveIndex); err != nil {
			return fmt.Errorf("migrate case-insensitive index: %w", err)
		}
	}
	return nil
}

// FindByName returns the registration named name, or nil if none exists.
func (s *SQLite) FindByName(ctx context.Context, name string) (*token.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM token_registrations WHERE name = ?`
	if s.opts.CaseInsensitiveNames {
		query += ` COLLATE NOCASE`
	}

	reg, err := scanSQLiteRegistration(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	return reg, nil
}

// Get returns the registration with the given ID.
func (s *SQLite) Get(ctx context.Context, id uuid.UUID) (*token.Registration, error) {
	reg, err := scanSQLiteRegistration(s.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM token_registrations WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// List returns all registrations ordered by name.
func (s *SQLite) List(ctx context.Context) ([]token.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+registrationColumns+` FROM token_registrations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]token.Registration, 0)
	for rows.Next() {
		reg, err := scanSQLiteRegistration(rows)
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
func (s *SQLite) Create(ctx context.Context, reg token.Registration) (*token.Registration, error) {
	reg = reg.Normalized()
	reg.ID = uuid.New()
	now := time.Now().UTC()
	reg.CreatedAt, reg.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_registrations (`+registrationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		reg.ID.String(), reg.Name, reg.ProviderClassName, reg.CalculationName, reg.Description,
		formatTime(reg.CreatedAt), formatTime(reg.UpdatedAt),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, reg.Name)
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}
	return &reg, nil
}

// Update overwrites the mutable fields of the registration with reg.ID.
func (s *SQLite) Update(ctx context.Context, reg token.Registration) (*token.Registration, error) {
	reg = reg.Normalized()

	res, err := s.db.ExecContext(ctx, `
		UPDATE token_registrations
		SET name = ?, provider_class_name = ?, calculation_name = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		reg.Name, reg.ProviderClassName, reg.CalculationName, reg.Description,
		formatTime(time.Now().UTC()), reg.ID.String(),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, reg.Name)
		}
		return nil, fmt.Errorf("update registration: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, reg.ID)
}

// Delete removes the registration with the given ID.
func (s *SQLite) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM token_registrations WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() {
	s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRegistration(row rowScanner) (*token.Registration, error) {
	var (
		id                   string
		reg                  token.Registration
		createdAt, updatedAt string
	)

	err := row.Scan(&id, &reg.Name, &reg.ProviderClassName, &reg.CalculationName,
		&reg.Description, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if reg.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", id, err)
	}
	reg.CreatedAt = parseTime(createdAt)
	reg.UpdatedAt = parseTime(updatedAt)
	return &reg, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isSQLiteUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
