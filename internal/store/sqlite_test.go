package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/JonMunkholm/calctoken/internal/config"
	"github.com/JonMunkholm/calctoken/internal/token"
)

// setupSQLite creates a migrated database in a temp dir.
// The database is closed when the test completes.
func setupSQLite(t *testing.T, opts Options) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "tokens.db"), opts)
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func bmi() token.Registration {
	return token.Registration{
		Name:              "BMI",
		ProviderClassName: "org.openmrs.calculation.ClinicalProvider",
		CalculationName:   "Bmi",
		Description:       "body mass index",
	}
}

// testStoreContract exercises behavior every backend must share.
func testStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, token.Registration{
		Name:              "  BMI ",
		ProviderClassName: "org.openmrs.calculation.ClinicalProvider",
		CalculationName:   "Bmi",
	})
	require.NoError(t, err)
	require.False(t, created.IsNew(), "Create should assign an ID")
	require.Equal(t, "BMI", created.Name, "names are stored trimmed")
	require.False(t, created.CreatedAt.IsZero())

	found, err := s.FindByName(ctx, "BMI")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, created.ID, found.ID)

	missing, err := s.FindByName(ctx, "Nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	_, err = s.Create(ctx, bmi())
	require.ErrorIs(t, err, ErrDuplicateName)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Bmi", got.CalculationName)

	_, err = s.Get(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)

	got.Description = "updated"
	got.Name = "BodyMassIndex"
	updated, err := s.Update(ctx, *got)
	require.NoError(t, err)
	require.Equal(t, "BodyMassIndex", updated.Name)
	require.Equal(t, "updated", updated.Description)

	_, err = s.Update(ctx, token.Registration{ID: uuid.New(), Name: "x", ProviderClassName: "p", CalculationName: "c"})
	require.ErrorIs(t, err, ErrNotFound)

	second, err := s.Create(ctx, token.Registration{Name: "AAA", ProviderClassName: "p", CalculationName: "c"})
	require.NoError(t, err)

	second.Name = "BodyMassIndex"
	_, err = s.Update(ctx, *second)
	require.ErrorIs(t, err, ErrDuplicateName)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "AAA", all[0].Name)
	require.Equal(t, "BodyMassIndex", all[1].Name)

	require.NoError(t, s.Delete(ctx, second.ID))
	require.ErrorIs(t, s.Delete(ctx, second.ID), ErrNotFound)
}

func TestSQLite_Contract(t *testing.T) {
	testStoreContract(t, setupSQLite(t, Options{}))
}

func TestPostgres_Contract(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := OpenPostgres(ctx, url, Options{})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx))
	_, err = s.db.Exec(ctx, `TRUNCATE token_registrations`)
	require.NoError(t, err)

	testStoreContract(t, s)
}

func TestSQLite_NameMatching(t *testing.T) {
	ctx := context.Background()

	t.Run("case sensitive by default", func(t *testing.T) {
		s := setupSQLite(t, Options{})
		_, err := s.Create(ctx, bmi())
		require.NoError(t, err)

		found, err := s.FindByName(ctx, "bmi")
		require.NoError(t, err)
		require.Nil(t, found)

		_, err = s.Create(ctx, token.Registration{Name: "bmi", ProviderClassName: "p", CalculationName: "c"})
		require.NoError(t, err, "names differing only in case are distinct")
	})

	t.Run("case insensitive option", func(t *testing.T) {
		s := setupSQLite(t, Options{CaseInsensitiveNames: true})
		_, err := s.Create(ctx, bmi())
		require.NoError(t, err)

		found, err := s.FindByName(ctx, "bmi")
		require.NoError(t, err)
		require.NotNil(t, found)
		require.Equal(t, "BMI", found.Name)

		_, err = s.Create(ctx, token.Registration{Name: "bmi", ProviderClassName: "p", CalculationName: "c"})
		require.True(t, errors.Is(err, ErrDuplicateName))
	})
}

// TestSQLite_UniqueNames is a property-based test: whatever sequence of
// names is inserted, each distinct name is stored exactly once.
func TestSQLite_UniqueNames(t *testing.T) {
	s := setupSQLite(t, Options{})
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		_, err := s.db.ExecContext(ctx, `DELETE FROM token_registrations`)
		if err != nil {
			rt.Fatalf("reset: %v", err)
		}

		names := rapid.SliceOfN(rapid.StringMatching(`tok-[a-c]{1,2}`), 1, 12).Draw(rt, "names")
		distinct := make(map[string]bool)
		for _, name := range names {
			_, err := s.Create(ctx, token.Registration{Name: name, ProviderClassName: "p", CalculationName: "c"})
			switch {
			case distinct[name] && !errors.Is(err, ErrDuplicateName):
				rt.Fatalf("second insert of %q: want ErrDuplicateName, got %v", name, err)
			case !distinct[name] && err != nil:
				rt.Fatalf("first insert of %q: %v", name, err)
			}
			distinct[name] = true
		}

		all, err := s.List(ctx)
		if err != nil {
			rt.Fatalf("list: %v", err)
		}
		if len(all) != len(distinct) {
			rt.Fatalf("stored %d registrations, want %d", len(all), len(distinct))
		}
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "open.db")

	s, err := Open(ctx, "sqlite", path, Options{})
	require.NoError(t, err)
	s.Close()

	s, err = OpenFromConfig(ctx, config.DatabaseConfig{Driver: "sqlite", URL: path}, Options{})
	require.NoError(t, err)
	s.Close()

	_, err = Open(ctx, "mysql", "x", Options{})
	require.ErrorContains(t, err, "unknown database driver")
}
