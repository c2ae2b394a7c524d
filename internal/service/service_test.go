package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/JonMunkholm/calctoken/internal/calculation"
	"github.com/JonMunkholm/calctoken/internal/calculation/providers"
	"github.com/JonMunkholm/calctoken/internal/store"
	"github.com/JonMunkholm/calctoken/internal/token"
)

// countingStore counts FindByName calls and can hide existing rows from
// them to simulate a registration racing past validation.
type countingStore struct {
	store.Store
	finds atomic.Int32
	blind bool
}

func (c *countingStore) FindByName(ctx context.Context, name string) (*token.Registration, error) {
	c.finds.Add(1)
	if c.blind {
		return nil, nil
	}
	return c.Store.FindByName(ctx, name)
}

func newTestStore(t *testing.T) *countingStore {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "tokens.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(context.Background()))
	return &countingStore{Store: s}
}

func newTestService(t *testing.T, opts Options) (*Service, *countingStore) {
	t.Helper()
	st := newTestStore(t)
	return New(st, calculation.NewResolver(nil), opts), st
}

func bmiToken() token.Registration {
	return token.Registration{
		Name:              "BMI",
		ProviderClassName: providers.ClinicalProviderName,
		CalculationName:   "Bmi",
	}
}

func requireInvalid(t *testing.T, err error, field, code string) {
	t.Helper()
	var invalid *token.InvalidError
	require.ErrorAs(t, err, &invalid)
	for _, ve := range invalid.Errors {
		if ve.Field == field && ve.Code == code {
			return
		}
	}
	t.Fatalf("no %s/%s error in %v", field, code, invalid.Errors)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Options{})

	created, err := svc.Register(ctx, bmiToken())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	t.Run("duplicate name rejected", func(t *testing.T) {
		_, err := svc.Register(ctx, bmiToken())
		requireInvalid(t, err, token.FieldName, token.CodeDuplicate)
	})

	t.Run("client supplied id is ignored", func(t *testing.T) {
		reg := bmiToken()
		reg.ID = created.ID
		_, err := svc.Register(ctx, reg)
		requireInvalid(t, err, token.FieldName, token.CodeDuplicate)
	})

	t.Run("invalid registration not stored", func(t *testing.T) {
		_, err := svc.Register(ctx, token.Registration{Name: "Broken", ProviderClassName: "com.example.Missing", CalculationName: "X"})
		requireInvalid(t, err, "", token.CodeUnresolvable)

		_, err = svc.GetByName(ctx, "Broken")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestRegister_StorageDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, Options{})

	_, err := svc.Register(ctx, bmiToken())
	require.NoError(t, err)

	st.blind = true
	_, err = svc.Register(ctx, bmiToken())
	requireInvalid(t, err, token.FieldName, token.CodeDuplicate)
	require.Equal(t, "TOK003", MapError(err).Code)
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Options{})

	errs := svc.Check(ctx, token.Registration{})
	require.Equal(t, 4, errs.Len())

	errs = svc.Check(ctx, bmiToken())
	require.False(t, errs.HasErrors())

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list, "Check must not persist")
}

func TestCheck_PaddedNameAgreesWithRegister(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Options{})

	_, err := svc.Register(ctx, bmiToken())
	require.NoError(t, err)

	padded := bmiToken()
	padded.Name = " BMI "

	errs := svc.Check(ctx, padded)
	require.True(t, errs.HasFieldError(token.FieldName, token.CodeDuplicate), "got %v", errs.All())

	_, err = svc.Register(ctx, padded)
	requireInvalid(t, err, token.FieldName, token.CodeDuplicate)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Options{})

	bmi, err := svc.Register(ctx, bmiToken())
	require.NoError(t, err)
	other, err := svc.Register(ctx, token.Registration{
		Name:              "WeightLb",
		ProviderClassName: providers.UnitProviderName,
		CalculationName:   "KgToLb",
	})
	require.NoError(t, err)

	t.Run("keeping own name is allowed", func(t *testing.T) {
		reg := *bmi
		reg.Description = "body mass index"
		updated, err := svc.Update(ctx, bmi.ID, reg)
		require.NoError(t, err)
		require.Equal(t, "body mass index", updated.Description)
	})

	t.Run("taking another token's name is rejected", func(t *testing.T) {
		reg := *other
		reg.Name = "BMI"
		_, err := svc.Update(ctx, other.ID, reg)
		requireInvalid(t, err, token.FieldName, token.CodeDuplicate)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.Update(ctx, uuid.New(), bmiToken())
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Options{CacheTTL: time.Minute})

	bmi, err := svc.Register(ctx, bmiToken())
	require.NoError(t, err)

	_, err = svc.GetByName(ctx, "BMI")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, bmi.ID))
	require.ErrorIs(t, svc.Delete(ctx, bmi.ID), store.ErrNotFound)

	_, err = svc.GetByName(ctx, "BMI")
	require.ErrorIs(t, err, store.ErrNotFound, "delete must invalidate the cache")
}

func TestGetByName_Caching(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, Options{CacheTTL: time.Minute})

	bmi, err := svc.Register(ctx, bmiToken())
	require.NoError(t, err)

	st.finds.Store(0)
	for range 3 {
		got, err := svc.GetByName(ctx, " BMI ")
		require.NoError(t, err)
		require.Equal(t, bmi.ID, got.ID)
	}
	require.EqualValues(t, 1, st.finds.Load())

	reg := *bmi
	reg.Name = "BodyMassIndex"
	_, err = svc.Update(ctx, bmi.ID, reg)
	require.NoError(t, err)

	_, err = svc.GetByName(ctx, "BMI")
	require.ErrorIs(t, err, store.ErrNotFound, "update must invalidate the old name")
}

func TestGetByName_NoCache(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, Options{})

	_, err := svc.Register(ctx, bmiToken())
	require.NoError(t, err)

	st.finds.Store(0)
	for range 3 {
		_, err := svc.GetByName(ctx, "BMI")
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, st.finds.Load())
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Options{CacheTTL: time.Minute})

	_, err := svc.Register(ctx, bmiToken())
	require.NoError(t, err)

	got, err := svc.Evaluate(ctx, "BMI", map[string]float64{"weight": 70, "height": 175})
	require.NoError(t, err)
	require.Equal(t, "BMI", got.Token)
	require.Equal(t, "Bmi", got.CalculationName)
	require.InDelta(t, 22.86, got.Result.Value, 0.001)

	_, err = svc.Evaluate(ctx, "BMI", map[string]float64{"weight": 70})
	require.ErrorIs(t, err, ErrEvaluationFailed)
	require.Equal(t, "CALC002", MapError(err).Code)

	_, err = svc.Evaluate(ctx, "Missing", nil)
	require.ErrorIs(t, err, store.ErrNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.Evaluate(cancelled, "BMI", map[string]float64{"weight": 70, "height": 175})
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestProviders(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	names := make([]string, 0)
	for _, p := range svc.Providers(context.Background()) {
		names = append(names, p.Name)
	}
	require.Contains(t, names, providers.ClinicalProviderName)
	require.Contains(t, names, providers.UnitProviderName)
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	svc, _ := newTestService(t, Options{Tracer: tp.Tracer("test")})
	ctx := context.Background()

	_, err := svc.Register(ctx, bmiToken())
	require.NoError(t, err)
	_, err = svc.Register(ctx, bmiToken())
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "token.Register", spans[0].Name())
	require.Empty(t, spans[0].Events())
	require.NotEmpty(t, spans[1].Events(), "failed register records the error")
}
