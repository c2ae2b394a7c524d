// Package service coordinates validation, persistence and evaluation of
// calculation tokens.
//
// Register and Update always validate first and persist only when the
// validator reports nothing. The storage unique index backs up the
// validator's uniqueness check; a violation detected there is reported the
// same way as one found during validation.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JonMunkholm/calctoken/internal/cachemanager"
	"github.com/JonMunkholm/calctoken/internal/calculation"
	"github.com/JonMunkholm/calctoken/internal/logging"
	"github.com/JonMunkholm/calctoken/internal/store"
	"github.com/JonMunkholm/calctoken/internal/tracing"
	"github.com/JonMunkholm/calctoken/internal/token"
)

// ErrEvaluationFailed wraps errors returned by a calculation's Evaluate.
var ErrEvaluationFailed = errors.New("calculation evaluation failed")

// Options configures a Service.
type Options struct {
	// CacheTTL controls how long GetByName and Evaluate reuse a lookup.
	// Zero disables caching.
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration

	// CaseInsensitiveNames must match the store's setting so cache keys
	// fold the same way as lookups.
	CaseInsensitiveNames bool

	// Tracer defaults to a no-op tracer.
	Tracer trace.Tracer
}

// Evaluation is the outcome of running a token's calculation.
type Evaluation struct {
	Token             string             `json:"token"`
	ProviderClassName string             `json:"providerClassName"`
	CalculationName   string             `json:"calculationName"`
	Result            calculation.Result `json:"result"`
}

// Service is safe for concurrent use.
type Service struct {
	store     store.Store
	resolver  *calculation.Resolver
	validator *token.Validator
	tracer    trace.Tracer

	byName          *cachemanager.ReadThroughCache[string, token.Registration, string]
	cacheTTL        time.Duration
	caseInsensitive bool
}

// New wires a service over st. A nil resolver uses the default provider
// registry.
func New(st store.Store, resolver *calculation.Resolver, opts Options) *Service {
	if resolver == nil {
		resolver = calculation.NewResolver(nil)
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	cleanup := opts.CacheCleanupInterval
	if cleanup <= 0 {
		cleanup = cachemanager.DefaultCleanupInterval
	}

	s := &Service{
		store:           st,
		resolver:        resolver,
		validator:       token.NewValidator(st, resolver),
		tracer:          opts.Tracer,
		cacheTTL:        opts.CacheTTL,
		caseInsensitive: opts.CaseInsensitiveNames,
	}

	cache := cachemanager.NewInMemoryCacheManager[string, token.Registration]("token-by-name", opts.CacheTTL, cleanup)
	s.byName = cachemanager.NewReadThroughCache(cache, s.loadByName, opts.CacheTTL <= 0)
	return s
}

// Providers lists the registered calculation providers.
func (s *Service) Providers(ctx context.Context) []calculation.ProviderInfo {
	return s.resolver.Providers(ctx)
}

// Check validates reg without persisting it.
func (s *Service) Check(ctx context.Context, reg token.Registration) *token.Errors {
	ctx, span := s.tracer.Start(ctx, "token.Check", trace.WithAttributes(attribute.String("token.name", reg.Name)))
	defer span.End()

	errs := token.NewErrors()
	s.validator.Validate(ctx, reg, errs)
	span.SetAttributes(attribute.Int("validation.errors", errs.Len()))
	return errs
}

// Register validates and stores a new registration. Any ID on reg is
// ignored; the store assigns one.
func (s *Service) Register(ctx context.Context, reg token.Registration) (*token.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "token.Register", trace.WithAttributes(attribute.String("token.name", reg.Name)))
	defer span.End()

	reg.ID = uuid.Nil
	if err := s.validate(ctx, reg); err != nil {
		return nil, endSpan(span, err)
	}

	created, err := s.store.Create(ctx, reg)
	if err != nil {
		return nil, endSpan(span, storeWriteError(reg.Name, err))
	}

	s.byName.Invalidate(ctx, s.cacheKey(created.Name))
	logging.WithFields(ctx, "token", created.Name, "id", created.ID).Info("token registered")
	return created, nil
}

// Update validates reg as a change to the registration with id and stores
// it. Keeping the same name is not a conflict.
func (s *Service) Update(ctx context.Context, id uuid.UUID, reg token.Registration) (*token.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "token.Update", trace.WithAttributes(
		attribute.String("token.id", id.String()),
		attribute.String("token.name", reg.Name),
	))
	defer span.End()

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, endSpan(span, err)
	}

	reg.ID = id
	if err := s.validate(ctx, reg); err != nil {
		return nil, endSpan(span, err)
	}

	updated, err := s.store.Update(ctx, reg)
	if err != nil {
		return nil, endSpan(span, storeWriteError(reg.Name, err))
	}

	s.byName.Invalidate(ctx, s.cacheKey(existing.Name), s.cacheKey(updated.Name))
	logging.WithFields(ctx, "token", updated.Name, "id", updated.ID).Info("token updated")
	return updated, nil
}

// Get returns the registration with id or store.ErrNotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*token.Registration, error) {
	return s.store.Get(ctx, id)
}

// GetByName returns the registration named name or store.ErrNotFound.
func (s *Service) GetByName(ctx context.Context, name string) (*token.Registration, error) {
	name = strings.TrimSpace(name)
	reg, err := s.byName.Get(ctx, s.cacheKey(name), name, s.cacheTTL)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// List returns every registration ordered by name.
func (s *Service) List(ctx context.Context) ([]token.Registration, error) {
	return s.store.List(ctx)
}

// Delete removes the registration with id.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.byName.Invalidate(ctx, s.cacheKey(existing.Name))
	logging.WithFields(ctx, "token", existing.Name, "id", id).Info("token deleted")
	return nil
}

// Evaluate runs the calculation bound to the token named name.
func (s *Service) Evaluate(ctx context.Context, name string, params map[string]float64) (*Evaluation, error) {
	ctx, span := s.tracer.Start(ctx, "token.Evaluate", trace.WithAttributes(attribute.String("token.name", name)))
	defer span.End()

	reg, err := s.GetByName(ctx, name)
	if err != nil {
		return nil, endSpan(span, err)
	}

	calc, err := s.resolver.Resolve(ctx, reg.ProviderClassName, reg.CalculationName)
	if err != nil {
		return nil, endSpan(span, err)
	}

	result, err := calc.Evaluate(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, endSpan(span, ctxErr)
		}
		return nil, endSpan(span, fmt.Errorf("%w: %w", ErrEvaluationFailed, err))
	}

	span.SetAttributes(attribute.Float64("calculation.result", result.Value))
	return &Evaluation{
		Token:             reg.Name,
		ProviderClassName: reg.ProviderClassName,
		CalculationName:   reg.CalculationName,
		Result:            result,
	}, nil
}

func (s *Service) validate(ctx context.Context, reg token.Registration) error {
	errs := token.NewErrors()
	s.validator.Validate(ctx, reg, errs)
	if errs.HasErrors() {
		logging.WithFields(ctx, "token", reg.Name).Debug("token registration rejected", "errors", errs.Len())
	}
	return errs.Err()
}

func (s *Service) loadByName(ctx context.Context, name string) (token.Registration, error) {
	reg, err := s.store.FindByName(ctx, name)
	if err != nil {
		return token.Registration{}, err
	}
	if reg == nil {
		return token.Registration{}, store.ErrNotFound
	}
	return *reg, nil
}

func (s *Service) cacheKey(name string) string {
	name = strings.TrimSpace(name)
	if s.caseInsensitive {
		return strings.ToLower(name)
	}
	return name
}

// storeWriteError reports a unique index violation as a duplicate name
// validation failure.
func storeWriteError(name string, err error) error {
	if errors.Is(err, store.ErrDuplicateName) {
		return &token.InvalidError{Errors: []token.ValidationError{{
			Field:   token.FieldName,
			Code:    token.CodeDuplicate,
			Message: fmt.Sprintf("token name %q is already registered", strings.TrimSpace(name)),
		}}}
	}
	return err
}

func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
