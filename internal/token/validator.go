package token

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/calctoken/internal/calculation"
)

// Registry looks up persisted registrations by name.
type Registry interface {
	// FindByName returns the registration with the given name, or nil
	// when none exists.
	FindByName(ctx context.Context, name string) (*Registration, error)
}

// Resolver turns a provider/calculation pair into a calculation.
// *calculation.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, providerClassName, calculationName string) (calculation.Calculation, error)
}

// Validator checks token registrations before they are persisted.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	registry Registry
	resolver Resolver
}

// NewValidator creates a validator that checks uniqueness against registry
// and resolvability against resolver.
func NewValidator(registry Registry, resolver Resolver) *Validator {
	return &Validator{registry: registry, resolver: resolver}
}

// Validate evaluates every rule against candidate and records violations in
// errs. Rules run in a fixed order and never short-circuit:
//
//  1. name is required
//  2. providerClassName is required
//  3. calculationName is required
//  4. name must not belong to a different persisted registration
//  5. the provider/calculation pair must resolve
//
// The resolution check runs even when the fields it needs are blank, so a
// blank provider produces both a required error and a resolution error.
//
// The uniqueness check reads the registry without locking; concurrent
// registrations of the same name can both pass. Storage enforces the final
// constraint.
func (v *Validator) Validate(ctx context.Context, candidate Registration, errs ErrorSink) {
	if isBlank(candidate.Name) {
		errs.RejectValue(FieldName, CodeRequired, "name is required")
	}
	if isBlank(candidate.ProviderClassName) {
		errs.RejectValue(FieldProviderClassName, CodeRequired, "provider class name is required")
	}
	if isBlank(candidate.CalculationName) {
		errs.RejectValue(FieldCalculationName, CodeRequired, "calculation name is required")
	}

	if !isBlank(candidate.Name) {
		v.checkUnique(ctx, candidate, errs)
	}

	v.checkResolvable(ctx, candidate, errs)
}

// checkUnique looks up the trimmed name, which is the form stores persist.
func (v *Validator) checkUnique(ctx context.Context, candidate Registration, errs ErrorSink) {
	name := strings.TrimSpace(candidate.Name)
	existing, err := v.findByName(ctx, name)
	if err != nil {
		slog.WarnContext(ctx, "token name lookup failed", "name", name, "error", err)
		errs.Reject(CodeLookupFailed, fmt.Sprintf("could not check whether token name %q is unique: %v", name, err))
		return
	}

	if existing != nil && !existing.SameIdentity(candidate) {
		errs.RejectValue(FieldName, CodeDuplicate, fmt.Sprintf("token name %q is already registered", name))
	}
}

func (v *Validator) checkResolvable(ctx context.Context, candidate Registration, errs ErrorSink) {
	if err := v.resolve(ctx, candidate); err != nil {
		errs.Reject(CodeUnresolvable, err.Error())
	}
}

// findByName shields the validator from registry panics.
func (v *Validator) findByName(ctx context.Context, name string) (reg *Registration, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg, err = nil, fmt.Errorf("registry panic: %v", rec)
		}
	}()
	return v.registry.FindByName(ctx, name)
}

// resolve converts any resolver fault, including a panic, into an error.
func (v *Validator) resolve(ctx context.Context, candidate Registration) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("calculation %q from provider %q could not be resolved: %v",
				candidate.CalculationName, candidate.ProviderClassName, rec)
		}
	}()

	calc, err := v.resolver.Resolve(ctx, candidate.ProviderClassName, candidate.CalculationName)
	if err != nil {
		return err
	}
	if calc == nil {
		return fmt.Errorf("calculation %q from provider %q could not be resolved",
			candidate.CalculationName, candidate.ProviderClassName)
	}
	return nil
}
