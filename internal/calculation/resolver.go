package calculation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Resolver turns provider/calculation pairs into calculation instances
// using the factories in a Registry.
type Resolver struct {
	registry *Registry
}

// NewResolver creates a resolver backed by registry.
// A nil registry means the default registry.
func NewResolver(registry *Registry) *Resolver {
	if registry == nil {
		registry = defaultRegistry
	}
	return &Resolver{registry: registry}
}

// Resolve locates the provider and instantiates the named calculation.
// It never panics: every failure, including a panic inside provider code,
// comes back as a *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, providerName, calculationName string) (Calculation, error) {
	providerName = strings.TrimSpace(providerName)
	calculationName = strings.TrimSpace(calculationName)

	if providerName == "" {
		return nil, &ResolutionError{Reason: ReasonProviderNotFound}
	}

	factory, ok := r.registry.Factory(providerName)
	if !ok {
		return nil, &ResolutionError{Provider: providerName, Calculation: calculationName, Reason: ReasonProviderNotFound}
	}

	provider, err := buildProvider(factory)
	if err != nil {
		return nil, &ResolutionError{Provider: providerName, Calculation: calculationName, Reason: ReasonProviderInstantiation, Err: err}
	}

	calcs, err := listCalculations(provider)
	if err != nil {
		return nil, &ResolutionError{Provider: providerName, Calculation: calculationName, Reason: ReasonProviderInstantiation, Err: err}
	}
	if calculationName == "" || !slices.Contains(calcs, calculationName) {
		return nil, &ResolutionError{Provider: providerName, Calculation: calculationName, Reason: ReasonCalculationNotFound}
	}

	calc, err := buildCalculation(provider, calculationName)
	if err != nil {
		return nil, &ResolutionError{Provider: providerName, Calculation: calculationName, Reason: ReasonCalculationInstantiation, Err: err}
	}

	slog.DebugContext(ctx, "calculation resolved", "provider", providerName, "calculation", calculationName)
	return calc, nil
}

// Providers describes every registered provider that can be instantiated.
// Providers whose factory fails are skipped and logged.
func (r *Resolver) Providers(ctx context.Context) []ProviderInfo {
	names := r.registry.Names()
	infos := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		factory, ok := r.registry.Factory(name)
		if !ok {
			continue
		}
		provider, err := buildProvider(factory)
		if err != nil {
			slog.WarnContext(ctx, "skipping provider", "provider", name, "error", err)
			continue
		}
		calcs, err := listCalculations(provider)
		if err != nil {
			slog.WarnContext(ctx, "skipping provider", "provider", name, "error", err)
			continue
		}
		calcs = slices.Clone(calcs)
		slices.Sort(calcs)
		infos = append(infos, ProviderInfo{Name: name, Calculations: calcs})
	}
	return infos
}

func buildProvider(factory ProviderFactory) (p Provider, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()

	p, err = factory()
	if err == nil && p == nil {
		err = fmt.Errorf("factory returned no provider")
	}
	return p, err
}

func listCalculations(p Provider) (names []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			names, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	return p.Calculations(), nil
}

func buildCalculation(p Provider, name string) (c Calculation, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			c, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()

	c, err = p.NewCalculation(name)
	if err == nil && c == nil {
		err = fmt.Errorf("provider returned no calculation")
	}
	return c, err
}
