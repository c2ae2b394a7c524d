package calculation

import (
	"context"
	"fmt"
)

// Parameter describes a single numeric input a calculation expects.
type Parameter struct {
	Name     string `json:"name"`
	Unit     string `json:"unit,omitempty"`
	Required bool   `json:"required"`
}

// Result is the output of a calculation run.
type Result struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Calculation is a resolved, runnable computation.
type Calculation interface {
	Name() string
	Parameters() []Parameter
	Evaluate(ctx context.Context, params map[string]float64) (Result, error)
}

// Provider supplies one or more calculations by name.
type Provider interface {
	// Name returns the identifier the provider is registered under.
	Name() string

	// Calculations lists the calculation names this provider can build.
	Calculations() []string

	// NewCalculation instantiates the named calculation.
	NewCalculation(name string) (Calculation, error)
}

// ProviderFactory builds a provider instance.
type ProviderFactory func() (Provider, error)

// ProviderInfo describes a registered provider for listings.
type ProviderInfo struct {
	Name         string   `json:"name"`
	Calculations []string `json:"calculations"`
}

// RequireParams checks that every required parameter is present.
// Calculations use it at the top of Evaluate.
func RequireParams(c Calculation, params map[string]float64) error {
	for _, p := range c.Parameters() {
		if !p.Required {
			continue
		}
		if _, ok := params[p.Name]; !ok {
			return fmt.Errorf("%s: missing parameter %q", c.Name(), p.Name)
		}
	}
	return nil
}
