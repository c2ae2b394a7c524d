// Package providers registers the built-in calculation providers with the
// default calculation registry.
// Import this package to ensure all providers are registered.
package providers

import (
	"fmt"
	"sort"

	"github.com/JonMunkholm/calctoken/internal/calculation"
)

// catalog is a Provider backed by a fixed set of calculation constructors.
type catalog struct {
	name  string
	calcs map[string]func() calculation.Calculation
}

func (c *catalog) Name() string { return c.name }

func (c *catalog) Calculations() []string {
	names := make([]string, 0, len(c.calcs))
	for name := range c.calcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *catalog) NewCalculation(name string) (calculation.Calculation, error) {
	build, ok := c.calcs[name]
	if !ok {
		return nil, fmt.Errorf("%s has no calculation %q", c.name, name)
	}
	return build(), nil
}
