package providers

import (
	"context"
	"fmt"
	"math"

	"github.com/JonMunkholm/calctoken/internal/calculation"
)

// formula is a Calculation defined by its parameters and a function.
type formula struct {
	name   string
	params []calculation.Parameter
	unit   string
	fn     func(p map[string]float64) (float64, error)
}

func (f *formula) Name() string                        { return f.name }
func (f *formula) Parameters() []calculation.Parameter { return f.params }

func (f *formula) Evaluate(ctx context.Context, params map[string]float64) (calculation.Result, error) {
	if err := ctx.Err(); err != nil {
		return calculation.Result{}, err
	}
	if err := calculation.RequireParams(f, params); err != nil {
		return calculation.Result{}, err
	}

	v, err := f.fn(params)
	if err != nil {
		return calculation.Result{}, fmt.Errorf("%s: %w", f.name, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return calculation.Result{}, fmt.Errorf("%s: result is not a finite number", f.name)
	}
	return calculation.Result{Value: round(v, 2), Unit: f.unit}, nil
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func positive(params map[string]float64, names ...string) error {
	for _, n := range names {
		if params[n] <= 0 {
			return fmt.Errorf("parameter %q must be positive", n)
		}
	}
	return nil
}

func required(name, unit string) calculation.Parameter {
	return calculation.Parameter{Name: name, Unit: unit, Required: true}
}
