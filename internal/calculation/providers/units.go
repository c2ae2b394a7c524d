package providers

import "github.com/JonMunkholm/calctoken/internal/calculation"

// UnitProviderName is the identifier of the unit conversion provider.
const UnitProviderName = "org.openmrs.calculation.UnitProvider"

func init() {
	calculation.Register(UnitProviderName, newUnitProvider)
}

func newUnitProvider() (calculation.Provider, error) {
	return &catalog{
		name: UnitProviderName,
		calcs: map[string]func() calculation.Calculation{
			"KgToLb": func() calculation.Calculation { return conversion("KgToLb", "kg", "lb", 2.20462262) },
			"CmToIn": func() calculation.Calculation { return conversion("CmToIn", "cm", "in", 1/2.54) },
		},
	}, nil
}

func conversion(name, from, to string, factor float64) calculation.Calculation {
	return &formula{
		name:   name,
		params: []calculation.Parameter{required("value", from)},
		unit:   to,
		fn: func(p map[string]float64) (float64, error) {
			return p["value"] * factor, nil
		},
	}
}
