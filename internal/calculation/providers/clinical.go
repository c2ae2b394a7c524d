package providers

import (
	"math"

	"github.com/JonMunkholm/calctoken/internal/calculation"
)

// ClinicalProviderName is the identifier of the clinical measurement provider.
const ClinicalProviderName = "org.openmrs.calculation.ClinicalProvider"

func init() {
	calculation.Register(ClinicalProviderName, newClinicalProvider)
}

func newClinicalProvider() (calculation.Provider, error) {
	return &catalog{
		name: ClinicalProviderName,
		calcs: map[string]func() calculation.Calculation{
			"Bmi":                  newBmi,
			"BodySurfaceArea":      newBodySurfaceArea,
			"MeanArterialPressure": newMeanArterialPressure,
		},
	}, nil
}

// newBmi computes body mass index from weight (kg) and height (cm).
func newBmi() calculation.Calculation {
	return &formula{
		name:   "Bmi",
		params: []calculation.Parameter{required("weight", "kg"), required("height", "cm")},
		unit:   "kg/m2",
		fn: func(p map[string]float64) (float64, error) {
			if err := positive(p, "weight", "height"); err != nil {
				return 0, err
			}
			m := p["height"] / 100
			return p["weight"] / (m * m), nil
		},
	}
}

// newBodySurfaceArea uses the Mosteller formula.
func newBodySurfaceArea() calculation.Calculation {
	return &formula{
		name:   "BodySurfaceArea",
		params: []calculation.Parameter{required("weight", "kg"), required("height", "cm")},
		unit:   "m2",
		fn: func(p map[string]float64) (float64, error) {
			if err := positive(p, "weight", "height"); err != nil {
				return 0, err
			}
			return math.Sqrt(p["weight"] * p["height"] / 3600), nil
		},
	}
}

func newMeanArterialPressure() calculation.Calculation {
	return &formula{
		name:   "MeanArterialPressure",
		params: []calculation.Parameter{required("systolic", "mmHg"), required("diastolic", "mmHg")},
		unit:   "mmHg",
		fn: func(p map[string]float64) (float64, error) {
			if err := positive(p, "systolic", "diastolic"); err != nil {
				return 0, err
			}
			return (p["systolic"] + 2*p["diastolic"]) / 3, nil
		},
	}
}
