package calculation

import "fmt"

// Reason classifies why a resolution failed.
type Reason string

const (
	ReasonProviderNotFound         Reason = "provider_not_found"
	ReasonProviderInstantiation    Reason = "provider_instantiation"
	ReasonCalculationNotFound      Reason = "calculation_not_found"
	ReasonCalculationInstantiation Reason = "calculation_instantiation"
)

// ResolutionError explains why a provider/calculation pair could not be
// turned into a calculation. Error() is meant to be shown to users as is.
type ResolutionError struct {
	Provider    string
	Calculation string
	Reason      Reason
	Err         error
}

func (e *ResolutionError) Error() string {
	switch e.Reason {
	case ReasonProviderNotFound:
		if e.Provider == "" {
			return "no calculation provider specified"
		}
		return fmt.Sprintf("calculation provider %q not found", e.Provider)
	case ReasonProviderInstantiation:
		return fmt.Sprintf("calculation provider %q could not be instantiated: %v", e.Provider, e.Err)
	case ReasonCalculationNotFound:
		if e.Calculation == "" {
			return fmt.Sprintf("no calculation specified for provider %q", e.Provider)
		}
		return fmt.Sprintf("calculation %q not found in provider %q", e.Calculation, e.Provider)
	case ReasonCalculationInstantiation:
		return fmt.Sprintf("calculation %q from provider %q could not be instantiated: %v", e.Calculation, e.Provider, e.Err)
	default:
		return fmt.Sprintf("calculation %q from provider %q could not be resolved", e.Calculation, e.Provider)
	}
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
