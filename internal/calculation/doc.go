// Package calculation resolves provider/calculation pairs into runnable
// calculations.
//
// # Providers
//
// A provider is a named component that supplies one or more calculations.
// Providers are not discovered at runtime: each one is registered at
// process startup with a factory function, usually from an init() in the
// providers package:
//
//	calculation.Register("org.openmrs.calculation.ClinicalProvider", func() (calculation.Provider, error) {
//	    return &clinicalProvider{}, nil
//	})
//
// # Resolution
//
// [Resolver.Resolve] turns (provider name, calculation name) into a fresh
// [Calculation] instance or a [*ResolutionError] explaining why it could not.
// Faults inside provider code, including panics, are converted into
// resolution errors so callers never see an unexpected crash.
package calculation
