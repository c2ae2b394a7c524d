// Package token defines calculation token registrations and the rules a
// registration must satisfy before it is persisted.
//
// A token is a symbolic name that points at a calculation supplied by a
// provider. The [Validator] checks a candidate [Registration] for required
// fields, name uniqueness and resolvability, reporting every violation
// through an [ErrorSink] rather than stopping at the first one.
package token

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field names used in field-scoped validation errors.
const (
	FieldName              = "name"
	FieldProviderClassName = "providerClassName"
	FieldCalculationName   = "calculationName"
)

// Registration maps a token name to a provider's calculation.
type Registration struct {
	// ID is uuid.Nil until the registration has been persisted.
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	ProviderClassName string    `json:"providerClassName"`
	CalculationName   string    `json:"calculationName"`
	Description       string    `json:"description,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// IsNew reports whether the registration has not been persisted yet.
func (r Registration) IsNew() bool {
	return r.ID == uuid.Nil
}

// SameIdentity reports whether r and other are the same persisted record.
// Two unsaved registrations are never the same record.
func (r Registration) SameIdentity(other Registration) bool {
	if r.IsNew() || other.IsNew() {
		return false
	}
	return r.ID == other.ID
}

// Normalized returns a copy with surrounding whitespace trimmed from the
// text fields. Stores persist normalized registrations.
func (r Registration) Normalized() Registration {
	r.Name = strings.TrimSpace(r.Name)
	r.ProviderClassName = strings.TrimSpace(r.ProviderClassName)
	r.CalculationName = strings.TrimSpace(r.CalculationName)
	r.Description = strings.TrimSpace(r.Description)
	return r
}

// isBlank reports whether s is empty or whitespace only.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
