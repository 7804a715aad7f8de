// Package validation provides shared parameter validation for smoothrate
// constructors. All helpers return *errors.ValidationError values that
// unwrap to errors.ErrInvalidConfiguration.
package validation
