// Package validation provides common validation utilities for the taskflow library.
//
// Constructors across taskflow validate their configuration with these
// helpers so that misconfiguration surfaces as a *errors.ValidationError
// carrying the module, field and offending value.
package validation
