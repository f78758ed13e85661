// Package validation provides the checks shared by pool, scheduler and
// config constructors.
//
// Every helper returns a *errors.ValidationError naming the module and field,
// so callers can match ErrInvalidConfiguration with errors.Is.
package validation
