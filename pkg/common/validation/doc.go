// Package validation provides common validation utilities for stage
// descriptors and configuration values across the pipex library.
//
// Every helper returns a *errors.ValidationError, so callers can match
// failures with errors.Is(err, errors.ErrInvalidConfiguration).
package validation
