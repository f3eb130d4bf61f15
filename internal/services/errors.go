// Package services implements the business logic of the herd engine:
// lifecycle event dispatch and the reproduction workflow. This file
// centralizes the service-level error kinds so that callers (an HTTP or
// CLI layer) can map them to stable user-facing results.
//
// Every hard failure returned by a service wraps exactly one of these
// sentinels; use errors.Is to classify. Anything not wrapping a
// sentinel is an unexpected persistence failure and should be treated
// as infrastructure.
package services

import (
	"errors"
	"fmt"

	"github.com/hatogrande/go-herd-backend/internal/repo"
)

var (
	// ErrValidation marks malformed or inadmissible input: future
	// dates, wrong sex, missing required fields, invalid enum values,
	// insufficient semen stock.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced entity that does not exist within
	// the caller's tenant.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied marks a caller role lacking the capability
	// for the attempted operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConflict marks an optimistic-version mismatch or a uniqueness
	// violation. Conflicts are retryable from the caller's side.
	ErrConflict = errors.New("conflict")

	// ErrInfrastructure marks an unexpected persistence failure or a
	// data-integrity impossibility (for example two open lactations for
	// one animal). Details are logged, not surfaced.
	ErrInfrastructure = errors.New("infrastructure failure")
)

// mapRepoErr converts repository sentinels into service error kinds.
// what names the entity for the message, e.g. "animal 1234".
func mapRepoErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrVersionConflict):
		return fmt.Errorf("%w: %s was modified concurrently", ErrConflict, what)
	case errors.Is(err, repo.ErrDuplicateRegistryCode):
		return fmt.Errorf("%w: %s: %v", ErrConflict, what, err)
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repo.ErrIntegrity):
		return fmt.Errorf("%w: %v", ErrInfrastructure, err)
	default:
		return err
	}
}
