package domain

import "errors"

// ErrUnauthenticated is returned when no caller identity is present at all.
// Distinct from ErrPermissionDenied: the caller is unknown, not insufficient.
// Handlers should map this to HTTP 401.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrPermissionDenied is returned when the caller's identity is known but
// does not satisfy the operation's ownership or role requirement.
// Handlers should map this to HTTP 403.
var ErrPermissionDenied = errors.New("permission denied")

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrInvalidArgument is returned when a referenced entity exists but violates
// an operation precondition (e.g. the child is not on the trip).
// Handlers should map this to HTTP 422.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrConflict is returned when a uniqueness constraint is already satisfied:
// an active trip already exists for the bus, or the child is already checked
// in on the trip. Handlers should map this to HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrValidation is returned by service functions when input fails business
// rule validation before any entity is consulted (e.g. unknown trip type).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")
