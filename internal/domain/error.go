package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Code generation
	ErrCodeCollision = errors.New("could not generate a unique code string")

	// Redemption eligibility errors. Each is a distinct, user-facing
	// outcome; callers must not collapse them into a generic failure.
	ErrCodeInactive  = errors.New("access code has been deactivated")
	ErrCodeExpired   = errors.New("access code has expired")
	ErrCodeExhausted = errors.New("access code has no uses left")

	// Session close idempotency guard
	ErrSessionClosed = errors.New("session is already closed")

	// Storage-layer failures. Kept distinct from business errors so callers
	// can apply their own retry policy without misreading them.
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)
