package editorial

import "errors"

var (
	// ErrNotFound means the proposal id resolves to nothing.
	ErrNotFound = errors.New("editorial: proposal not found")

	// ErrValidation covers malformed submissions: unknown entity type,
	// unknown field, empty change set, missing required rejection notes.
	ErrValidation = errors.New("editorial: validation failed")

	// ErrInvalidTransition means the action is not legal from the
	// proposal's current status. Nothing is mutated.
	ErrInvalidTransition = errors.New("editorial: invalid transition")

	// ErrConcurrentModification means another writer won the race on the
	// same proposal row. Retryable by the caller.
	ErrConcurrentModification = errors.New("editorial: concurrent modification")

	// ErrPublicationFailed means the atomic publish did not commit; the
	// proposal remains approved and the entity is untouched.
	ErrPublicationFailed = errors.New("editorial: publication failed")
)
