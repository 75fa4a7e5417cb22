package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the core engine. Callers branch with errors.Is.
var (
	// ErrValidation covers malformed or out-of-range input. Rejected before
	// any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidProjectState is returned when a lifecycle precondition is
	// not met (e.g. issuing against a non-approved project).
	ErrInvalidProjectState = errors.New("invalid project state")

	// ErrAlreadyIssued is returned when a credit batch already exists for
	// the project. Issuance is idempotent; the existing batch stands.
	ErrAlreadyIssued = errors.New("credits already issued for project")

	// ErrInsufficientSupply is returned when a purchase or listing request
	// exceeds the quantity available. No mutation is performed.
	ErrInsufficientSupply = errors.New("insufficient credits available")

	// ErrNotHolder is returned when the caller does not own the holding it
	// is trying to retire or re-list.
	ErrNotHolder = errors.New("caller is not the holder of this purchase")

	// ErrHoldingNotActive is returned for operations that require an
	// active holding (already retired or fully re-listed).
	ErrHoldingNotActive = errors.New("holding is not active")

	// ErrConcurrencyConflict signals a lost race (ledger append slot or
	// listing quantity CAS). Retried internally with bounded attempts and
	// surfaced only when retries exhaust; callers may retry the operation.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")

	// ErrStorageUnavailable signals that the backing store is unreachable.
	// Correctness-critical paths fail loudly rather than approximate.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Invalid wraps ErrValidation with detail.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the record kind and identifier.
func NotFound(kind string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, kind, id)
}

// Conflict wraps a state-conflict sentinel with detail.
func Conflict(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// HTTPStatus maps an engine error onto an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidProjectState),
		errors.Is(err, ErrAlreadyIssued),
		errors.Is(err, ErrInsufficientSupply),
		errors.Is(err, ErrNotHolder),
		errors.Is(err, ErrHoldingNotActive):
		return http.StatusConflict
	case errors.Is(err, ErrConcurrencyConflict), errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
