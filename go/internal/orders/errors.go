package orders

import "errors"

var (
	// ErrNotFound is returned when an operation references a nonexistent order
	ErrNotFound = errors.New("order not found")
	// ErrValidationFailed is returned for malformed statuses or missing fields
	ErrValidationFailed = errors.New("validation failed")
	// ErrStoreUnavailable wraps any persistence failure
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidTransition is returned when the state machine rejects a status change
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStaleOrder is returned by a repository when a conditional update's
	// guard no longer matches the stored row.
	ErrStaleOrder = errors.New("order changed concurrently")
)

// ErrorCode maps an engine error to the short code carried in command replies.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "store_unavailable"
	}
}
