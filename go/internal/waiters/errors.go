package waiters

import "errors"

var (
	ErrNotFound         = errors.New("waiter not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidPasskey is returned when no waiter matches a passkey
	ErrInvalidPasskey = errors.New("invalid passkey")
)

// ErrorCode maps a directory error to the short code carried in command replies.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrInvalidPasskey):
		return "invalid_passkey"
	default:
		return "store_unavailable"
	}
}
