package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness or state conflict.
	ErrConflict = errors.New("conflict")
	// ErrStaleAssignment occurs when a commit references an assignment
	// that changed since the caller read it.
	ErrStaleAssignment = errors.New("stale assignment")
)

// UserSafeMessage returns a message suitable for API consumers. Internal
// errors collapse to a generic message so storage details never leak.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "requested record does not exist"
	case errors.Is(err, ErrStaleAssignment):
		return "assignment changed since it was loaded, reload and retry"
	case errors.Is(err, ErrConflict):
		return "request conflicts with current state"
	default:
		return "internal error"
	}
}
