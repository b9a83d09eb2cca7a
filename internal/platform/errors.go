package platform

import "errors"

var (
	// ErrNotFound reports a channel, record or member that no longer exists.
	ErrNotFound = errors.New("platform: not found")
	// ErrForbidden reports a destination the bot may not access.
	ErrForbidden = errors.New("platform: forbidden")
)

// IsUnresolvable reports whether err means the destination is gone or
// inaccessible, as opposed to a transient failure.
func IsUnresolvable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}
