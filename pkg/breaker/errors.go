package breaker

import "errors"

var (
	// ErrCircuitOpen is returned without invoking the call while the breaker is open,
	// or half-open with its trial call already in flight.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrCallTimeout is returned when a call exceeds the breaker's call timeout.
	ErrCallTimeout = errors.New("call timeout")
)

// IsRejected reports whether err came from the breaker rather than the call.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrCallTimeout)
}
