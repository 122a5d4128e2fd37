package broker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConnected is returned by Publish when no session is established.
var ErrNotConnected = errors.New("broker: not connected")

// ConnectionError reports an unreachable broker.
type ConnectionError struct {
	Driver    string
	Endpoints []string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connect %s: %v", e.Driver, strings.Join(e.Endpoints, ","), e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
