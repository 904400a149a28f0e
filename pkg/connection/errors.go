package connection

import (
	"errors"
	"strings"
)

// ErrNotConnected is wrapped by the ConnectionError returned while no backend is active.
var ErrNotConnected = errors.New("storage backend not connected")

// ConnectionError reports that no storage backend is reachable. Causes holds
// the underlying failures, e.g. one for the primary endpoint and one for the
// embedded fallback.
type ConnectionError struct {
	Msg    string
	Causes []error
}

func (e *ConnectionError) Error() string {
	if len(e.Causes) == 0 {
		return e.Msg
	}
	parts := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		parts = append(parts, c.Error())
	}
	return e.Msg + ": " + strings.Join(parts, "; ")
}

func (e *ConnectionError) Unwrap() []error { return e.Causes }

// NotConnected returns the ConnectionError reported while no backend is active.
func NotConnected() error {
	return &ConnectionError{Msg: "storage backend unavailable", Causes: []error{ErrNotConnected}}
}
