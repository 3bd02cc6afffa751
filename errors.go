package storeclient

import (
	"errors"
	"fmt"
)

var (
	ErrNilBackend       = errors.New("storeclient: backend is required")
	ErrClosed           = errors.New("storeclient: client closed")
	ErrUnsupportedValue = errors.New("storeclient: value must be text or numeric")
)

// ConnectionError is returned when a store command fails at the transport or
// protocol level. Err is the store's error, unmodified.
type ConnectionError struct {
	Op  string // "get", "set" or "del"
	Key string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("storeclient: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
