package obd

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is returned when the adapter answers NO DATA
	ErrNoData = errors.New("no data")
	// ErrUnsupported is returned for commands or PIDs the vehicle does not support
	ErrUnsupported = errors.New("unsupported")
	// ErrNotConnected is returned when the session has been closed or lost
	ErrNotConnected = errors.New("not connected")
	// ErrTimeout is returned when no prompt arrives within the query timeout
	ErrTimeout = errors.New("timed out waiting for adapter")
	// ErrAdapter is returned when the adapter reports a bus or protocol error
	ErrAdapter = errors.New("adapter error")
)

// ConnectError reports a failure to open or initialise the adapter
type ConnectError struct {
	Port string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// QueryError reports a failed mode 01 query for a single parameter
type QueryError struct {
	PID byte
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query PID %02X: %v", e.PID, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
