package stage

import (
	"errors"
)

var (
	// ErrTimeout is returned when the controller does not answer a command in time.
	ErrTimeout = errors.New("timed out waiting for response")

	// ErrEmptyToken is returned by Send if no expected token is given.
	ErrEmptyToken = errors.New("expected token must not be empty")

	ErrNotConnected     = errors.New("stage not connected")
	ErrAlreadyConnected = errors.New("stage already connected")

	// ErrPositionUnknown is returned for relative moves before the stage is homed.
	ErrPositionUnknown = errors.New("stage position unknown, home first")
)

// DeviceError is a failure reported by the controller itself.
type DeviceError struct {
	Command string

	// Detail is the full line the controller sent.
	Detail string
}

func (e *DeviceError) Error() string {
	return "device error on '" + e.Command + "': " + e.Detail
}

// ConnectionError means the stage could not be reached at all.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return "connect " + e.Address + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }
