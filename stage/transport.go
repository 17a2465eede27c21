package stage

import "io"

// A Transport is a line-oriented duplex link to a stage controller.
type Transport interface {
	io.Writer

	// ReadLine waits at most one poll interval for a complete line.
	// ok is false if nothing arrived in that time.
	ReadLine() (line string, ok bool, err error)

	// ResetInput discards anything already received but not yet read.
	ResetInput() error

	// Flush blocks until written data has been transmitted.
	Flush() error

	Close() error
}

// A Resolver turns an address or glob pattern into a concrete device path.
type Resolver func(pattern string) (string, error)

// A Dialer opens a Transport to a resolved device path.
type Dialer func(path string) (Transport, error)
