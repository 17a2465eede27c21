package serialport

import (
	"fmt"
	"io"

	"github.com/tarm/serial"
)

type tarmDevice struct {
	*serial.Port
}

// Read maps the EOF tarm returns on a read timeout to an empty read.
func (d tarmDevice) Read(b []byte) (int, error) {
	n, err := d.Port.Read(b)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

// tarm's Flush discards unread input and untransmitted output.
func (d tarmDevice) resetInput() error { return d.Flush() }

// Writes are synchronous on every platform tarm supports.
func (d tarmDevice) drain() error { return nil }

// OpenTarm opens a serial port with github.com/tarm/serial.
//
// The read timeout has a resolution of 100ms on POSIX systems.
func OpenTarm(name string, opt Options) (*Port, error) {
	sp, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        opt.BaudRate,
		ReadTimeout: opt.PollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port: %w", err)
	}
	return newPort(name, tarmDevice{Port: sp}), nil
}
