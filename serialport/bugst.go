package serialport

import (
	"fmt"

	"go.bug.st/serial"
)

type bugstDevice struct {
	serial.Port
}

func (d bugstDevice) resetInput() error { return d.ResetInputBuffer() }
func (d bugstDevice) drain() error      { return d.Drain() }

// Open opens a serial port with go.bug.st/serial.
func Open(name string, opt Options) (*Port, error) {
	sp, err := serial.Open(name, &serial.Mode{
		BaudRate: opt.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port: %w", err)
	}
	if err := sp.SetReadTimeout(opt.PollInterval); err != nil {
		sp.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return newPort(name, bugstDevice{Port: sp}), nil
}
