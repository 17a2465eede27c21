// Package serialport provides line-oriented serial transports for stage
// controllers and resolves port addresses.
package serialport

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"time"
)

// Options configure an opened port.
type Options struct {
	BaudRate int

	// PollInterval is the longest a single ReadLine call blocks.
	PollInterval time.Duration
}

// DefaultOptions match the stage firmware: 115200 baud 8N1.
var DefaultOptions = Options{
	BaudRate:     115200,
	PollInterval: 100 * time.Millisecond,
}

// device is the raw port a Port reads lines from.
//
// Read must return (0, nil) when its read timeout expires.
type device interface {
	io.ReadWriteCloser
	resetInput() error
	drain() error
}

// Port is an open serial port that reads whole lines.
type Port struct {
	name string
	dev  device

	mx     sync.Mutex
	buf    bytes.Buffer
	chunk  []byte
	closed bool
}

func newPort(name string, dev device) *Port {
	return &Port{name: name, dev: dev, chunk: make([]byte, 256)}
}

// Name returns the device path the port was opened with.
func (p *Port) Name() string { return p.name }

func (p *Port) Write(b []byte) (int, error) {
	return p.dev.Write(b)
}

// takeLine pops a complete line from the buffer, without the line ending.
func (p *Port) takeLine() (string, bool) {
	i := bytes.IndexByte(p.buf.Bytes(), '\n')
	if i < 0 {
		return "", false
	}
	line := string(p.buf.Next(i + 1))
	return strings.TrimRight(line, "\r\n"), true
}

// ReadLine returns the next complete line. It performs at most one read on the
// device, which blocks for at most the poll interval.
func (p *Port) ReadLine() (string, bool, error) {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.closed {
		return "", false, io.ErrClosedPipe
	}

	if line, ok := p.takeLine(); ok {
		return line, true, nil
	}
	n, err := p.dev.Read(p.chunk)
	p.buf.Write(p.chunk[:n])
	if err != nil {
		return "", false, err
	}
	line, ok := p.takeLine()
	return line, ok, nil
}

// ResetInput discards data received by the OS driver and any partial line.
func (p *Port) ResetInput() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.buf.Reset()
	return p.dev.resetInput()
}

func (p *Port) Flush() error {
	return p.dev.drain()
}

// Close closes the device. Subsequent calls return nil.
func (p *Port) Close() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.dev.Close()
}
