// Package stagesim simulates a stage controller speaking the HOME/MOVE line
// protocol. It satisfies stage.Transport and is used for dry runs and tests.
package stagesim

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mastercactapus/tilescan/coord"
)

type pendingLine struct {
	at   time.Time
	text string
}

// Device is an in-memory stage controller.
//
// Exported fields must be set before the Device is used.
type Device struct {
	// Poll is how long ReadLine waits for a line. Defaults to 10ms.
	Poll time.Duration

	// Delay is how long a command takes before the controller answers.
	Delay time.Duration

	// Chatter lines are sent before every response.
	Chatter []string

	// Fault, if set, is called with every received line. A non-empty
	// return value is sent instead of the normal response.
	Fault func(line string) string

	// Mute stops the controller from answering at all.
	Mute bool

	// Limit bounds each axis to [0, Limit] when non-zero.
	Limit coord.Point

	mx       sync.Mutex
	partial  bytes.Buffer
	pending  []pendingLine
	received []string
	pos      coord.Point
	closed   bool
	closes   int
}

// New returns a Device with the given boot banner already queued.
func New(banner ...string) *Device {
	d := &Device{}
	now := time.Now()
	for _, l := range banner {
		d.pending = append(d.pending, pendingLine{at: now, text: l})
	}
	return d
}

func (d *Device) poll() time.Duration {
	if d.Poll <= 0 {
		return 10 * time.Millisecond
	}
	return d.Poll
}

// Write accepts command bytes. Every complete line is executed.
func (d *Device) Write(p []byte) (int, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return 0, io.ErrClosedPipe
	}
	d.partial.Write(p)
	for {
		data := d.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(data[:i]))
		d.partial.Next(i + 1)
		if line != "" {
			d.exec(line)
		}
	}
	return len(p), nil
}

func (d *Device) exec(line string) {
	d.received = append(d.received, line)
	if d.Mute {
		return
	}
	at := time.Now().Add(d.Delay)
	for _, c := range d.Chatter {
		d.pending = append(d.pending, pendingLine{at: at, text: c})
	}
	resp := ""
	if d.Fault != nil {
		resp = d.Fault(line)
	}
	if resp == "" {
		resp = d.respond(line)
	}
	d.pending = append(d.pending, pendingLine{at: at, text: resp})
}

func (d *Device) respond(line string) string {
	parts := strings.Fields(strings.ToUpper(line))
	switch parts[0] {
	case "HOME":
		d.pos = coord.Point{}
		return "DONE"
	case "MOVE":
		if len(parts) != 3 {
			return "ERR bad params"
		}
		x, errX := strconv.Atoi(parts[1])
		y, errY := strconv.Atoi(parts[2])
		if errX != nil || errY != nil {
			return "ERR bad params"
		}
		if !d.inLimits(x, d.Limit.X) || !d.inLimits(y, d.Limit.Y) {
			return "ERR out of range"
		}
		d.pos = coord.Point{X: x, Y: y}
		return "DONE"
	}
	return "ERR unknown command"
}

func (d *Device) inLimits(v, limit int) bool {
	if limit == 0 {
		return true
	}
	return v >= 0 && v <= limit
}

// ReadLine returns the next line the controller has sent, waiting at most
// one poll interval.
func (d *Device) ReadLine() (string, bool, error) {
	wait := d.poll()
	end := time.Now().Add(wait)
	for {
		d.mx.Lock()
		if d.closed {
			d.mx.Unlock()
			return "", false, io.ErrClosedPipe
		}
		now := time.Now()
		if len(d.pending) > 0 && !d.pending[0].at.After(now) {
			l := d.pending[0].text
			d.pending = d.pending[1:]
			d.mx.Unlock()
			return l, true, nil
		}
		next := end
		if len(d.pending) > 0 && d.pending[0].at.Before(next) {
			next = d.pending[0].at
		}
		d.mx.Unlock()

		if !now.Before(end) {
			return "", false, nil
		}
		time.Sleep(next.Sub(now))
	}
}

// ResetInput drops every line that has already been sent.
func (d *Device) ResetInput() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return io.ErrClosedPipe
	}
	now := time.Now()
	keep := d.pending[:0]
	for _, l := range d.pending {
		if l.at.After(now) {
			keep = append(keep, l)
		}
	}
	d.pending = keep
	return nil
}

func (d *Device) Flush() error { return nil }

func (d *Device) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return io.ErrClosedPipe
	}
	d.closed = true
	d.closes++
	return nil
}

// Send queues an unsolicited line from the controller.
func (d *Device) Send(line string) {
	d.mx.Lock()
	d.pending = append(d.pending, pendingLine{at: time.Now(), text: line})
	d.mx.Unlock()
}

// Position returns where the simulated stage is.
func (d *Device) Position() coord.Point {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.pos
}

// Received returns every command line written so far.
func (d *Device) Received() []string {
	d.mx.Lock()
	defer d.mx.Unlock()
	return append([]string(nil), d.received...)
}

// Closes returns how many times the Device was closed successfully.
func (d *Device) Closes() int {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.closes
}
