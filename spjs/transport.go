package spjs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var lastID int64

func nextID() string {
	id := atomic.AddInt64(&lastID, 1)
	return "cmd_" + strconv.FormatInt(id, 36)
}

// Transport is a line-oriented link to one serial port on the server.
type Transport struct {
	c     *Client
	port  string
	poll  time.Duration
	owned bool
	log   *zap.Logger

	mx     sync.Mutex
	buf    bytes.Buffer
	lines  []string
	notify chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// OpenPort opens port on the server at the given baud rate. ReadLine waits at
// most poll for a line.
func OpenPort(ctx context.Context, c *Client, port string, baud int, poll time.Duration) (*Transport, error) {
	t := &Transport{
		c:      c,
		port:   port,
		poll:   poll,
		log:    c.log.With(zap.String("port", port)),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go t.readLoop()

	err := c.WriteString(ctx, "open "+port+" "+strconv.Itoa(baud)+" default")
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("open %s: %w", port, err)
	}
	return t, nil
}

// Dial connects to the server at url and opens port. Closing the returned
// Transport also closes the connection.
func Dial(ctx context.Context, url, port string, baud int, poll time.Duration, log *zap.Logger) (*Transport, error) {
	c := NewClient(url, log)
	t, err := OpenPort(ctx, c, port, baud, poll)
	if err != nil {
		c.Close()
		return nil, err
	}
	t.owned = true
	return t, nil
}

func (t *Transport) readLoop() {
	for {
		select {
		case <-t.done:
			return
		case msg := <-t.c.Messages():
			switch m := msg.(type) {
			case *DataFrame:
				if m.Port != t.port {
					continue
				}
				t.push(m.Data)
			case *ErrorMessage:
				t.log.Warn("server error", zap.String("error", m.Error))
			}
		}
	}
}

func (t *Transport) push(data string) {
	t.mx.Lock()
	t.buf.WriteString(data)
	for {
		i := bytes.IndexByte(t.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		t.lines = append(t.lines, strings.TrimRight(string(t.buf.Next(i+1)), "\r\n"))
	}
	ready := len(t.lines) > 0
	t.mx.Unlock()

	if ready {
		select {
		case t.notify <- struct{}{}:
		default:
		}
	}
}

func (t *Transport) pop() (string, bool) {
	t.mx.Lock()
	defer t.mx.Unlock()
	if len(t.lines) == 0 {
		return "", false
	}
	l := t.lines[0]
	t.lines = t.lines[1:]
	return l, true
}

// ReadLine returns the next line from the port, waiting at most one poll interval.
func (t *Transport) ReadLine() (string, bool, error) {
	select {
	case <-t.done:
		return "", false, io.ErrClosedPipe
	default:
	}
	if l, ok := t.pop(); ok {
		return l, true, nil
	}
	timer := time.NewTimer(t.poll)
	defer timer.Stop()
	select {
	case <-t.done:
		return "", false, io.ErrClosedPipe
	case <-t.notify:
	case <-timer.C:
	}
	l, ok := t.pop()
	return l, ok, nil
}

func (t *Transport) Write(p []byte) (int, error) {
	select {
	case <-t.done:
		return 0, io.ErrClosedPipe
	default:
	}
	err := t.c.SendJSON(context.Background(), JSON{
		Port: t.port,
		Data: []Data{{Data: string(p), ID: nextID()}},
	})
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// ResetInput drops lines received from the server but not yet read.
func (t *Transport) ResetInput() error {
	t.mx.Lock()
	t.buf.Reset()
	t.lines = nil
	t.mx.Unlock()
	return nil
}

// Flush is a no-op: Write returns once the data is on the websocket.
func (t *Transport) Flush() error { return nil }

// Close closes the remote port. It is safe to call more than once.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = t.c.WriteString(ctx, "close "+t.port)
		cancel()
		close(t.done)
		if t.owned {
			t.c.Close()
		}
	})
	return err
}
