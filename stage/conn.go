package stage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Conn runs synchronous command/response exchanges with a stage controller.
type Conn struct {
	t   Transport
	log *zap.Logger

	mx sync.Mutex
}

// NewConn creates a new Conn using the provided Transport.
func NewConn(t Transport, log *zap.Logger) *Conn {
	return &Conn{t: t, log: log}
}

// Close will close the underlying Transport.
func (c *Conn) Close() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.t.Close()
}

// Send writes cmd and waits for a line containing expect.
//
// Input received before the command is discarded. Lines are matched
// case-insensitively by substring, so unrelated output from the controller is
// skipped until the expected token, an error token, or the deadline. A
// *DeviceError is returned for lines containing ERR or ERROR, and ErrTimeout
// once timeout has elapsed without a match.
func (c *Conn) Send(ctx context.Context, cmd Command, expect string, timeout time.Duration) error {
	if expect == "" {
		return ErrEmptyToken
	}
	line := cmd.Line()
	want := strings.ToUpper(expect)

	c.mx.Lock()
	defer c.mx.Unlock()

	if err := c.t.ResetInput(); err != nil {
		return fmt.Errorf("reset input: %w", err)
	}
	if _, err := io.WriteString(c.t, line+"\n"); err != nil {
		return fmt.Errorf("write '%s': %w", line, err)
	}
	if err := c.t.Flush(); err != nil {
		return fmt.Errorf("flush '%s': %w", line, err)
	}
	c.log.Debug("sent command", zap.String("command", line))

	// time.Now carries a monotonic reading, so the deadline ignores wall clock jumps.
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, ok, err := c.t.ReadLine()
		if err != nil {
			return fmt.Errorf("read response to '%s': %w", line, err)
		}
		if !ok {
			continue
		}
		resp = strings.TrimSpace(resp)
		if resp == "" {
			continue
		}

		upper := strings.ToUpper(resp)
		switch {
		case strings.Contains(upper, want):
			c.log.Debug("command acknowledged", zap.String("command", line), zap.String("response", resp))
			return nil
		case strings.Contains(upper, "ERR"):
			return &DeviceError{Command: line, Detail: resp}
		}
		c.log.Debug("ignoring controller output", zap.String("line", resp))
	}

	return fmt.Errorf("'%s' (waited %s for %s): %w", line, timeout, expect, ErrTimeout)
}
