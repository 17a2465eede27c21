package stage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mastercactapus/tilescan/coord"
)

// Options configure a Controller.
type Options struct {
	// Timeout bounds every command exchange.
	Timeout time.Duration

	// Settle is how long to wait after opening the port. Most controllers
	// reset when the port is opened and need time to boot.
	Settle time.Duration
}

// Controller tracks the confirmed position of a stage and moves it.
//
// The position only changes after the controller acknowledges a command, so a
// failed move leaves it at the last known location.
type Controller struct {
	opt     Options
	resolve Resolver
	dial    Dialer
	log     *zap.Logger

	conn  *Conn
	pos   coord.Point
	known bool
}

// NewController creates a disconnected Controller.
func NewController(opt Options, resolve Resolver, dial Dialer, log *zap.Logger) *Controller {
	return &Controller{
		opt:     opt,
		resolve: resolve,
		dial:    dial,
		log:     log.With(zap.String("component", "stage")),
	}
}

// Connect resolves address, opens it and waits for the controller to boot.
//
// Resolution and open failures are returned as *ConnectionError.
func (c *Controller) Connect(ctx context.Context, address string) error {
	if c.conn != nil {
		return ErrAlreadyConnected
	}
	path, err := c.resolve(address)
	if err != nil {
		return &ConnectionError{Address: address, Err: err}
	}
	t, err := c.dial(path)
	if err != nil {
		return &ConnectionError{Address: path, Err: err}
	}

	c.log.Info("waiting for controller to boot", zap.String("port", path), zap.Duration("settle", c.opt.Settle))
	err = sleep(ctx, c.opt.Settle)
	if err == nil {
		err = t.ResetInput()
	}
	if err != nil {
		t.Close()
		if ctx.Err() != nil {
			return err
		}
		return &ConnectionError{Address: path, Err: err}
	}

	c.conn = NewConn(t, c.log)
	c.known = false
	c.pos = coord.Point{}
	c.log.Info("connected to stage", zap.String("port", path))
	return nil
}

// Home homes the stage and sets the position to the origin.
func (c *Controller) Home(ctx context.Context) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	err := c.conn.Send(ctx, Home{}, DoneToken, c.opt.Timeout)
	if err != nil {
		return err
	}
	c.pos = coord.Point{}
	c.known = true
	c.log.Info("stage homed")
	return nil
}

// MoveTo moves to the absolute position (x, y) in steps.
func (c *Controller) MoveTo(ctx context.Context, x, y int) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	err := c.conn.Send(ctx, MoveTo{X: x, Y: y}, DoneToken, c.opt.Timeout)
	if err != nil {
		return err
	}
	c.pos = coord.Point{X: x, Y: y}
	c.known = true
	c.log.Debug("stage moved", zap.Stringer("position", c.pos))
	return nil
}

// MoveRelative moves by (dx, dy) from the last confirmed position.
//
// It fails with ErrPositionUnknown if no position has been confirmed yet.
func (c *Controller) MoveRelative(ctx context.Context, dx, dy int) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if !c.known {
		return ErrPositionUnknown
	}
	target := c.pos.Add(coord.Point{X: dx, Y: dy})
	return c.MoveTo(ctx, target.X, target.Y)
}

// Position returns the last confirmed position. ok is false until the stage
// has been homed or moved to an absolute position.
func (c *Controller) Position() (p coord.Point, ok bool) {
	return c.pos, c.known
}

// Close releases the port. Calling Close on a closed Controller does nothing.
func (c *Controller) Close() error {
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	c.known = false
	err := conn.Close()
	c.log.Info("stage controller closed")
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
