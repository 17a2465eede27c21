// Package camera captures frames for tiles and writes them to disk.
package camera

import (
	"context"
	"time"
)

// Frame is a single encoded image.
type Frame struct {
	Data     []byte
	Format   string
	Captured time.Time
}

func settle(ctx context.Context, d time.Duration) error {
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
