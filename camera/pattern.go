package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"time"
)

// Pattern is a synthetic camera producing PNG test frames. Each frame has a
// different tint so tiles can be told apart.
type Pattern struct {
	Width, Height int
	Settle        time.Duration

	n int
}

func (p *Pattern) CaptureFrame(ctx context.Context, settleFirst bool) (*Frame, error) {
	if settleFirst {
		if err := settle(ctx, p.Settle); err != nil {
			return nil, err
		}
	}
	p.n++

	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	tint := uint8(p.n * 37)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / max(p.Width, 1)),
				G: uint8(y * 255 / max(p.Height, 1)),
				B: tint,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &Frame{Data: buf.Bytes(), Format: "png", Captured: time.Now()}, nil
}

func (p *Pattern) Close() error { return nil }
