package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mastercactapus/tilescan/camera"
	"github.com/mastercactapus/tilescan/config"
	"github.com/mastercactapus/tilescan/scan"
	"github.com/mastercactapus/tilescan/serialport"
	"github.com/mastercactapus/tilescan/spjs"
	"github.com/mastercactapus/tilescan/stage"
	"github.com/mastercactapus/tilescan/stagesim"
)

func literal(addr string) (string, error) { return addr, nil }

func dialer(ctx context.Context, cfg config.StageConfig, log *zap.Logger) (stage.Resolver, stage.Dialer) {
	opt := serialport.Options{BaudRate: cfg.BaudRate, PollInterval: cfg.PollInterval}

	switch cfg.Driver {
	case "tarm":
		return serialport.Resolve, func(path string) (stage.Transport, error) {
			p, err := serialport.OpenTarm(path, opt)
			if err != nil {
				return nil, err
			}
			return p, nil
		}
	case "spjs":
		return literal, func(port string) (stage.Transport, error) {
			dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			t, err := spjs.Dial(dctx, cfg.SPJSURL, port, cfg.BaudRate, cfg.PollInterval, log)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
	case "sim":
		return literal, func(string) (stage.Transport, error) {
			d := stagesim.New("tilescan stage simulator", "READY")
			d.Poll = cfg.PollInterval
			d.Delay = 20 * time.Millisecond
			return d, nil
		}
	}

	return serialport.Resolve, func(path string) (stage.Transport, error) {
		p, err := serialport.Open(path, opt)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// openStage connects to the stage. The caller must Close it.
func openStage(ctx context.Context, cfg config.StageConfig, log *zap.Logger) (*stage.Controller, error) {
	resolve, dial := dialer(ctx, cfg, log)
	settle := cfg.Settle
	if cfg.Driver == "sim" {
		settle = 0
	}
	c := stage.NewController(stage.Options{Timeout: cfg.Timeout, Settle: settle}, resolve, dial, log)
	if err := c.Connect(ctx, cfg.Port); err != nil {
		return nil, err
	}
	return c, nil
}

type frameSource interface {
	scan.Capturer
	Close() error
}

// openCamera opens the configured camera. The caller must Close it.
func openCamera(cfg config.CameraConfig, log *zap.Logger) (frameSource, error) {
	if cfg.Driver == "pattern" {
		return &camera.Pattern{Width: cfg.Width, Height: cfg.Height, Settle: cfg.Settle}, nil
	}
	c := camera.NewCommand(camera.CommandOptions{
		Args:    cfg.Command,
		Format:  cfg.Format,
		Width:   cfg.Width,
		Height:  cfg.Height,
		Settle:  cfg.Settle,
		Timeout: cfg.Timeout,
	}, log)
	if err := c.Open(); err != nil {
		return nil, err
	}
	return c, nil
}
