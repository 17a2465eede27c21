package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotOpen is returned when capturing from a camera that is not open.
var ErrNotOpen = errors.New("camera not open")

// CommandOptions configure a Command camera.
type CommandOptions struct {
	// Args is the capture command. {output}, {width} and {height} are
	// replaced in every argument.
	Args []string

	// Format is the file extension the command writes, e.g. "jpg".
	Format string

	Width, Height int

	// Settle is waited before a capture that asks for it.
	Settle time.Duration

	// Timeout bounds a single run of the command.
	Timeout time.Duration
}

// Command captures frames by running an external program such as fswebcam
// or ffmpeg, which writes one image to a file.
type Command struct {
	opt CommandOptions
	log *zap.Logger

	dir  string
	seq  int
	path string
}

func NewCommand(opt CommandOptions, log *zap.Logger) *Command {
	return &Command{opt: opt, log: log.With(zap.String("component", "camera"))}
}

// Open checks the program exists and creates a scratch directory.
func (c *Command) Open() error {
	if len(c.opt.Args) == 0 {
		return errors.New("no capture command configured")
	}
	path, err := exec.LookPath(c.opt.Args[0])
	if err != nil {
		return fmt.Errorf("capture command: %w", err)
	}
	dir, err := os.MkdirTemp("", "tilescan-capture-")
	if err != nil {
		return err
	}
	c.path = path
	c.dir = dir
	c.log.Info("camera opened",
		zap.String("command", path),
		zap.Int("width", c.opt.Width),
		zap.Int("height", c.opt.Height),
	)
	return nil
}

func (c *Command) args(output string) []string {
	r := strings.NewReplacer(
		"{output}", output,
		"{width}", strconv.Itoa(c.opt.Width),
		"{height}", strconv.Itoa(c.opt.Height),
	)
	res := make([]string, len(c.opt.Args)-1)
	for i, a := range c.opt.Args[1:] {
		res[i] = r.Replace(a)
	}
	return res
}

// CaptureFrame runs the capture command once. A nil Frame is returned with an
// error if the command fails or writes nothing.
func (c *Command) CaptureFrame(ctx context.Context, settleFirst bool) (*Frame, error) {
	if c.dir == "" {
		return nil, ErrNotOpen
	}
	if settleFirst {
		if err := settle(ctx, c.opt.Settle); err != nil {
			return nil, err
		}
	}

	c.seq++
	output := filepath.Join(c.dir, "frame-"+strconv.Itoa(c.seq)+"."+c.opt.Format)
	defer os.Remove(output)

	if c.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opt.Timeout)
		defer cancel()
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, c.args(output)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w: %s", filepath.Base(c.path), err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("read captured frame: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("capture command wrote an empty frame")
	}
	return &Frame{Data: data, Format: c.opt.Format, Captured: time.Now()}, nil
}

// Close removes the scratch directory. It is safe to call more than once.
func (c *Command) Close() error {
	if c.dir == "" {
		return nil
	}
	err := os.RemoveAll(c.dir)
	c.dir = ""
	c.log.Info("camera closed")
	return err
}
