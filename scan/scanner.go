package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mastercactapus/tilescan/camera"
	"github.com/mastercactapus/tilescan/coord"
)

// DefaultPattern names tile images by grid cell. {ext} is the frame's format.
const DefaultPattern = "tile_x{col}_y{row}.{ext}"

// A Mover positions the stage. Errors are fatal to a scan.
type Mover interface {
	MoveTo(ctx context.Context, x, y int) error
}

// A Capturer takes a frame, optionally waiting for the stage to settle
// first. A nil frame or an error fails only the current tile.
type Capturer interface {
	CaptureFrame(ctx context.Context, settle bool) (*camera.Frame, error)
}

// A Saver persists a frame at path.
type Saver interface {
	SaveFrame(f *camera.Frame, path string) error
}

// Progress is sent to an Observer after every tile.
type Progress struct {
	ScanID  uuid.UUID   `json:"scan_id"`
	Index   int         `json:"index"`
	Total   int         `json:"total"`
	Outcome TileOutcome `json:"outcome"`
}

type Observer func(Progress)

// Options configure a Scanner.
type Options struct {
	Width, Height int

	// Step is the stage distance between neighbouring tiles.
	Step coord.Point

	OutputDir string

	// Pattern is the file name of each tile; {col} and {row} are replaced.
	Pattern string

	Observer Observer
}

// Scanner walks a snake-order plan, capturing one frame per tile.
type Scanner struct {
	opt     Options
	stage   Mover
	capture Capturer
	save    Saver
	log     *zap.Logger
}

func NewScanner(opt Options, stage Mover, capture Capturer, save Saver, log *zap.Logger) *Scanner {
	if opt.Pattern == "" {
		opt.Pattern = DefaultPattern
	}
	return &Scanner{
		opt:     opt,
		stage:   stage,
		capture: capture,
		save:    save,
		log:     log.With(zap.String("component", "scanner")),
	}
}

// TilePath returns where the image for t, encoded as ext, is stored.
func TilePath(dir, pattern string, t Tile, ext string) string {
	name := strings.NewReplacer(
		"{col}", strconv.Itoa(t.Col),
		"{row}", strconv.Itoa(t.Row),
		"{ext}", ext,
	).Replace(pattern)
	return filepath.Join(dir, name)
}

// Run visits every tile once, in plan order.
//
// A failed move aborts the scan: the report so far is returned together with
// the error, since later tiles would be taken at an unknown position. Capture
// and save failures are recorded in the tile's outcome and the scan goes on.
// Nothing is retried.
func (s *Scanner) Run(ctx context.Context) (*Report, error) {
	plan := Plan(s.opt.Width, s.opt.Height)
	rep := &Report{
		ID:       uuid.New(),
		Width:    s.opt.Width,
		Height:   s.opt.Height,
		Step:     s.opt.Step,
		Started:  time.Now(),
		Outcomes: make([]TileOutcome, 0, len(plan)),
	}
	log := s.log.With(zap.String("scan_id", rep.ID.String()))
	log.Info("starting grid scan",
		zap.Int("width", s.opt.Width),
		zap.Int("height", s.opt.Height),
		zap.Stringer("step", s.opt.Step),
		zap.Int("travel_steps", TravelSteps(plan, s.opt.Step)),
	)

	abort := func(err error) (*Report, error) {
		rep.Finished = time.Now()
		rep.Error = err.Error()
		log.Error("scan aborted", zap.Error(err), zap.Int("completed", len(rep.Outcomes)))
		return rep, err
	}

	for i, tile := range plan {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		target := tile.Target(s.opt.Step)
		log.Info("tile",
			zap.Int("index", i+1),
			zap.Int("total", len(plan)),
			zap.Int("col", tile.Col),
			zap.Int("row", tile.Row),
		)

		if err := s.stage.MoveTo(ctx, target.X, target.Y); err != nil {
			return abort(fmt.Errorf("move to %s for tile %s: %w", target, tile, err))
		}

		out, err := s.visit(ctx, tile, target)
		if err != nil {
			return abort(err)
		}
		rep.Outcomes = append(rep.Outcomes, out)

		if s.opt.Observer != nil {
			s.opt.Observer(Progress{ScanID: rep.ID, Index: i + 1, Total: len(plan), Outcome: out})
		}
	}

	rep.Finished = time.Now()
	log.Info("scan complete",
		zap.Int("saved", rep.Count(Saved)),
		zap.Int("capture_failed", rep.Count(CaptureFailed)),
		zap.Int("save_failed", rep.Count(SaveFailed)),
		zap.String("output_dir", s.opt.OutputDir),
		zap.Duration("elapsed", rep.Finished.Sub(rep.Started)),
	)
	return rep, nil
}

// visit captures and saves the current tile. An error is only returned if
// ctx was canceled during the capture.
func (s *Scanner) visit(ctx context.Context, tile Tile, target coord.Point) (TileOutcome, error) {
	out := TileOutcome{Tile: tile, Target: target}

	frame, err := s.capture.CaptureFrame(ctx, true)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	if err == nil && frame == nil {
		err = errors.New("no frame")
	}
	if err != nil {
		out.Result = CaptureFailed
		out.Err = err.Error()
		s.log.Warn("capture failed", zap.Stringer("tile", tile), zap.Error(err))
		return out, nil
	}

	path := TilePath(s.opt.OutputDir, s.opt.Pattern, tile, frame.Format)
	if err := s.save.SaveFrame(frame, path); err != nil {
		out.Result = SaveFailed
		out.Err = err.Error()
		s.log.Warn("save failed", zap.Stringer("tile", tile), zap.String("path", path), zap.Error(err))
		return out, nil
	}
	out.Result = Saved
	out.Path = path
	return out, nil
}
