package scan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mastercactapus/tilescan/coord"
)

// Result is what happened to a single tile.
type Result int

const (
	Saved Result = iota
	CaptureFailed
	SaveFailed
)

func (r Result) String() string {
	switch r {
	case Saved:
		return "saved"
	case CaptureFailed:
		return "capture_failed"
	case SaveFailed:
		return "save_failed"
	}
	return "unknown"
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Result) UnmarshalText(b []byte) error {
	for _, v := range []Result{Saved, CaptureFailed, SaveFailed} {
		if v.String() == string(b) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown result '%s'", b)
}

// TileOutcome records a visited tile.
type TileOutcome struct {
	Tile   Tile        `json:"tile"`
	Target coord.Point `json:"target"`
	Result Result      `json:"result"`

	// Path is set for saved tiles.
	Path string `json:"path,omitempty"`

	// Err describes a failed capture or save.
	Err string `json:"error,omitempty"`
}

// Report is the result of a scan run, with outcomes in visiting order.
type Report struct {
	ID       uuid.UUID     `json:"id"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Step     coord.Point   `json:"step"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Outcomes []TileOutcome `json:"outcomes"`

	// Error is set when the run was aborted.
	Error string `json:"error,omitempty"`
}

// Count returns the number of outcomes with the given result.
func (r *Report) Count(res Result) int {
	var n int
	for _, o := range r.Outcomes {
		if o.Result == res {
			n++
		}
	}
	return n
}

// Complete reports whether every planned tile was visited.
func (r *Report) Complete() bool {
	return r.Error == "" && len(r.Outcomes) == len(Plan(r.Width, r.Height))
}

// WriteFile writes the report as JSON to path.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
