package camera

import (
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileSaver writes frames to disk.
type FileSaver struct {
	log *zap.Logger
}

func NewFileSaver(log *zap.Logger) *FileSaver {
	return &FileSaver{log: log.With(zap.String("component", "saver"))}
}

// SaveFrame writes f to path, creating parent directories. The file appears
// under its final name only once fully written.
func (s *FileSaver) SaveFrame(f *Frame, path string) error {
	if f == nil || len(f.Data) == 0 {
		return errors.New("empty frame")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tile-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(f.Data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	s.log.Debug("saved frame", zap.String("path", path), zap.Int("bytes", len(f.Data)))
	return nil
}
