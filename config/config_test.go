package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/tilescan/scan"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "serial", cfg.Stage.Driver)
	assert.Equal(t, "/dev/tty.usbmodem*", cfg.Stage.Port)
	assert.Equal(t, 115200, cfg.Stage.BaudRate)
	assert.Equal(t, 5*time.Second, cfg.Stage.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Stage.Settle)
	assert.Equal(t, 500*time.Millisecond, cfg.Camera.Settle)
	assert.Equal(t, 5, cfg.Scan.Width)
	assert.Equal(t, 4, cfg.Scan.Height)
	assert.Equal(t, "tile_x{col}_y{row}.{ext}", cfg.Scan.FilenamePattern)
	assert.True(t, cfg.Scan.HomeFirst)
	assert.Equal(t, []string{"fswebcam", "--no-banner", "-r", "{width}x{height}", "{output}"}, cfg.Camera.Command)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tilescan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stage:
  port: /dev/ttyACM0
  timeout: 10s
scan:
  width: 8
  height: 3
  step_x: 250
camera:
  driver: pattern
`), 0o644))
	t.Setenv("TILESCAN_SCAN_STEP_Y", "125")
	t.Setenv("TILESCAN_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.Stage.Port)
	assert.Equal(t, 10*time.Second, cfg.Stage.Timeout)
	assert.Equal(t, 8, cfg.Scan.Width)
	assert.Equal(t, 250, cfg.Scan.StepX)
	assert.Equal(t, 125, cfg.Scan.StepY)
	assert.Equal(t, "pattern", cfg.Camera.Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_DefaultTileExtension(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	path := scan.TilePath(cfg.Scan.OutputDir, cfg.Scan.FilenamePattern, scan.Tile{}, cfg.Camera.Format)
	assert.Equal(t, "."+cfg.Camera.Format, filepath.Ext(path))
}

func TestLoad_NoValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tilescan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stage:
  driver: usb
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "usb", cfg.Stage.Driver)
	assert.Error(t, cfg.Validate())

	cfg.Stage.Driver = "sim"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"driver":     func(c *Config) { c.Stage.Driver = "usb" },
		"port":       func(c *Config) { c.Stage.Port = "" },
		"spjs url":   func(c *Config) { c.Stage.Driver = "spjs"; c.Stage.SPJSURL = "" },
		"poll":       func(c *Config) { c.Stage.PollInterval = time.Minute },
		"timeout":    func(c *Config) { c.Stage.Timeout = 0 },
		"camera":     func(c *Config) { c.Camera.Driver = "opencv" },
		"command":    func(c *Config) { c.Camera.Command = nil },
		"resolution": func(c *Config) { c.Camera.Width = 0 },
		"grid":       func(c *Config) { c.Scan.Height = -1 },
		"pattern":    func(c *Config) { c.Scan.FilenamePattern = "tile.png" },
		"log level":  func(c *Config) { c.Logging.Level = "trace" },
		"log format": func(c *Config) { c.Logging.Format = "xml" },
		"baud":       func(c *Config) { c.Stage.BaudRate = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := *base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	c := *base
	c.Stage.Driver = "sim"
	c.Stage.Port = ""
	assert.NoError(t, c.Validate())
}
