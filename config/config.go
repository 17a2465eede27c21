// Package config loads tilescan settings from a file, the environment and
// built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mastercactapus/tilescan/scan"
)

// EnvPrefix is prepended to environment overrides, e.g. TILESCAN_STAGE_PORT.
const EnvPrefix = "TILESCAN"

// Config represents the application configuration
type Config struct {
	Stage   StageConfig   `mapstructure:"stage"`
	Camera  CameraConfig  `mapstructure:"camera"`
	Scan    ScanConfig    `mapstructure:"scan"`
	Logging LoggingConfig `mapstructure:"logging"`
	API     APIConfig     `mapstructure:"api"`
}

// StageConfig describes the link to the stage controller.
type StageConfig struct {
	// Driver is one of serial, tarm, spjs or sim.
	Driver string `mapstructure:"driver"`

	// Port is a device path, a glob pattern, or the port name on the SPJS host.
	Port         string        `mapstructure:"port"`
	BaudRate     int           `mapstructure:"baud_rate"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Settle       time.Duration `mapstructure:"settle"`
	SPJSURL      string        `mapstructure:"spjs_url"`
}

// CameraConfig describes how frames are captured.
type CameraConfig struct {
	// Driver is command or pattern.
	Driver  string        `mapstructure:"driver"`
	Command []string      `mapstructure:"command"`
	Format  string        `mapstructure:"format"`
	Width   int           `mapstructure:"width"`
	Height  int           `mapstructure:"height"`
	Settle  time.Duration `mapstructure:"settle"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ScanConfig describes the tile grid.
type ScanConfig struct {
	Width           int    `mapstructure:"width"`
	Height          int    `mapstructure:"height"`
	StepX           int    `mapstructure:"step_x"`
	StepY           int    `mapstructure:"step_y"`
	OutputDir       string `mapstructure:"output_dir"`
	FilenamePattern string `mapstructure:"filename_pattern"`
	HomeFirst       bool   `mapstructure:"home_first"`
	WriteReport     bool   `mapstructure:"write_report"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// APIConfig enables the HTTP status server when Listen is set.
type APIConfig struct {
	Listen string `mapstructure:"listen"`
}

// Load reads configuration from path, if not empty, and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("stage.driver", "serial")
	v.SetDefault("stage.port", "/dev/tty.usbmodem*")
	v.SetDefault("stage.baud_rate", 115200)
	v.SetDefault("stage.timeout", "5s")
	v.SetDefault("stage.poll_interval", "100ms")
	v.SetDefault("stage.settle", "2s")
	v.SetDefault("stage.spjs_url", "ws://localhost:8989/ws")

	v.SetDefault("camera.driver", "command")
	v.SetDefault("camera.command", []string{"fswebcam", "--no-banner", "-r", "{width}x{height}", "{output}"})
	v.SetDefault("camera.format", "jpg")
	v.SetDefault("camera.width", 1920)
	v.SetDefault("camera.height", 1080)
	v.SetDefault("camera.settle", "500ms")
	v.SetDefault("camera.timeout", "30s")

	v.SetDefault("scan.width", 5)
	v.SetDefault("scan.height", 4)
	v.SetDefault("scan.step_x", 1000)
	v.SetDefault("scan.step_y", 1000)
	v.SetDefault("scan.output_dir", "./output")
	v.SetDefault("scan.filename_pattern", scan.DefaultPattern)
	v.SetDefault("scan.home_first", true)
	v.SetDefault("scan.write_report", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	v.SetDefault("api.listen", "")
}

func oneOf(name, val string, valid ...string) error {
	for _, v := range valid {
		if val == v {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of: %v", name, valid)
}

// Validate checks settings that would otherwise fail mid-scan.
func (c *Config) Validate() error {
	if err := oneOf("stage.driver", c.Stage.Driver, "serial", "tarm", "spjs", "sim"); err != nil {
		return err
	}
	if c.Stage.Port == "" && c.Stage.Driver != "sim" {
		return fmt.Errorf("stage.port is required")
	}
	if c.Stage.Driver == "spjs" && c.Stage.SPJSURL == "" {
		return fmt.Errorf("stage.spjs_url is required for the spjs driver")
	}
	if c.Stage.BaudRate <= 0 {
		return fmt.Errorf("stage.baud_rate must be positive")
	}
	if c.Stage.Timeout <= 0 || c.Stage.PollInterval <= 0 {
		return fmt.Errorf("stage.timeout and stage.poll_interval must be positive")
	}
	if c.Stage.PollInterval > c.Stage.Timeout {
		return fmt.Errorf("stage.poll_interval must not exceed stage.timeout")
	}

	if err := oneOf("camera.driver", c.Camera.Driver, "command", "pattern"); err != nil {
		return err
	}
	if c.Camera.Driver == "command" && len(c.Camera.Command) == 0 {
		return fmt.Errorf("camera.command is required for the command driver")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("camera.width and camera.height must be positive")
	}

	if c.Scan.Width < 0 || c.Scan.Height < 0 {
		return fmt.Errorf("scan.width and scan.height must not be negative")
	}
	p := c.Scan.FilenamePattern
	if !strings.Contains(p, "{col}") || !strings.Contains(p, "{row}") {
		return fmt.Errorf("scan.filename_pattern must contain {col} and {row}")
	}

	if err := oneOf("logging.level", c.Logging.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	return oneOf("logging.format", c.Logging.Format, "json", "console")
}
