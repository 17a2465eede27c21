package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mastercactapus/tilescan/config"
	"github.com/mastercactapus/tilescan/logging"
)

const usage = `usage: tilescan [flags] <command> [args]

commands:
  scan        home the stage and capture every tile of the grid
  home        home the stage
  move X Y    move to an absolute position, or by X,Y with -relative
  ports       list serial ports

flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tilescan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	cfgPath := fs.String("config", "", "Config file (yaml, toml or json).")
	port := fs.String("port", "", "Stage port or glob pattern, overrides stage.port.")
	driver := fs.String("driver", "", "Stage driver: serial, tarm, spjs or sim.")
	simulate := fs.Bool("simulate", false, "Use a simulated stage and a pattern camera.")
	width := fs.Int("width", -1, "Grid columns, overrides scan.width.")
	height := fs.Int("height", -1, "Grid rows, overrides scan.height.")
	out := fs.String("out", "", "Output directory, overrides scan.output_dir.")
	listen := fs.String("listen", "", "Address to serve the status API on, e.g. :9091.")
	relative := fs.Bool("relative", false, "Home first, then move by X,Y.")
	verbose := fs.Bool("v", false, "Log at debug level.")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, "ERROR:", err)
		return 1
	}
	if *simulate {
		cfg.Stage.Driver = "sim"
		cfg.Stage.Port = "sim"
		cfg.Camera.Driver = "pattern"
	}
	if *driver != "" {
		cfg.Stage.Driver = *driver
	}
	if *port != "" {
		cfg.Stage.Port = *port
	}
	if *width >= 0 {
		cfg.Scan.Width = *width
	}
	if *height >= 0 {
		cfg.Scan.Height = *height
	}
	if *out != "" {
		cfg.Scan.OutputDir = *out
	}
	if *listen != "" {
		cfg.API.Listen = *listen
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "ERROR:", err)
		return 2
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(stderr, "ERROR:", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdArgs := fs.Args()[1:]
	switch fs.Arg(0) {
	case "scan":
		err = runScan(ctx, cfg, stdout, log)
	case "home":
		err = runHome(ctx, cfg, stdout, log)
	case "move":
		err = runMove(ctx, cfg, cmdArgs, *relative, stdout, log)
	case "ports":
		err = runPorts(ctx, cfg, stdout, log)
	default:
		fmt.Fprintf(stderr, "unknown command '%s'\n", fs.Arg(0))
		fs.Usage()
		return 2
	}

	return exitCode(ctx, err, log)
}

func exitCode(ctx context.Context, err error, log *zap.Logger) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		log.Warn("interrupted", zap.Error(err))
		return 130
	}
	log.Error("run failed", zap.Error(err))
	return 1
}
