package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/mastercactapus/tilescan/camera"
	"github.com/mastercactapus/tilescan/config"
	"github.com/mastercactapus/tilescan/coord"
	"github.com/mastercactapus/tilescan/scan"
	"github.com/mastercactapus/tilescan/serialport"
	"github.com/mastercactapus/tilescan/spjs"
)

func runScan(ctx context.Context, cfg *config.Config, stdout io.Writer, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tr := newTracker(len(scan.Plan(cfg.Scan.Width, cfg.Scan.Height)))
	if cfg.API.Listen != "" {
		_, stopAPI, err := serveAPI(cfg.API.Listen, newAPI(tr, cfg.Scan.OutputDir, cancel, log), log)
		if err != nil {
			return err
		}
		defer stopAPI()
	}

	tr.setState(stateConnecting)
	st, err := openStage(ctx, cfg.Stage, log)
	if err != nil {
		tr.finish(nil, err)
		return err
	}
	defer st.Close()

	cam, err := openCamera(cfg.Camera, log)
	if err != nil {
		err = fmt.Errorf("open camera: %w", err)
		tr.finish(nil, err)
		return err
	}
	defer cam.Close()

	if cfg.Scan.HomeFirst {
		tr.setState(stateHoming)
		if err := st.Home(ctx); err != nil {
			err = fmt.Errorf("home: %w", err)
			tr.finish(nil, err)
			return err
		}
	}

	tr.setState(stateScanning)
	sc := scan.NewScanner(scan.Options{
		Width:     cfg.Scan.Width,
		Height:    cfg.Scan.Height,
		Step:      coord.Point{X: cfg.Scan.StepX, Y: cfg.Scan.StepY},
		OutputDir: cfg.Scan.OutputDir,
		Pattern:   cfg.Scan.FilenamePattern,
		Observer:  tr.observe,
	}, st, cam, camera.NewFileSaver(log), log)

	rep, err := sc.Run(ctx)
	tr.finish(rep, err)
	printReport(stdout, rep)

	if cfg.Scan.WriteReport {
		path := filepath.Join(cfg.Scan.OutputDir, "report.json")
		if werr := rep.WriteFile(path); werr != nil {
			log.Warn("could not write report", zap.String("path", path), zap.Error(werr))
		}
	}
	return err
}

func printReport(w io.Writer, rep *scan.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCOL\tROW\tTARGET\tRESULT\tDETAIL")
	for i, o := range rep.Outcomes {
		detail := o.Path
		if o.Err != "" {
			detail = o.Err
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\n", i+1, o.Tile.Col, o.Tile.Row, o.Target, o.Result, detail)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nscan %s: %d/%d tiles visited, %d saved, %d capture failed, %d save failed in %s\n",
		rep.ID,
		len(rep.Outcomes), rep.Width*rep.Height,
		rep.Count(scan.Saved), rep.Count(scan.CaptureFailed), rep.Count(scan.SaveFailed),
		rep.Finished.Sub(rep.Started).Round(time.Millisecond),
	)
	if rep.Error != "" {
		fmt.Fprintln(w, "aborted:", rep.Error)
	}
}

func runHome(ctx context.Context, cfg *config.Config, stdout io.Writer, log *zap.Logger) error {
	st, err := openStage(ctx, cfg.Stage, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Home(ctx); err != nil {
		return err
	}
	pos, _ := st.Position()
	fmt.Fprintln(stdout, "position", pos)
	return nil
}

func runMove(ctx context.Context, cfg *config.Config, args []string, relative bool, stdout io.Writer, log *zap.Logger) error {
	if len(args) != 2 {
		return errors.New("move needs X and Y")
	}
	x, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("parse X: %w", err)
	}
	y, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("parse Y: %w", err)
	}

	st, err := openStage(ctx, cfg.Stage, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if relative {
		if err := st.Home(ctx); err != nil {
			return fmt.Errorf("home: %w", err)
		}
		err = st.MoveRelative(ctx, x, y)
	} else {
		err = st.MoveTo(ctx, x, y)
	}
	if err != nil {
		return err
	}
	pos, _ := st.Position()
	fmt.Fprintln(stdout, "position", pos)
	return nil
}

func runPorts(ctx context.Context, cfg *config.Config, stdout io.Writer, log *zap.Logger) error {
	if cfg.Stage.Driver == "spjs" {
		c := spjs.NewClient(cfg.Stage.SPJSURL, log)
		defer c.Close()
		lctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		ports, err := c.List(lctx)
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Fprintf(stdout, "%s\t%s\topen=%t\n", p.Name, p.Friendly, p.IsOpen)
		}
		return nil
	}

	ports, err := serialport.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(stdout, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(stdout, p)
	}
	if serialport.IsPattern(cfg.Stage.Port) {
		if res, err := serialport.Resolve(cfg.Stage.Port); err == nil {
			fmt.Fprintf(stdout, "\n%s resolves to %s\n", cfg.Stage.Port, res)
		}
	}
	return nil
}
