// Command musbctl inspects MUSB controller profiles, reads the configuration
// of a controller on a Linux SoC and runs a simulated enumeration against
// the device driver.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/pkg/prof"
)

var (
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=error, 1=warn, 2=info, 3=debug",
		Value: 1,
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Format logs as JSON",
	}
	cpuProfileFlag = &cli.StringFlag{
		Name:  "cpuprofile",
		Usage: "Write a CPU profile to the given file",
	}
	memProfileFlag = &cli.StringFlag{
		Name:  "memprofile",
		Usage: "Write a heap profile to the given file on exit",
	}
	blockProfileFlag = &cli.StringFlag{
		Name:  "blockprofile",
		Usage: "Write a goroutine blocking profile to the given file on exit",
	}
	mutexProfileFlag = &cli.StringFlag{
		Name:  "mutexprofile",
		Usage: "Write a mutex contention profile to the given file on exit",
	}

	session *prof.Session

	app = &cli.App{
		Name:        filepath.Base(os.Args[0]),
		Usage:       "MUSB device controller tool",
		Writer:      os.Stdout,
		ErrWriter:   os.Stderr,
		HideVersion: true,
		Flags: []cli.Flag{
			verbosityFlag, jsonFlag,
			cpuProfileFlag, memProfileFlag, blockProfileFlag, mutexProfileFlag,
		},
		Before: func(ctx *cli.Context) error {
			if err := setupLogging(ctx); err != nil {
				return err
			}
			return startProfiling(ctx)
		},
		After: func(ctx *cli.Context) error {
			if session == nil {
				return nil
			}
			err := session.Stop()
			session = nil
			return err
		},
		Commands: []*cli.Command{
			profilesCommand,
			showCommand,
			validateCommand,
			readconfCommand,
			simulateCommand,
		},
	}
)

func main() {
	exit(app.Run(os.Args))
}

func verbosityLevel(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelError
	case v == 1:
		return slog.LevelWarn
	case v == 2:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// setupLogging points the driver logger at stderr, colorizing levels when
// stderr is a terminal.
func setupLogging(ctx *cli.Context) error {
	level := verbosityLevel(ctx.Int(verbosityFlag.Name))
	pkg.SetLogLevel(level)

	if ctx.Bool(jsonFlag.Name) {
		pkg.SetLogFormat(pkg.LogFormatJSON)
		return nil
	}

	fd := os.Stderr.Fd()
	usecolor := (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) && os.Getenv("TERM") != "dumb"
	var out io.Writer = os.Stderr
	opts := &slog.HandlerOptions{Level: level}
	if usecolor {
		out = colorable.NewColorableStderr()
		opts.ReplaceAttr = colorLevel
	}
	pkg.SetLogger(slog.New(slog.NewTextHandler(out, opts)))
	return nil
}

func startProfiling(ctx *cli.Context) error {
	cfg := prof.Config{
		CPU:   ctx.String(cpuProfileFlag.Name),
		Heap:  ctx.String(memProfileFlag.Name),
		Block: ctx.String(blockProfileFlag.Name),
		Mutex: ctx.String(mutexProfileFlag.Name),
	}
	if !cfg.Enabled() {
		return nil
	}
	s, err := prof.Start(cfg)
	if err != nil {
		return err
	}
	session = s
	return nil
}

func colorLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	color := 36 // cyan
	switch {
	case level >= slog.LevelError:
		color = 31
	case level >= slog.LevelWarn:
		color = 33
	case level >= slog.LevelInfo:
		color = 32
	}
	return slog.String(a.Key, fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, level))
}

func exit(err interface{}) {
	if err == nil {
		os.Exit(0)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
