// Command loopsync-demo posts callbacks onto an event loop, from many
// goroutines, and reports how they were dispatched.
//
// Usage:
//
//	loopsync-demo [--config file.toml] [--producers N] [--posts N] [--panic-every N] ...
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/joeycumines/go-loopsync"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	flag "github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	level, _ := cfg.level()
	logger := newLogger(stdout, level)
	loopsync.SetLogger(logger)
	defer loopsync.SetLogger(nil)

	result, err := runDemo(ctx, cfg, logger)
	if err != nil {
		logger.Err().Err(err).Log(`demo failed`)
		return 1
	}
	if result.Mismatched != 0 {
		return 1
	}
	return 0
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}
