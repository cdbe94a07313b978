// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/go-loopsync"
	"github.com/joeycumines/logiface"
	flag "github.com/spf13/pflag"
)

// Config is the demo configuration. Values are read from an optional TOML
// file, then overridden by any flags that were set explicitly.
type Config struct {
	LogLevel   string   `toml:"log_level"`
	Priority   string   `toml:"priority"`
	Timeout    duration `toml:"timeout"`
	Producers  int      `toml:"producers"`
	Posts      int      `toml:"posts"`
	PanicEvery int      `toml:"panic_every"`
	Workers    int      `toml:"workers"`
	Trace      bool     `toml:"trace"`
}

// duration decodes from TOML strings like "5s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func defaultConfig() *Config {
	return &Config{
		LogLevel:  logiface.LevelInformational.String(),
		Priority:  loopsync.PriorityNormal.String(),
		Timeout:   duration{10 * time.Second},
		Producers: 4,
		Posts:     100,
		Workers:   2,
	}
}

// loadConfig parses args. The returned error is flag.ErrHelp if usage was
// requested.
func loadConfig(args []string, output io.Writer) (*Config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet(`loopsync-demo`, flag.ContinueOnError)
	fs.SetOutput(output)
	configFile := fs.StringP(`config`, `c`, ``, `path to a TOML config file`)
	producers := fs.IntP(`producers`, `p`, cfg.Producers, `number of producer goroutines`)
	posts := fs.IntP(`posts`, `n`, cfg.Posts, `callbacks posted by each producer`)
	panicEvery := fs.Int(`panic-every`, cfg.PanicEvery, `every nth callback panics, 0 to disable`)
	workers := fs.Int(`workers`, cfg.Workers, `max concurrency of the worker pool`)
	logLevel := fs.String(`log-level`, cfg.LogLevel, `log level, e.g. debug, info, warning`)
	priority := fs.String(`priority`, cfg.Priority, `scheduling priority, normal or high`)
	timeout := fs.Duration(`timeout`, cfg.Timeout.Duration, `time allowed for all callbacks to run`)
	trace := fs.Bool(`trace`, cfg.Trace, `emit OpenTelemetry spans, via the global tracer provider`)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, fmt.Errorf(`unexpected arguments: %q`, fs.Args())
	}

	if *configFile != `` {
		if _, err := toml.DecodeFile(*configFile, cfg); err != nil {
			return nil, fmt.Errorf(`config file %s: %w`, *configFile, err)
		}
	}

	if fs.Changed(`producers`) {
		cfg.Producers = *producers
	}
	if fs.Changed(`posts`) {
		cfg.Posts = *posts
	}
	if fs.Changed(`panic-every`) {
		cfg.PanicEvery = *panicEvery
	}
	if fs.Changed(`workers`) {
		cfg.Workers = *workers
	}
	if fs.Changed(`log-level`) {
		cfg.LogLevel = *logLevel
	}
	if fs.Changed(`priority`) {
		cfg.Priority = *priority
	}
	if fs.Changed(`timeout`) {
		cfg.Timeout.Duration = *timeout
	}
	if fs.Changed(`trace`) {
		cfg.Trace = *trace
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (x *Config) validate() error {
	var errs []error
	if x.Producers <= 0 {
		errs = append(errs, errors.New(`producers must be positive`))
	}
	if x.Posts < 0 {
		errs = append(errs, errors.New(`posts must not be negative`))
	}
	if x.PanicEvery < 0 {
		errs = append(errs, errors.New(`panic_every must not be negative`))
	}
	if x.Workers <= 0 {
		errs = append(errs, errors.New(`workers must be positive`))
	}
	if x.Timeout.Duration <= 0 {
		errs = append(errs, errors.New(`timeout must be positive`))
	}
	if _, err := x.level(); err != nil {
		errs = append(errs, err)
	}
	if _, err := x.priority(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (x *Config) level() (logiface.Level, error) {
	name := strings.ToLower(strings.TrimSpace(x.LogLevel))
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == name {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf(`unknown log level: %q`, x.LogLevel)
}

func (x *Config) priority() (loopsync.Priority, error) {
	for _, p := range [...]loopsync.Priority{loopsync.PriorityNormal, loopsync.PriorityHigh} {
		if strings.EqualFold(strings.TrimSpace(x.Priority), p.String()) {
			return p, nil
		}
	}
	return loopsync.PriorityNormal, fmt.Errorf(`unknown priority: %q`, x.Priority)
}
