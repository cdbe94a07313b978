package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/joeycumines/go-loopsync"
	"github.com/joeycumines/logiface"
	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), `config.toml`)
	require.NoError(t, os.WriteFile(name, []byte(content), 0o600))
	return name
}

func TestLoadConfig_defaults(t *testing.T) {
	cfg, err := loadConfig(nil, io.Discard)
	require.NoError(t, err)
	if diff := cmp.Diff(defaultConfig(), cfg); diff != `` {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_fileThenFlags(t *testing.T) {
	name := writeConfigFile(t, `
log_level = "debug"
priority = "high"
timeout = "3s"
producers = 7
posts = 11
panic_every = 5
workers = 3
trace = true
`)

	cfg, err := loadConfig([]string{`--config`, name, `--posts=13`, `--trace=false`}, io.Discard)
	require.NoError(t, err)
	if diff := cmp.Diff(&Config{
		LogLevel:   `debug`,
		Priority:   `high`,
		Timeout:    duration{3 * time.Second},
		Producers:  7,
		Posts:      13,
		PanicEvery: 5,
		Workers:    3,
		Trace:      false,
	}, cfg); diff != `` {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}

	level, err := cfg.level()
	require.NoError(t, err)
	assert.Equal(t, logiface.LevelDebug, level)
	priority, err := cfg.priority()
	require.NoError(t, err)
	assert.Equal(t, loopsync.PriorityHigh, priority)
}

func TestLoadConfig_errors(t *testing.T) {
	badFile := writeConfigFile(t, `producers = "many"`)
	for _, tc := range [...]struct {
		name string
		args []string
	}{
		{`unknown flag`, []string{`--nope`}},
		{`positional argument`, []string{`extra`}},
		{`missing file`, []string{`-c`, filepath.Join(t.TempDir(), `missing.toml`)}},
		{`bad file`, []string{`-c`, badFile}},
		{`zero producers`, []string{`-p`, `0`}},
		{`negative posts`, []string{`--posts=-1`}},
		{`negative panic every`, []string{`--panic-every=-2`}},
		{`zero workers`, []string{`--workers=0`}},
		{`zero timeout`, []string{`--timeout=0s`}},
		{`unknown level`, []string{`--log-level=loud`}},
		{`unknown priority`, []string{`--priority=urgent`}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := loadConfig(tc.args, io.Discard)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoadConfig_help(t *testing.T) {
	_, err := loadConfig([]string{`--help`}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestConfig_level(t *testing.T) {
	for _, tc := range [...]struct {
		in   string
		want logiface.Level
	}{
		{`disabled`, logiface.LevelDisabled},
		{`err`, logiface.LevelError},
		{` Warning `, logiface.LevelWarning},
		{`INFO`, logiface.LevelInformational},
		{`trace`, logiface.LevelTrace},
	} {
		level, err := (&Config{LogLevel: tc.in}).level()
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, level, tc.in)
	}
}
