package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (x *lockedBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *lockedBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

func TestRunDemo(t *testing.T) {
	for _, tc := range [...]struct {
		name string
		cfg  Config
		want summary
	}{
		{
			`no panics`,
			Config{Producers: 3, Posts: 50, Workers: 1},
			summary{Posted: 150, Ran: 150},
		},
		{
			`panic every 7th`,
			Config{Producers: 3, Posts: 50, PanicEvery: 7, Workers: 2},
			summary{Posted: 150, Ran: 150, Contained: 21},
		},
		{
			`high priority traced`,
			Config{Producers: 2, Posts: 10, PanicEvery: 1, Workers: 1, Priority: `high`, Trace: true},
			summary{Posted: 20, Ran: 20, Contained: 20},
		},
		{
			`no posts`,
			Config{Producers: 1, Workers: 1},
			summary{},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			cfg.LogLevel = `info`
			if cfg.Priority == `` {
				cfg.Priority = `normal`
			}
			cfg.Timeout = duration{10 * time.Second}
			require.NoError(t, cfg.validate())

			result, err := runDemo(context.Background(), &cfg, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, *result)
		})
	}
}

func TestRunDemo_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := defaultConfig()
	_, err := runDemo(ctx, cfg, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun(t *testing.T) {
	var stdout lockedBuffer
	code := run(context.Background(), []string{`--posts=5`, `--panic-every=2`, `--log-level=debug`}, &stdout, io.Discard)
	assert.Equal(t, 0, code)
	out := stdout.String()
	assert.Contains(t, out, `"msg":"demo complete"`)
	assert.Contains(t, out, `"msg":"callback panicked"`)
	assert.Equal(t, 1, strings.Count(out, `loopsync: bridge created`), out)
}

func TestRun_invalidArgs(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{`--producers=0`}, io.Discard, &stderr))
	assert.Contains(t, stderr.String(), `producers must be positive`)
	assert.Equal(t, 0, run(context.Background(), []string{`-h`}, io.Discard, io.Discard))
}
