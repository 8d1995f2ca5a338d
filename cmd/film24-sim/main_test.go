package main

import (
	"bytes"
	"context"
	"flag"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) *CLIConfig {
	t.Helper()
	c, err := parseCLIFlags(flag.NewFlagSet("film24-sim", flag.ContinueOnError), args)
	require.NoError(t, err)
	return c
}

func TestParseCLIFlagsDefaults(t *testing.T) {
	c := parse(t)
	assert.Equal(t, "none", c.filterID)
	assert.Equal(t, 90, c.frames)
	assert.Equal(t, 30, c.fps)
	assert.Equal(t, -1.0, c.slowMotion)
	assert.True(t, c.pace)
	require.NoError(t, validateCLIConfig(c))
}

func TestValidateCLIConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no frames", []string{"-frames", "0"}},
		{"fps", []string{"-fps", "0"}},
		{"fast fps", []string{"-fps", "1000"}},
		{"size", []string{"-width", "0"}},
		{"slowmo", []string{"-slowmo", "-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validateCLIConfig(parse(t, tt.args...)))
		})
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/film24.yaml", []byte("export: {slow_motion: 4}\nlog: {level: warn}\n"), 0o644))

	cfg, err := loadConfig(fs, parse(t, "-config", "/film24.yaml", "-out", "/clips"))
	require.NoError(t, err)
	assert.Equal(t, "/clips", cfg.Storage.Dir)
	assert.Equal(t, 4.0, cfg.Export.SlowMotion)
	assert.Equal(t, "warn", cfg.Log.Level)

	cfg, err = loadConfig(fs, parse(t, "-config", "/film24.yaml", "-slowmo", "0", "-log-level", "error"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Export.SlowMotion)
	assert.Equal(t, "error", cfg.Log.Level)

	_, err = loadConfig(fs, parse(t, "-log-level", "loud"))
	assert.Error(t, err)
}

func TestRunRecordsClip(t *testing.T) {
	fs := afero.NewMemMapFs()
	var out bytes.Buffer
	c := parse(t, "-out", "/clips", "-frames", "6", "-width", "32", "-height", "24", "-log-level", "error")
	require.NoError(t, run(context.Background(), fs, c, &out))

	assert.Contains(t, out.String(), "Delivered 6 frames")
	assert.Contains(t, out.String(), "Output: /clips/")
	assert.NotContains(t, out.String(), "Original:")

	entries, err := afero.ReadDir(fs, "/clips")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunUnknownFilter(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := parse(t, "-out", "/clips", "-frames", "2", "-filter", "missing", "-pace=false", "-log-level", "error")
	err := run(context.Background(), fs, c, &bytes.Buffer{})
	assert.ErrorContains(t, err, "start recording")
}
