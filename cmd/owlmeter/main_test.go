package main

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOptions(t *testing.T, args ...string) (*options, *flag.FlagSet) {
	t.Helper()

	fs := flag.NewFlagSet("owlmeter", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var opts options
	opts.register(fs)
	require.NoError(t, fs.Parse(args))
	return &opts, fs
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	opts, fs := parseOptions(t,
		"-region=eu-west-1",
		"-output=json",
		"-interval=25ms",
		"-stop-grace=80ms",
		"-metrics-addr=:9400",
		"-pushgateway=http://localhost:9091",
		"-metrics-textfile=/tmp/owlmeter.prom",
		"python3", "script.py",
	)

	cfg, err := loadConfig(opts, fs)
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, 25*time.Millisecond, cfg.Sampling.Interval)
	assert.Equal(t, 80*time.Millisecond, cfg.Sampling.StopGrace)
	assert.Equal(t, ":9400", cfg.Observability.MetricsAddr)
	assert.Equal(t, "http://localhost:9091", cfg.Observability.PushgatewayURL)
	assert.Equal(t, "/tmp/owlmeter.prom", cfg.Observability.TextfilePath)
	assert.Equal(t, []string{"python3", "script.py"}, fs.Args())
}

func TestLoadConfigUnsetFlagsKeepEnvironment(t *testing.T) {
	t.Setenv("OWLMETER_REGION", "sa-east-1")

	opts, fs := parseOptions(t, "-output=yaml", "true")

	cfg, err := loadConfig(opts, fs)
	require.NoError(t, err)
	assert.Equal(t, "sa-east-1", cfg.Region)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, 100*time.Millisecond, cfg.Sampling.Interval)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown region", args: []string{"-region=moon-1", "true"}},
		{name: "unknown output", args: []string{"-output=xml", "true"}},
		{name: "grace below interval", args: []string{"-interval=200ms", "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, fs := parseOptions(t, tt.args...)
			_, err := loadConfig(opts, fs)
			assert.Error(t, err)
		})
	}
}
