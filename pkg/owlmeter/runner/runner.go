// Package runner spawns the target program, supervises it to completion and
// drives a monitor around its lifetime.
package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/elevated-systems/owlmeter/pkg/owlmeter/monitor"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/sampler"
)

// Option configures a Runner
type Option func(*Runner)

// WithMonitorOptions passes options to every monitor the runner creates
func WithMonitorOptions(opts ...monitor.Option) Option {
	return func(r *Runner) {
		r.monitorOpts = append(r.monitorOpts, opts...)
	}
}

// WithClock replaces the real clock used for the wall-clock duration and the monitor
func WithClock(clk clock.WithTicker) Option {
	return func(r *Runner) {
		if clk != nil {
			r.clock = clk
		}
	}
}

// WithStdio replaces the standard streams handed to the child process
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdin = stdin
		r.stdout = stdout
		r.stderr = stderr
	}
}

// Runner executes one command at a time under a monitor
type Runner struct {
	sampler     sampler.Sampler
	clock       clock.WithTicker
	monitorOpts []monitor.Option

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// New creates a runner that samples through s
func New(s sampler.Sampler, opts ...Option) *Runner {
	r := &Runner{
		sampler: s,
		clock:   clock.RealClock{},
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run spawns argv[0] with the remaining arguments, samples it until it exits
// and returns the collected metrics. A spawn failure returns *SpawnError and
// an unsuccessful exit returns *ExitError; in both cases no metrics are
// returned.
func (r *Runner) Run(argv []string) (monitor.ExecutionMetrics, error) {
	if len(argv) == 0 || argv[0] == "" {
		return monitor.ExecutionMetrics{}, ErrNoCommand
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	start := r.clock.Now()
	if err := cmd.Start(); err != nil {
		return monitor.ExecutionMetrics{}, &SpawnError{Path: argv[0], Err: err}
	}

	pid := cmd.Process.Pid
	klog.V(1).InfoS("Started process", "pid", pid, "command", argv[0], "args", argv[1:])

	opts := append([]monitor.Option{monitor.WithClock(r.clock)}, r.monitorOpts...)
	mon := monitor.New(pid, r.sampler, opts...)
	mon.Start()

	waitErr := cmd.Wait()
	duration := r.clock.Since(start)
	mon.Stop()

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			klog.V(1).InfoS("Process failed", "pid", pid, "state", exitErr.String(), "duration", duration)
			return monitor.ExecutionMetrics{}, &ExitError{Code: exitErr.ExitCode(), State: exitErr.String()}
		}
		return monitor.ExecutionMetrics{}, fmt.Errorf("failed waiting for process %d: %w", pid, waitErr)
	}

	metrics := mon.Finalize(duration)
	klog.V(1).InfoS("Process completed",
		"pid", pid,
		"duration", duration,
		"sampleCount", metrics.Samples)

	return metrics, nil
}
