// Package monitor samples a running process in the background and reduces
// the samples into ExecutionMetrics once the process has finished.
package monitor

import (
	"errors"
	"sync"
	"time"

	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/elevated-systems/owlmeter/pkg/owlmeter/sampler"
)

const (
	// DefaultInterval is the time between two sampling cycles
	DefaultInterval = 100 * time.Millisecond

	// DefaultStopGrace bounds how long Stop waits for the sampling loop to exit.
	// It must exceed the interval so an in-flight cycle can observe the stop signal.
	DefaultStopGrace = 150 * time.Millisecond
)

// Option configures a Monitor
type Option func(*Monitor)

// WithInterval sets the sampling interval
func WithInterval(interval time.Duration) Option {
	return func(m *Monitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithStopGrace sets the maximum time Stop waits for the sampling loop
func WithStopGrace(grace time.Duration) Option {
	return func(m *Monitor) {
		if grace > 0 {
			m.grace = grace
		}
	}
}

// WithClock replaces the real clock, mainly for tests
func WithClock(clk clock.WithTicker) Option {
	return func(m *Monitor) {
		if clk != nil {
			m.clock = clk
		}
	}
}

// WithObserver registers an observer for every sampling outcome
func WithObserver(observer Observer) Option {
	return func(m *Monitor) {
		m.observer = observer
	}
}

// Monitor samples one process. A Monitor is bound to a single pid and a
// single run: New, Start, Stop, then Finalize.
type Monitor struct {
	pid          int
	sampler      sampler.Sampler
	clock        clock.WithTicker
	interval     time.Duration
	grace        time.Duration
	observer     Observer
	networkStart sampler.NetworkCounters

	mutex         sync.Mutex
	cpuSamples    []float64
	memoryPeak    uint64 // bytes
	running       bool
	stopRequested bool
	stopped       bool // no more samples are accepted once set

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates an idle monitor for pid and captures the network baseline
func New(pid int, s sampler.Sampler, opts ...Option) *Monitor {
	m := &Monitor{
		pid:        pid,
		sampler:    s,
		clock:      clock.RealClock{},
		interval:   DefaultInterval,
		grace:      DefaultStopGrace,
		cpuSamples: make([]float64, 0, 64),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	baseline, err := s.Network()
	if err != nil {
		klog.V(2).InfoS("Failed to read network baseline, assuming zero", "pid", pid, "err", err)
	}
	m.networkStart = baseline

	return m
}

// Start launches the sampling loop and returns immediately
func (m *Monitor) Start() {
	m.mutex.Lock()
	if m.running || m.stopRequested {
		m.mutex.Unlock()
		return
	}
	m.running = true
	m.mutex.Unlock()

	klog.V(2).InfoS("Starting process monitor", "pid", m.pid, "interval", m.interval)
	go m.run()
}

// Stop signals the sampling loop and waits for it to exit, bounded by the
// stop grace. No sample is recorded after Stop returns. Only the first call
// waits; later calls return immediately.
func (m *Monitor) Stop() {
	m.mutex.Lock()
	if m.stopRequested {
		m.mutex.Unlock()
		return
	}
	m.stopRequested = true
	running := m.running
	m.mutex.Unlock()

	close(m.stopCh)

	if running {
		select {
		case <-m.doneCh:
		case <-m.clock.After(m.grace):
			klog.V(2).InfoS("Sampling loop still busy after stop grace, discarding late samples",
				"pid", m.pid,
				"grace", m.grace)
		}
	}

	m.mutex.Lock()
	m.stopped = true
	count := len(m.cpuSamples)
	m.mutex.Unlock()

	klog.V(2).InfoS("Stopped process monitor", "pid", m.pid, "sampleCount", count)
}

// Finalize reduces the collected samples into ExecutionMetrics using the
// wall-clock duration measured by the caller. Call it after Stop.
func (m *Monitor) Finalize(duration time.Duration) ExecutionMetrics {
	m.mutex.Lock()
	samples := make([]float64, len(m.cpuSamples))
	copy(samples, m.cpuSamples)
	memoryPeak := m.memoryPeak
	m.mutex.Unlock()

	networkEnd, err := m.sampler.Network()
	if err != nil {
		klog.V(2).InfoS("Failed to read final network counters, reporting no traffic", "pid", m.pid, "err", err)
		networkEnd = m.networkStart
	}

	return Aggregate(samples, memoryPeak, m.networkStart, networkEnd, duration)
}

// SampleCount returns the number of CPU samples recorded so far
func (m *Monitor) SampleCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.cpuSamples)
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		m.sampleOnce()

		select {
		case <-m.stopCh:
			return
		case <-ticker.C():
		}
	}
}

// sampleOnce performs one sampling cycle. A process that can no longer be
// resolved is not an error, the cycle simply records nothing.
func (m *Monitor) sampleOnce() {
	sample, err := m.sampler.Process(m.pid)
	if err != nil {
		if !errors.Is(err, sampler.ErrProcessNotFound) {
			klog.V(2).InfoS("Failed to sample process", "pid", m.pid, "err", err)
		}
		m.mutex.Lock()
		stopped := m.stopped
		m.mutex.Unlock()
		if m.observer != nil && !stopped {
			m.observer.ObserveMiss(err)
		}
		return
	}

	m.mutex.Lock()
	if m.stopped {
		m.mutex.Unlock()
		return
	}
	m.cpuSamples = append(m.cpuSamples, sample.CPUPercent)
	if sample.RSSBytes > m.memoryPeak {
		m.memoryPeak = sample.RSSBytes
	}
	count := len(m.cpuSamples)
	m.mutex.Unlock()

	klog.V(4).InfoS("Recorded process sample",
		"pid", m.pid,
		"cpuPercent", sample.CPUPercent,
		"rssBytes", sample.RSSBytes,
		"sampleCount", count)

	if m.observer != nil {
		m.observer.ObserveSample(sample)
	}
}
