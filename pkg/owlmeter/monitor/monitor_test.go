package monitor

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/elevated-systems/owlmeter/pkg/owlmeter/sampler"
	samplermock "github.com/elevated-systems/owlmeter/pkg/owlmeter/sampler/mock"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

// MockObserver is a mock implementation of Observer for testing
type MockObserver struct {
	mock.Mock
}

func (m *MockObserver) ObserveSample(sample sampler.ProcessSample) {
	m.Called(sample)
}

func (m *MockObserver) ObserveMiss(err error) {
	m.Called(err)
}

func TestMonitorLifecycle(t *testing.T) {
	fakeClock := testingclock.NewFakeClock(time.Unix(1700000000, 0))
	s := &samplermock.MockSampler{
		ProcessFunc: samplermock.Sequence(
			sampler.ProcessSample{CPUPercent: 20, RSSBytes: 1_024_000},
			sampler.ProcessSample{CPUPercent: 80, RSSBytes: 4_096_000},
			sampler.ProcessSample{CPUPercent: 50, RSSBytes: 2_048_000},
		),
		NetworkFunc: samplermock.NetworkSequence(
			sampler.NetworkCounters{SentBytes: 100, ReceivedBytes: 200},
			sampler.NetworkCounters{SentBytes: 150, ReceivedBytes: 260},
		),
	}

	m := New(42, s, WithClock(fakeClock))
	m.Start()

	require.Eventually(t, func() bool { return m.SampleCount() == 1 }, waitFor, tick)
	fakeClock.Step(DefaultInterval)
	require.Eventually(t, func() bool { return m.SampleCount() == 2 }, waitFor, tick)
	fakeClock.Step(DefaultInterval)
	require.Eventually(t, func() bool { return m.SampleCount() == 3 }, waitFor, tick)

	m.Stop()
	metrics := m.Finalize(1500 * time.Millisecond)

	assert.Equal(t, uint64(1500), metrics.DurationMs)
	assert.InDelta(t, 50.0, metrics.CPUAvg, 1e-9)
	assert.InDelta(t, 80.0, metrics.CPUPeak, 1e-9)
	assert.InDelta(t, 4.0, metrics.MemoryMB, 1e-9)
	assert.Equal(t, uint64(50), metrics.NetworkSent)
	assert.Equal(t, uint64(60), metrics.NetworkReceived)
	assert.Equal(t, 3, metrics.Samples)
}

func TestMonitorZeroSamples(t *testing.T) {
	s := &samplermock.MockSampler{} // process is never resolvable

	m := New(7, s, WithInterval(5*time.Millisecond), WithStopGrace(20*time.Millisecond))
	m.Start()
	m.Stop()

	metrics := m.Finalize(50 * time.Millisecond)
	assert.Equal(t, ExecutionMetrics{DurationMs: 50}, metrics)
}

func TestMonitorNoSampleAfterStop(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	s := &samplermock.MockSampler{
		ProcessFunc: func(pid int) (sampler.ProcessSample, error) {
			if calls.Add(1) == 1 {
				return sampler.ProcessSample{CPUPercent: 10, RSSBytes: 1_024_000}, nil
			}
			// The second cycle is still in flight when Stop is called
			close(entered)
			<-release
			return sampler.ProcessSample{CPUPercent: 99, RSSBytes: 999_999_999}, nil
		},
	}

	m := New(7, s,
		WithClock(clock.RealClock{}),
		WithInterval(5*time.Millisecond),
		WithStopGrace(20*time.Millisecond))
	m.Start()

	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("sampling loop never reached its second cycle")
	}

	m.Stop()
	close(release)
	<-m.doneCh

	metrics := m.Finalize(time.Second)
	assert.Equal(t, 1, metrics.Samples)
	assert.InDelta(t, 10.0, metrics.CPUPeak, 1e-9)
	assert.InDelta(t, 1.0, metrics.MemoryMB, 1e-9)
}

func TestMonitorObserver(t *testing.T) {
	fakeClock := testingclock.NewFakeClock(time.Unix(1700000000, 0))
	sample := sampler.ProcessSample{CPUPercent: 12.5, RSSBytes: 2048}
	s := &samplermock.MockSampler{ProcessFunc: samplermock.Sequence(sample)}

	var missed atomic.Bool
	observer := &MockObserver{}
	observer.On("ObserveSample", sample).Return()
	observer.On("ObserveMiss", sampler.ErrProcessNotFound).
		Run(func(mock.Arguments) { missed.Store(true) }).
		Return()

	m := New(9, s, WithClock(fakeClock), WithObserver(observer))
	m.Start()

	require.Eventually(t, func() bool { return m.SampleCount() == 1 }, waitFor, tick)
	fakeClock.Step(DefaultInterval)
	require.Eventually(t, missed.Load, waitFor, tick)
	m.Stop()

	observer.AssertCalled(t, "ObserveSample", sample)
	observer.AssertCalled(t, "ObserveMiss", sampler.ErrProcessNotFound)
}

// countingObserver counts observer calls from the sampling goroutine
type countingObserver struct {
	samples atomic.Int32
	misses  atomic.Int32
}

func (o *countingObserver) ObserveSample(sampler.ProcessSample) { o.samples.Add(1) }
func (o *countingObserver) ObserveMiss(error)                   { o.misses.Add(1) }

func TestMonitorNoMissObservedAfterStop(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	s := &samplermock.MockSampler{
		ProcessFunc: func(pid int) (sampler.ProcessSample, error) {
			if calls.Add(1) == 1 {
				return sampler.ProcessSample{CPUPercent: 10, RSSBytes: 1_024_000}, nil
			}
			close(entered)
			<-release
			return sampler.ProcessSample{}, sampler.ErrProcessNotFound
		},
	}
	observer := &countingObserver{}

	m := New(8, s,
		WithClock(clock.RealClock{}),
		WithInterval(5*time.Millisecond),
		WithStopGrace(20*time.Millisecond),
		WithObserver(observer))
	m.Start()

	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("sampling loop never reached its second cycle")
	}

	m.Stop()
	missesAtStop := observer.misses.Load()
	close(release)
	<-m.doneCh

	assert.Equal(t, int32(0), missesAtStop)
	assert.Equal(t, int32(0), observer.misses.Load(), "a miss finishing after Stop must not be observed")
	assert.Equal(t, int32(1), observer.samples.Load())
}

func TestMonitorSamplerErrorIsSkipped(t *testing.T) {
	fakeClock := testingclock.NewFakeClock(time.Unix(1700000000, 0))
	var calls atomic.Int32
	s := &samplermock.MockSampler{
		ProcessFunc: func(pid int) (sampler.ProcessSample, error) {
			if calls.Add(1) == 1 {
				return sampler.ProcessSample{}, errors.New("permission denied")
			}
			return sampler.ProcessSample{CPUPercent: 30}, nil
		},
	}

	m := New(3, s, WithClock(fakeClock))
	m.Start()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, tick)
	fakeClock.Step(DefaultInterval)
	require.Eventually(t, func() bool { return m.SampleCount() == 1 }, waitFor, tick)
	m.Stop()

	assert.InDelta(t, 30.0, m.Finalize(time.Second).CPUAvg, 1e-9)
}

func TestMonitorNetworkBaselineFailure(t *testing.T) {
	s := &samplermock.MockSampler{
		NetworkFunc: func() (sampler.NetworkCounters, error) {
			return sampler.NetworkCounters{}, errors.New("no /proc/net/dev")
		},
	}

	m := New(3, s)
	m.Stop()

	metrics := m.Finalize(10 * time.Millisecond)
	assert.Equal(t, uint64(0), metrics.NetworkSent)
	assert.Equal(t, uint64(0), metrics.NetworkReceived)
}

func TestMonitorStartStopIdempotent(t *testing.T) {
	s := &samplermock.MockSampler{}
	m := New(3, s, WithInterval(5*time.Millisecond), WithStopGrace(20*time.Millisecond))

	m.Start()
	m.Start()
	m.Stop()
	m.Stop()

	// Starting a stopped monitor does nothing
	m.Start()
	assert.Equal(t, 0, m.SampleCount())
}

func TestMonitorOptionsIgnoreInvalidValues(t *testing.T) {
	m := New(1, &samplermock.MockSampler{}, WithInterval(0), WithStopGrace(-time.Second), WithClock(nil))
	assert.Equal(t, DefaultInterval, m.interval)
	assert.Equal(t, DefaultStopGrace, m.grace)
	assert.NotNil(t, m.clock)
}
