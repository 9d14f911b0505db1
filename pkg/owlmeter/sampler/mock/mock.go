package mock

import (
	"sync"

	"github.com/elevated-systems/owlmeter/pkg/owlmeter/sampler"
)

// MockSampler implements sampler.Sampler for testing
type MockSampler struct {
	ProcessFunc func(pid int) (sampler.ProcessSample, error)
	NetworkFunc func() (sampler.NetworkCounters, error)
}

// Process delegates to the mock function
func (m *MockSampler) Process(pid int) (sampler.ProcessSample, error) {
	if m.ProcessFunc != nil {
		return m.ProcessFunc(pid)
	}
	return sampler.ProcessSample{}, sampler.ErrProcessNotFound
}

// Network delegates to the mock function
func (m *MockSampler) Network() (sampler.NetworkCounters, error) {
	if m.NetworkFunc != nil {
		return m.NetworkFunc()
	}
	return sampler.NetworkCounters{}, nil
}

// Sequence returns a ProcessFunc that yields samples in order and reports
// the process as gone once they are exhausted
func Sequence(samples ...sampler.ProcessSample) func(pid int) (sampler.ProcessSample, error) {
	var mutex sync.Mutex
	next := 0
	return func(pid int) (sampler.ProcessSample, error) {
		mutex.Lock()
		defer mutex.Unlock()
		if next >= len(samples) {
			return sampler.ProcessSample{}, sampler.ErrProcessNotFound
		}
		s := samples[next]
		next++
		return s, nil
	}
}

// NetworkSequence returns a NetworkFunc that yields counters in order and
// repeats the last one once exhausted
func NetworkSequence(counters ...sampler.NetworkCounters) func() (sampler.NetworkCounters, error) {
	var mutex sync.Mutex
	next := 0
	return func() (sampler.NetworkCounters, error) {
		mutex.Lock()
		defer mutex.Unlock()
		if len(counters) == 0 {
			return sampler.NetworkCounters{}, nil
		}
		c := counters[min(next, len(counters)-1)]
		next++
		return c, nil
	}
}
