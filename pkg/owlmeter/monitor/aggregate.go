package monitor

import (
	"time"

	"github.com/elevated-systems/owlmeter/pkg/owlmeter/sampler"
)

// bytesPerMB converts resident memory bytes into the megabyte figure used by
// the cost model
const bytesPerMB = 1_024_000

// Average returns the arithmetic mean of samples, or 0 when there are none
func Average(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// Peak returns the largest sample, seeded at 0
func Peak(samples []float64) float64 {
	peak := 0.0
	for _, s := range samples {
		if s > peak {
			peak = s
		}
	}
	return peak
}

// BytesToMB converts a byte count to megabytes
func BytesToMB(bytes uint64) float64 {
	return float64(bytes) / bytesPerMB
}

// SaturatingSub returns end-start, or 0 if the counter was reset or wrapped
func SaturatingSub(end, start uint64) uint64 {
	if end < start {
		return 0
	}
	return end - start
}

// Aggregate reduces raw sampling state into ExecutionMetrics
func Aggregate(cpuSamples []float64, memoryPeakBytes uint64, networkStart, networkEnd sampler.NetworkCounters, duration time.Duration) ExecutionMetrics {
	if duration < 0 {
		duration = 0
	}

	return ExecutionMetrics{
		DurationMs:      uint64(duration.Milliseconds()),
		CPUAvg:          Average(cpuSamples),
		CPUPeak:         Peak(cpuSamples),
		MemoryMB:        BytesToMB(memoryPeakBytes),
		NetworkSent:     SaturatingSub(networkEnd.SentBytes, networkStart.SentBytes),
		NetworkReceived: SaturatingSub(networkEnd.ReceivedBytes, networkStart.ReceivedBytes),
		Samples:         len(cpuSamples),
	}
}
