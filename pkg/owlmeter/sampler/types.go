// Package sampler provides point-in-time reads of process and host resource
// usage. The monitor polls a Sampler once per sampling cycle.
package sampler

import "errors"

// ErrProcessNotFound is returned when the requested pid cannot be resolved,
// typically because the process has already exited.
var ErrProcessNotFound = errors.New("process not found")

// ProcessSample is a single reading for one process
type ProcessSample struct {
	CPUPercent float64 // CPU usage since the previous read, may exceed 100 on multi-core hosts
	RSSBytes   uint64  // Resident set size in bytes
}

// NetworkCounters holds cumulative host-wide byte counters summed over all interfaces
type NetworkCounters struct {
	SentBytes     uint64
	ReceivedBytes uint64
}

// Sampler reads instantaneous resource usage
type Sampler interface {
	// Process returns the current reading for pid, or ErrProcessNotFound
	Process(pid int) (ProcessSample, error)

	// Network returns host-wide cumulative network counters
	Network() (NetworkCounters, error)
}
