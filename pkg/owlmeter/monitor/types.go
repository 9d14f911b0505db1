package monitor

import (
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/sampler"
)

// ExecutionMetrics summarizes the resource usage of one supervised run
type ExecutionMetrics struct {
	DurationMs      uint64  `json:"durationMs" yaml:"durationMs"`           // Wall-clock run time
	CPUAvg          float64 `json:"cpuAvg" yaml:"cpuAvg"`                   // Mean CPU percentage over all samples
	CPUPeak         float64 `json:"cpuPeak" yaml:"cpuPeak"`                 // Highest CPU percentage sample
	MemoryMB        float64 `json:"memoryMB" yaml:"memoryMB"`               // Peak resident memory
	NetworkSent     uint64  `json:"networkSent" yaml:"networkSent"`         // Host-wide bytes sent during the run
	NetworkReceived uint64  `json:"networkReceived" yaml:"networkReceived"` // Host-wide bytes received during the run
	Samples         int     `json:"samples" yaml:"samples"`                 // Number of CPU samples captured
}

// Observer receives every sampling outcome as it happens
type Observer interface {
	// ObserveSample is called after a sample has been recorded
	ObserveSample(sample sampler.ProcessSample)

	// ObserveMiss is called when a cycle could not read the process
	ObserveMiss(err error)
}
