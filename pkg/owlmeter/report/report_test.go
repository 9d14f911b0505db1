package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/elevated-systems/owlmeter/pkg/owlmeter/cost"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/monitor"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/pricing"
)

func sampleReport(t *testing.T) Report {
	t.Helper()

	estimator, err := cost.ForRegion(pricing.USEast1)
	require.NoError(t, err)

	metrics := monitor.ExecutionMetrics{
		DurationMs:      1000,
		CPUAvg:          50,
		CPUPeak:         80,
		MemoryMB:        100,
		NetworkSent:     1234,
		NetworkReceived: 5678,
		Samples:         10,
	}
	return New(pricing.USEast1, metrics, estimator.EstimateAll(metrics))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "text", want: FormatText},
		{input: "JSON", want: FormatJSON},
		{input: " yaml ", want: FormatYAML},
		{input: "xml", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	r := sampleReport(t)

	assert.Equal(t, pricing.USEast1, r.Region)
	assert.Equal(t, "us-east-1 (N. Virginia)", r.RegionName)
	assert.Equal(t, 0.5, r.Fargate.VCPU)
	assert.Equal(t, 1.0, r.Fargate.MemoryGB)
	assert.Equal(t, map[string]string{"cpu": "500m", "memory": "1Gi"}, r.EKS.PodRequests)
	assert.Greater(t, r.EKS.CostPerExecution, r.Fargate.CostPerExecution)
}

func TestWriteText(t *testing.T) {
	r := sampleReport(t)

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, FormatText))
	out := buf.String()

	assert.Contains(t, out, "COLLECTED METRICS")
	assert.Contains(t, out, "Duration:       1000 ms")
	assert.Contains(t, out, "CPU average:    50.00%")
	assert.Contains(t, out, "CPU peak:       80.00%")
	assert.Contains(t, out, "Memory used:    100.00 MB")
	assert.Contains(t, out, "Bytes sent:     1234 bytes")
	assert.Contains(t, out, "Bytes received: 5678 bytes")
	assert.Contains(t, out, "AWS COST ESTIMATE (us-east-1 (N. Virginia))")
	assert.Contains(t, out, "AWS Lambda:")
	assert.Contains(t, out, "ECS Fargate (0.5 vCPU, 1 GB):")
	assert.Contains(t, out, "EKS Fargate (requests: cpu=500m, memory=1Gi):")
	assert.Contains(t, out, "Cost per execution: $0.000002")
	assert.Contains(t, out, "Monthly cost (1M executions): $2.28")
}

func TestWriteJSON(t *testing.T) {
	r := sampleReport(t)

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, FormatJSON))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "us-east-1", decoded["region"])

	metrics, ok := decoded["metrics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1000.0, metrics["durationMs"])
	assert.Equal(t, 10.0, metrics["samples"])

	eks, ok := decoded["eks"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"cpu": "500m", "memory": "1Gi"}, eks["podRequests"])
}

func TestWriteYAML(t *testing.T) {
	r := sampleReport(t)

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, FormatYAML))

	var decoded struct {
		Region  string `yaml:"region"`
		Fargate struct {
			VCPU     float64 `yaml:"vcpu"`
			MemoryGB float64 `yaml:"memoryGB"`
		} `yaml:"fargate"`
		Metrics struct {
			CPUPeak float64 `yaml:"cpuPeak"`
		} `yaml:"metrics"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "us-east-1", decoded.Region)
	assert.Equal(t, 0.5, decoded.Fargate.VCPU)
	assert.Equal(t, 1.0, decoded.Fargate.MemoryGB)
	assert.Equal(t, 80.0, decoded.Metrics.CPUPeak)
}

func TestWriteUnknownFormat(t *testing.T) {
	r := sampleReport(t)

	var buf bytes.Buffer
	err := r.Write(&buf, Format("xml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Empty(t, buf.String())
}
