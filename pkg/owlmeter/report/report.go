// Package report renders the result of a run for humans or machines.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/elevated-systems/owlmeter/pkg/owlmeter/cost"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/monitor"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/pricing"
)

// ErrUnknownFormat is returned for output formats other than text, json and yaml
var ErrUnknownFormat = errors.New("unknown output format")

// Format selects how a report is rendered
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// ParseFormat validates an output format name
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: text, json, yaml)", ErrUnknownFormat, value)
	}
}

// LambdaView is the serverless block of a report
type LambdaView struct {
	CostPerExecution float64 `json:"costPerExecution" yaml:"costPerExecution"`
	MonthlyCost1M    float64 `json:"monthlyCost1M" yaml:"monthlyCost1M"`
}

// FargateView is the ECS Fargate block of a report
type FargateView struct {
	CostPerExecution      float64 `json:"costPerExecution" yaml:"costPerExecution"`
	MonthlyCostContinuous float64 `json:"monthlyCostContinuous" yaml:"monthlyCostContinuous"`
	VCPU                  float64 `json:"vcpu" yaml:"vcpu"`
	MemoryGB              float64 `json:"memoryGB" yaml:"memoryGB"`
}

// EKSView is the EKS Fargate block of a report. Pod requests are rendered
// as quantity strings such as "500m" or "2Gi".
type EKSView struct {
	CostPerExecution      float64           `json:"costPerExecution" yaml:"costPerExecution"`
	MonthlyCostContinuous float64           `json:"monthlyCostContinuous" yaml:"monthlyCostContinuous"`
	PodRequests           map[string]string `json:"podRequests" yaml:"podRequests"`
}

// Report is everything printed after a successful run
type Report struct {
	Region     pricing.Region           `json:"region" yaml:"region"`
	RegionName string                   `json:"regionName" yaml:"regionName"`
	Metrics    monitor.ExecutionMetrics `json:"metrics" yaml:"metrics"`
	Lambda     LambdaView               `json:"lambda" yaml:"lambda"`
	Fargate    FargateView              `json:"fargate" yaml:"fargate"`
	EKS        EKSView                  `json:"eks" yaml:"eks"`
}

// New assembles a report from the metrics of a run and its estimates
func New(region pricing.Region, metrics monitor.ExecutionMetrics, estimates cost.Estimates) Report {
	requests := make(map[string]string, len(estimates.EKS.PodRequests))
	for name, quantity := range estimates.EKS.PodRequests {
		requests[string(name)] = quantity.String()
	}

	return Report{
		Region:     region,
		RegionName: region.DisplayName(),
		Metrics:    metrics,
		Lambda: LambdaView{
			CostPerExecution: estimates.Lambda.CostPerExecution,
			MonthlyCost1M:    estimates.Lambda.MonthlyCost1M,
		},
		Fargate: FargateView{
			CostPerExecution:      estimates.Fargate.CostPerExecution,
			MonthlyCostContinuous: estimates.Fargate.MonthlyCostContinuous,
			VCPU:                  estimates.Fargate.VCPU,
			MemoryGB:              estimates.Fargate.MemoryGB,
		},
		EKS: EKSView{
			CostPerExecution:      estimates.EKS.CostPerExecution,
			MonthlyCostContinuous: estimates.EKS.MonthlyCostContinuous,
			PodRequests:           requests,
		},
	}
}

// Write renders the report to w in the given format
func (r Report) Write(w io.Writer, format Format) error {
	switch format {
	case FormatText:
		return r.writeText(w)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(r); err != nil {
			return fmt.Errorf("failed to encode json report: %w", err)
		}
		return nil
	case FormatYAML:
		data, err := yaml.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode yaml report: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write yaml report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}

func (r Report) writeText(w io.Writer) error {
	var b strings.Builder

	b.WriteString("COLLECTED METRICS\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "  Duration:       %d ms\n", r.Metrics.DurationMs)
	fmt.Fprintf(&b, "  CPU average:    %.2f%%\n", r.Metrics.CPUAvg)
	fmt.Fprintf(&b, "  CPU peak:       %.2f%%\n", r.Metrics.CPUPeak)
	fmt.Fprintf(&b, "  Memory used:    %.2f MB\n", r.Metrics.MemoryMB)
	fmt.Fprintf(&b, "  Bytes sent:     %d bytes\n", r.Metrics.NetworkSent)
	fmt.Fprintf(&b, "  Bytes received: %d bytes\n", r.Metrics.NetworkReceived)
	fmt.Fprintf(&b, "  Samples:        %d\n", r.Metrics.Samples)
	b.WriteString("\n")

	fmt.Fprintf(&b, "AWS COST ESTIMATE (%s)\n", r.RegionName)
	b.WriteString(rule + "\n")

	b.WriteString("AWS Lambda:\n")
	fmt.Fprintf(&b, "   • Cost per execution: $%.6f\n", r.Lambda.CostPerExecution)
	fmt.Fprintf(&b, "   • Monthly cost (1M executions): $%.2f\n", r.Lambda.MonthlyCost1M)
	b.WriteString("\n")

	fmt.Fprintf(&b, "ECS Fargate (%g vCPU, %g GB):\n", r.Fargate.VCPU, r.Fargate.MemoryGB)
	fmt.Fprintf(&b, "   • Cost per execution: $%.6f\n", r.Fargate.CostPerExecution)
	fmt.Fprintf(&b, "   • Monthly cost (continuous): $%.2f\n", r.Fargate.MonthlyCostContinuous)
	b.WriteString("\n")

	fmt.Fprintf(&b, "EKS Fargate (requests: %s):\n", formatRequests(r.EKS.PodRequests))
	fmt.Fprintf(&b, "   • Cost per execution: $%.6f\n", r.EKS.CostPerExecution)
	fmt.Fprintf(&b, "   • Monthly cost (continuous): $%.2f\n", r.EKS.MonthlyCostContinuous)
	b.WriteString("\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}
	return nil
}

func formatRequests(requests map[string]string) string {
	names := make([]string, 0, len(requests))
	for name := range requests {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + requests[name]
	}
	return strings.Join(parts, ", ")
}
