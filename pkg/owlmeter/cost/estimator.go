// Package cost maps ExecutionMetrics onto AWS billing units for Lambda, ECS
// Fargate and EKS Fargate. All estimates are deterministic and infallible.
package cost

import (
	"fmt"
	"math"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/elevated-systems/owlmeter/pkg/owlmeter/monitor"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/pricing"
)

const (
	// HoursPerMonth is the standard month used for continuous-service cost
	HoursPerMonth = 730.0

	// ExecutionsPerMonth is the invocation volume used for the Lambda projection
	ExecutionsPerMonth = 1_000_000.0

	lambdaMinMemoryMB   = 128.0
	minFargateVCPU      = 0.25
	minFargateMemoryGB  = 0.5
	millisecondsPerHour = 3_600_000.0
	bytesPerGiB         = 1024 * 1024 * 1024
)

// LambdaCost is the serverless estimate
type LambdaCost struct {
	CostPerExecution float64 `json:"costPerExecution"`
	MonthlyCost1M    float64 `json:"monthlyCost1M"` // 1M executions per month
}

// FargateCost is the ECS Fargate estimate
type FargateCost struct {
	CostPerExecution      float64 `json:"costPerExecution"`
	MonthlyCostContinuous float64 `json:"monthlyCostContinuous"` // 730 hours per month
	VCPU                  float64 `json:"vcpu"`                  // Selected vCPU tier
	MemoryGB              float64 `json:"memoryGB"`              // Selected memory in GB
}

// EksCost is the EKS Fargate estimate, Fargate plus the cluster control plane
type EksCost struct {
	CostPerExecution      float64             `json:"costPerExecution"`
	MonthlyCostContinuous float64             `json:"monthlyCostContinuous"`
	PodRequests           corev1.ResourceList `json:"podRequests"` // Requests that land the pod on the selected Fargate size
}

// Estimates bundles the three estimates of one run
type Estimates struct {
	Lambda  LambdaCost  `json:"lambda"`
	Fargate FargateCost `json:"fargate"`
	EKS     EksCost     `json:"eks"`
}

// Estimator calculates costs for a single region
type Estimator struct {
	pricing pricing.Pricing
}

// NewEstimator creates an estimator for the given unit prices
func NewEstimator(p pricing.Pricing) *Estimator {
	return &Estimator{pricing: p}
}

// ForRegion creates an estimator using the list prices of region
func ForRegion(region pricing.Region) (*Estimator, error) {
	p, err := pricing.Lookup(region)
	if err != nil {
		return nil, fmt.Errorf("failed to create estimator: %w", err)
	}
	return NewEstimator(p), nil
}

// EstimateLambda bills the peak memory rounded up to a whole MB, with the
// 128 MB Lambda minimum, for the measured duration plus one request
func (e *Estimator) EstimateLambda(m monitor.ExecutionMetrics) LambdaCost {
	memoryMB := math.Ceil(math.Max(m.MemoryMB, lambdaMinMemoryMB))
	durationSeconds := float64(m.DurationMs) / 1000

	gbSeconds := memoryMB / 1024 * durationSeconds
	computeCost := gbSeconds * e.pricing.LambdaGBSecond
	requestCost := e.pricing.LambdaPerMillionRequests / 1_000_000

	costPerExecution := computeCost + requestCost
	return LambdaCost{
		CostPerExecution: costPerExecution,
		MonthlyCost1M:    costPerExecution * ExecutionsPerMonth,
	}
}

// EstimateFargate rounds usage up to the next billable task size and bills
// it for the measured duration
func (e *Estimator) EstimateFargate(m monitor.ExecutionMetrics) FargateCost {
	vcpu, memoryGB := TaskSize(m.CPUAvg, m.MemoryMB)

	hourlyRate := vcpu*e.pricing.FargateVCPUHour + memoryGB*e.pricing.FargateGBHour
	durationHours := float64(m.DurationMs) / millisecondsPerHour

	return FargateCost{
		CostPerExecution:      hourlyRate * durationHours,
		MonthlyCostContinuous: hourlyRate * HoursPerMonth,
		VCPU:                  vcpu,
		MemoryGB:              memoryGB,
	}
}

// EstimateEKS adds the EKS control plane to the Fargate estimate
func (e *Estimator) EstimateEKS(m monitor.ExecutionMetrics) EksCost {
	fargate := e.EstimateFargate(m)
	durationHours := float64(m.DurationMs) / millisecondsPerHour

	return EksCost{
		CostPerExecution:      fargate.CostPerExecution + e.pricing.EKSClusterHour*durationHours,
		MonthlyCostContinuous: fargate.MonthlyCostContinuous + e.pricing.EKSClusterHour*HoursPerMonth,
		PodRequests:           PodRequests(fargate.VCPU, fargate.MemoryGB),
	}
}

// EstimateAll computes all three estimates
func (e *Estimator) EstimateAll(m monitor.ExecutionMetrics) Estimates {
	return Estimates{
		Lambda:  e.EstimateLambda(m),
		Fargate: e.EstimateFargate(m),
		EKS:     e.EstimateEKS(m),
	}
}

// TaskSize selects the Fargate vCPU tier for cpuAvg (percent of one core)
// and the memory in whole GB for memoryMB, clamped to the tier maximum
func TaskSize(cpuAvg, memoryMB float64) (vcpu float64, memoryGB float64) {
	tier := selectTier(math.Max(cpuAvg/100, minFargateVCPU))

	desiredGB := math.Max(memoryMB/1024, minFargateMemoryGB)
	memoryGB = math.Ceil(math.Min(desiredGB, tier.MaxMemoryGB))

	return tier.VCPU, memoryGB
}

// PodRequests expresses a Fargate task size as Kubernetes resource requests
func PodRequests(vcpu, memoryGB float64) corev1.ResourceList {
	return corev1.ResourceList{
		corev1.ResourceCPU:    *resource.NewMilliQuantity(int64(math.Round(vcpu*1000)), resource.DecimalSI),
		corev1.ResourceMemory: *resource.NewQuantity(int64(memoryGB)*bytesPerGiB, resource.BinarySI),
	}
}
