package cost

// fargateTier is one billable Fargate task size
type fargateTier struct {
	VCPU        float64
	MaxMemoryGB float64
}

// fargateTiers lists the Fargate vCPU sizes in ascending order together with
// the largest memory allocation each size accepts
var fargateTiers = []fargateTier{
	{VCPU: 0.25, MaxMemoryGB: 2},
	{VCPU: 0.5, MaxMemoryGB: 4},
	{VCPU: 1, MaxMemoryGB: 8},
	{VCPU: 2, MaxMemoryGB: 16},
	{VCPU: 4, MaxMemoryGB: 30},
	{VCPU: 8, MaxMemoryGB: 120},
	{VCPU: 16, MaxMemoryGB: 120},
}

// selectTier returns the smallest tier whose vCPU count covers desired
func selectTier(desired float64) fargateTier {
	for _, tier := range fargateTiers {
		if desired <= tier.VCPU {
			return tier
		}
	}
	return fargateTiers[len(fargateTiers)-1]
}
