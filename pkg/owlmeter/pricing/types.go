// Package pricing holds the per-region AWS list prices used by the cost
// estimator. The prices are a snapshot and are kept as pure data in
// aws_regions.go so updating them never touches estimation logic.
package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownRegion is returned for region identifiers outside the pricing table
var ErrUnknownRegion = errors.New("unknown region")

// Region is an AWS region identifier such as "us-east-1"
type Region string

const (
	USEast1      Region = "us-east-1"
	USWest2      Region = "us-west-2"
	EUWest1      Region = "eu-west-1"
	APSoutheast1 Region = "ap-southeast-1"
	SAEast1      Region = "sa-east-1"

	// DefaultRegion is used when no region is configured or detection fails
	DefaultRegion = USEast1
)

// Pricing contains the unit prices for the three deployment shapes
type Pricing struct {
	// LambdaGBSecond is the Lambda compute price in $/GB-second
	LambdaGBSecond float64

	// LambdaPerMillionRequests is the Lambda request price in $ per million invocations
	LambdaPerMillionRequests float64

	// FargateVCPUHour is the Fargate price in $/vCPU-hour
	FargateVCPUHour float64

	// FargateGBHour is the Fargate price in $/GB-hour of memory
	FargateGBHour float64

	// EKSClusterHour is the EKS control plane price in $/hour
	EKSClusterHour float64
}

// RegionInfo contains metadata and prices for a region
type RegionInfo struct {
	// DisplayName is the human readable name, e.g. "us-east-1 (N. Virginia)"
	DisplayName string

	// Pricing holds the unit prices for the region
	Pricing Pricing
}

// Lookup returns the pricing record for region
func Lookup(region Region) (Pricing, error) {
	info, ok := awsRegionInfo[region]
	if !ok {
		return Pricing{}, fmt.Errorf("%w: %q", ErrUnknownRegion, string(region))
	}
	return info.Pricing, nil
}

// ParseRegion validates a region identifier
func ParseRegion(value string) (Region, error) {
	region := Region(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := awsRegionInfo[region]; !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnknownRegion, value, strings.Join(regionNames(), ", "))
	}
	return region, nil
}

// Regions returns the supported regions in lexical order
func Regions() []Region {
	regions := make([]Region, 0, len(awsRegionInfo))
	for region := range awsRegionInfo {
		regions = append(regions, region)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i] < regions[j] })
	return regions
}

// DisplayName returns the human readable region name, or the identifier for unknown regions
func (r Region) DisplayName() string {
	if info, ok := awsRegionInfo[r]; ok {
		return info.DisplayName
	}
	return string(r)
}

func regionNames() []string {
	regions := Regions()
	names := make([]string, len(regions))
	for i, region := range regions {
		names[i] = string(region)
	}
	return names
}
