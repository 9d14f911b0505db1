package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/carbon-aware/cloudinfo/pkg/cloudinfo"
	"k8s.io/klog/v2"
)

// AutoRegion asks ResolveRegion to detect the region from the environment
const AutoRegion = "auto"

// Detector returns the cloud provider and region the process is running in
type Detector func(ctx context.Context) (provider string, region string, err error)

// ProviderAWS is the provider name reported by the detectors for AWS
const ProviderAWS = "aws"

// Environment variables set by the AWS SDKs, Lambda and ECS task runtimes
var awsRegionEnvVars = []string{"AWS_REGION", "AWS_DEFAULT_REGION"}

var errNoRegionInEnvironment = errors.New("no AWS region in environment")

// DetectFromEnvironment reads the region from the standard AWS environment
// variables. It never touches the network.
func DetectFromEnvironment(ctx context.Context) (string, string, error) {
	for _, key := range awsRegionEnvVars {
		if region := strings.TrimSpace(os.Getenv(key)); region != "" {
			klog.V(3).InfoS("Detected region from environment", "variable", key, "region", region)
			return ProviderAWS, region, nil
		}
	}
	return "", "", errNoRegionInEnvironment
}

// WithFallback returns a Detector that tries each detector in order and
// returns the first successful result
func WithFallback(detectors ...Detector) Detector {
	return func(ctx context.Context) (string, string, error) {
		var errs []error
		for _, detect := range detectors {
			provider, region, err := detect(ctx)
			if err == nil {
				return provider, region, nil
			}
			errs = append(errs, err)
		}
		return "", "", fmt.Errorf("region detection failed: %w", errors.Join(errs...))
	}
}

// IMDSTimeout bounds the whole instance metadata lookup. Off-cloud hosts
// never answer 169.254.169.254, so every "auto" resolution there pays this
// delay before falling back.
const IMDSTimeout = time.Second

// DetectWithCloudInfo detects the provider and region through the instance
// metadata service. No Kubernetes client is involved. Only IMDSv1 is
// supported; hosts enforcing IMDSv2 answer 401 and detection fails.
func DetectWithCloudInfo(ctx context.Context) (string, string, error) {
	return detectWithIMDS(ctx, &http.Client{Timeout: IMDSTimeout}, cloudinfo.DefaultIMDSConfig())
}

func detectWithIMDS(ctx context.Context, client cloudinfo.IMDSClient, cfg cloudinfo.IMDSConfig) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, IMDSTimeout)
	defer cancel()

	info, err := cloudinfo.DetectIMDSCloudInfoWithClient(ctx, client, cfg)
	if err != nil {
		return "", "", fmt.Errorf("instance metadata lookup failed: %w", err)
	}

	klog.V(3).InfoS("CloudInfo detected provider and region",
		"provider", info.Provider,
		"region", info.Region,
		"source", info.Source)

	return info.Provider, strings.TrimSpace(info.Region), nil
}

// ResolveRegion turns a configured region value into a supported Region.
// "auto" runs detect and falls back to DefaultRegion when the environment is
// not an AWS region with known prices.
func ResolveRegion(ctx context.Context, value string, detect Detector) (Region, error) {
	if !strings.EqualFold(strings.TrimSpace(value), AutoRegion) {
		return ParseRegion(value)
	}

	if detect == nil {
		detect = WithFallback(DetectFromEnvironment, DetectWithCloudInfo)
	}

	provider, detected, err := detect(ctx)
	if err != nil {
		klog.InfoS("Region detection failed, using default region", "default", DefaultRegion, "err", err)
		return DefaultRegion, nil
	}

	if !strings.EqualFold(provider, ProviderAWS) {
		klog.InfoS("Not running on AWS, using default region",
			"provider", provider,
			"default", DefaultRegion)
		return DefaultRegion, nil
	}

	region, err := ParseRegion(detected)
	if err != nil {
		klog.InfoS("Detected region has no pricing data, using default region",
			"region", detected,
			"default", DefaultRegion)
		return DefaultRegion, nil
	}

	klog.V(2).InfoS("Detected AWS region", "region", region)
	return region, nil
}
