package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elevated-systems/owlmeter/pkg/owlmeter/pricing"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/report"
)

// Config holds all configuration for owlmeter
type Config struct {
	Region        string              `yaml:"region"` // AWS region identifier or "auto"
	Sampling      SamplingConfig      `yaml:"sampling"`
	Output        OutputConfig        `yaml:"output"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SamplingConfig holds the process monitor settings
type SamplingConfig struct {
	Interval  time.Duration `yaml:"interval"`
	StopGrace time.Duration `yaml:"stopGrace"` // Upper bound on waiting for the sampling loop after exit
}

// OutputConfig holds report settings
type OutputConfig struct {
	Format string `yaml:"format"` // text, json or yaml
}

// ObservabilityConfig holds the optional Prometheus outputs. Empty values disable them.
type ObservabilityConfig struct {
	MetricsAddr    string `yaml:"metricsAddr"`
	PushgatewayURL string `yaml:"pushgatewayURL"`
	TextfilePath   string `yaml:"textfilePath"`
}

// Validate checks the configuration
func (c *Config) Validate() error {
	var errs []error

	if !strings.EqualFold(strings.TrimSpace(c.Region), pricing.AutoRegion) {
		if _, err := pricing.ParseRegion(c.Region); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Sampling.Interval <= 0 {
		errs = append(errs, fmt.Errorf("sampling interval must be positive, got %v", c.Sampling.Interval))
	}
	if c.Sampling.StopGrace <= c.Sampling.Interval {
		errs = append(errs, fmt.Errorf("stop grace (%v) must exceed the sampling interval (%v)", c.Sampling.StopGrace, c.Sampling.Interval))
	}

	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
