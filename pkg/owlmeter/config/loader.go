// Package config loads owlmeter settings from defaults, an optional YAML
// file and OWLMETER_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/owlmeter/pkg/owlmeter/monitor"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/pricing"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/report"
)

const envPrefix = "OWLMETER_"

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Region: string(pricing.DefaultRegion),
		Sampling: SamplingConfig{
			Interval:  monitor.DefaultInterval,
			StopGrace: monitor.DefaultStopGrace,
		},
		Output: OutputConfig{
			Format: string(report.FormatText),
		},
	}
}

// Load builds the configuration from the defaults, the YAML file at path
// (skipped when path is empty) and the environment, in that order. The
// result is not validated so callers can apply flag overrides first.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	klog.V(2).InfoS("Loaded configuration",
		"path", path,
		"region", cfg.Region,
		"interval", cfg.Sampling.Interval,
		"stopGrace", cfg.Sampling.StopGrace,
		"format", cfg.Output.Format)

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Region = getEnvOrDefault("REGION", cfg.Region)
	cfg.Sampling.Interval = getDurationOrDefault("SAMPLING_INTERVAL", cfg.Sampling.Interval)
	cfg.Sampling.StopGrace = getDurationOrDefault("STOP_GRACE", cfg.Sampling.StopGrace)
	cfg.Output.Format = getEnvOrDefault("OUTPUT", cfg.Output.Format)
	cfg.Observability.MetricsAddr = getEnvOrDefault("METRICS_ADDR", cfg.Observability.MetricsAddr)
	cfg.Observability.PushgatewayURL = getEnvOrDefault("PUSHGATEWAY_URL", cfg.Observability.PushgatewayURL)
	cfg.Observability.TextfilePath = getEnvOrDefault("METRICS_TEXTFILE", cfg.Observability.TextfilePath)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if strValue := os.Getenv(envPrefix + key); strValue != "" {
		if value, err := time.ParseDuration(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid duration value, using default",
			"key", envPrefix+key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}
