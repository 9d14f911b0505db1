// Package metrics exposes the measurements and estimates of a run as
// Prometheus metrics: live over HTTP, pushed to a Pushgateway, or written to
// a node-exporter textfile.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/owlmeter/pkg/owlmeter/cost"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/monitor"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/pricing"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/sampler"
)

const namespace = "owlmeter"

// Shape and period label values of the estimated cost gauge
const (
	ShapeLambda  = "lambda"
	ShapeFargate = "ecs_fargate"
	ShapeEKS     = "eks_fargate"

	PeriodExecution = "execution"
	PeriodMonthly   = "monthly"
)

// Recorder owns a private registry holding every owlmeter metric. All
// metrics carry the pricing region as a constant label.
type Recorder struct {
	registry *prometheus.Registry

	cpuPercent   prometheus.Gauge
	rssBytes     prometheus.Gauge
	samplesTotal prometheus.Counter
	missesTotal  prometheus.Counter

	durationSeconds  prometheus.Gauge
	cpuAvgPercent    prometheus.Gauge
	cpuPeakPercent   prometheus.Gauge
	memoryPeakMB     prometheus.Gauge
	networkSentBytes prometheus.Gauge
	networkRecvBytes prometheus.Gauge
	estimatedCost    *prometheus.GaugeVec
}

var _ monitor.Observer = &Recorder{}

// NewRecorder creates a recorder for runs priced in region
func NewRecorder(region pricing.Region) *Recorder {
	registry := prometheus.NewRegistry()
	factory := prometheus.WrapRegistererWith(prometheus.Labels{"region": string(region)}, registry)

	r := &Recorder{
		registry: registry,
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "Most recent CPU usage sample of the supervised process, in percent of one core",
		}),
		rssBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_resident_memory_bytes",
			Help:      "Most recent resident memory sample of the supervised process",
		}),
		samplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Number of successful sampling cycles",
		}),
		missesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sample_misses_total",
			Help:      "Number of sampling cycles that could not read the process",
		}),
		durationSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the last successful run",
		}),
		cpuAvgPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_cpu_average_percent",
			Help:      "Average CPU usage of the last successful run",
		}),
		cpuPeakPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_cpu_peak_percent",
			Help:      "Peak CPU usage of the last successful run",
		}),
		memoryPeakMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_memory_peak_megabytes",
			Help:      "Peak resident memory of the last successful run",
		}),
		networkSentBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_network_sent_bytes",
			Help:      "Host-wide bytes sent during the last successful run",
		}),
		networkRecvBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_network_received_bytes",
			Help:      "Host-wide bytes received during the last successful run",
		}),
		estimatedCost: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "estimated_cost_dollars",
				Help:      "Estimated AWS cost of the last successful run by deployment shape",
			},
			[]string{"shape", "period"}, // period: "execution", "monthly"
		),
	}

	factory.MustRegister(
		r.cpuPercent,
		r.rssBytes,
		r.samplesTotal,
		r.missesTotal,
		r.durationSeconds,
		r.cpuAvgPercent,
		r.cpuPeakPercent,
		r.memoryPeakMB,
		r.networkSentBytes,
		r.networkRecvBytes,
		r.estimatedCost,
	)

	return r
}

// ObserveSample records a live sample
func (r *Recorder) ObserveSample(sample sampler.ProcessSample) {
	r.cpuPercent.Set(sample.CPUPercent)
	r.rssBytes.Set(float64(sample.RSSBytes))
	r.samplesTotal.Inc()
}

// ObserveMiss counts a sampling cycle that recorded nothing
func (r *Recorder) ObserveMiss(err error) {
	r.missesTotal.Inc()
}

// RecordRun publishes the summary and the estimates of a finished run
func (r *Recorder) RecordRun(m monitor.ExecutionMetrics, est cost.Estimates) {
	r.durationSeconds.Set(float64(m.DurationMs) / 1000)
	r.cpuAvgPercent.Set(m.CPUAvg)
	r.cpuPeakPercent.Set(m.CPUPeak)
	r.memoryPeakMB.Set(m.MemoryMB)
	r.networkSentBytes.Set(float64(m.NetworkSent))
	r.networkRecvBytes.Set(float64(m.NetworkReceived))

	r.estimatedCost.WithLabelValues(ShapeLambda, PeriodExecution).Set(est.Lambda.CostPerExecution)
	r.estimatedCost.WithLabelValues(ShapeLambda, PeriodMonthly).Set(est.Lambda.MonthlyCost1M)
	r.estimatedCost.WithLabelValues(ShapeFargate, PeriodExecution).Set(est.Fargate.CostPerExecution)
	r.estimatedCost.WithLabelValues(ShapeFargate, PeriodMonthly).Set(est.Fargate.MonthlyCostContinuous)
	r.estimatedCost.WithLabelValues(ShapeEKS, PeriodExecution).Set(est.EKS.CostPerExecution)
	r.estimatedCost.WithLabelValues(ShapeEKS, PeriodMonthly).Set(est.EKS.MonthlyCostContinuous)
}

// Gatherer returns the registry backing the recorder
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the recorder's metrics in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Push sends all metrics to the Pushgateway at url, replacing the group of job
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return errors.New("pushgateway url is empty")
	}
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	klog.V(2).InfoS("Pushed metrics", "url", url, "job", job)
	return nil
}

// WriteTextfile writes all metrics to path for the node-exporter textfile
// collector. The file is replaced atomically so a scrape never sees a
// partial write.
func (r *Recorder) WriteTextfile(path string) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temporary metrics file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	encoder := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode metric family %s: %w", family.GetName(), err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary metrics file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions on metrics file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move metrics file into place: %w", err)
	}

	klog.V(2).InfoS("Wrote metrics textfile", "path", path, "families", len(families))
	return nil
}
