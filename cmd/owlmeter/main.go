package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/owlmeter/pkg/owlmeter/config"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/cost"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/metrics"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/monitor"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/pricing"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/report"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/runner"
	"github.com/elevated-systems/owlmeter/pkg/owlmeter/sampler"
)

const (
	pushJob          = "owlmeter"
	detectTimeout    = 5 * time.Second
	pushTimeout      = 10 * time.Second
	shutdownTimeout  = 5 * time.Second
	metricsPath      = "/metrics"
	usageDescription = `Usage: owlmeter [flags] <command> [args...]

Runs the command, samples its CPU, memory and network usage and estimates
what the same workload would cost on AWS Lambda, ECS Fargate and EKS Fargate.

Examples:
  owlmeter python3 simple_script.py
  owlmeter -region=eu-west-1 -output=json -- uv run --env-file .env -- python script.py arg1

Flags:
`
)

// options holds the raw flag values. Only flags set on the command line
// override the loaded configuration.
type options struct {
	configPath     string
	region         string
	output         string
	interval       time.Duration
	stopGrace      time.Duration
	metricsAddr    string
	pushgatewayURL string
	textfilePath   string
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "Path to a YAML configuration file")
	fs.StringVar(&o.region, "region", "", "AWS pricing region, or 'auto' to detect it from AWS_REGION/AWS_DEFAULT_REGION and then instance metadata; off-cloud the metadata lookup adds up to 1s before falling back (default us-east-1)")
	fs.StringVar(&o.output, "output", "", "Report format: text, json or yaml (default text)")
	fs.DurationVar(&o.interval, "interval", 0, "Sampling interval (default 100ms)")
	fs.DurationVar(&o.stopGrace, "stop-grace", 0, "Maximum wait for the sampler after the command exits (default 150ms)")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve live Prometheus metrics on this address while the command runs")
	fs.StringVar(&o.pushgatewayURL, "pushgateway", "", "Push the run metrics to this Prometheus Pushgateway URL")
	fs.StringVar(&o.textfilePath, "metrics-textfile", "", "Write the run metrics to this file for the node-exporter textfile collector")
}

// apply copies every flag that was set explicitly onto cfg
func (o *options) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "region":
			cfg.Region = o.region
		case "output":
			cfg.Output.Format = o.output
		case "interval":
			cfg.Sampling.Interval = o.interval
		case "stop-grace":
			cfg.Sampling.StopGrace = o.stopGrace
		case "metrics-addr":
			cfg.Observability.MetricsAddr = o.metricsAddr
		case "pushgateway":
			cfg.Observability.PushgatewayURL = o.pushgatewayURL
		case "metrics-textfile":
			cfg.Observability.TextfilePath = o.textfilePath
		}
	})
}

func main() {
	code := run()
	klog.Flush()
	os.Exit(code)
}

func run() int {
	var opts options
	opts.register(flag.CommandLine)
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usageDescription)
		flag.PrintDefaults()
	}
	flag.Parse()

	argv := flag.Args()
	if len(argv) == 0 {
		flag.Usage()
		return 1
	}

	cfg, err := loadConfig(&opts, flag.CommandLine)
	if err != nil {
		klog.ErrorS(err, "Invalid configuration")
		return 1
	}

	detectCtx, cancel := context.WithTimeout(context.Background(), detectTimeout)
	region, err := pricing.ResolveRegion(detectCtx, cfg.Region, pricing.WithFallback(pricing.DetectFromEnvironment, pricing.DetectWithCloudInfo))
	cancel()
	if err != nil {
		klog.ErrorS(err, "Failed to resolve pricing region", "region", cfg.Region)
		return 1
	}

	estimator, err := cost.ForRegion(region)
	if err != nil {
		klog.ErrorS(err, "Failed to load pricing", "region", region)
		return 1
	}

	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		klog.ErrorS(err, "Invalid output format")
		return 1
	}

	procSampler, err := sampler.NewDefault()
	if err != nil {
		klog.ErrorS(err, "Failed to open process filesystem")
		return 1
	}

	recorder := metrics.NewRecorder(region)
	server := startMetricsServer(cfg.Observability.MetricsAddr, recorder)
	defer stopMetricsServer(server)

	r := runner.New(procSampler, runner.WithMonitorOptions(
		monitor.WithInterval(cfg.Sampling.Interval),
		monitor.WithStopGrace(cfg.Sampling.StopGrace),
		monitor.WithObserver(recorder),
	))

	klog.V(1).InfoS("Running command", "command", argv[0], "region", region)
	result, err := r.Run(argv)
	if err != nil {
		var spawnErr *runner.SpawnError
		var exitErr *runner.ExitError
		switch {
		case errors.As(err, &spawnErr):
			klog.ErrorS(spawnErr.Err, "Failed to start command", "command", spawnErr.Path)
		case errors.As(err, &exitErr):
			klog.ErrorS(err, "Command failed, skipping cost estimation", "exitCode", exitErr.Code, "state", exitErr.State)
		default:
			klog.ErrorS(err, "Command execution failed")
		}
		return 1
	}

	estimates := estimator.EstimateAll(result)
	recorder.RecordRun(result, estimates)

	if format == report.FormatText {
		fmt.Fprintln(os.Stdout, "** Execution completed!")
		fmt.Fprintln(os.Stdout)
	}
	if err := report.New(region, result, estimates).Write(os.Stdout, format); err != nil {
		klog.ErrorS(err, "Failed to write report")
		return 1
	}

	exportMetrics(cfg.Observability, recorder)
	return 0
}

func loadConfig(opts *options, fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	opts.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func startMetricsServer(addr string, recorder *metrics.Recorder) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, recorder.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		klog.V(1).InfoS("Starting metrics server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.ErrorS(err, "Metrics server failed", "addr", addr)
		}
	}()
	return server
}

func stopMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		klog.ErrorS(err, "Failed to shut down metrics server")
	}
}

// exportMetrics publishes the run to the optional sinks. Failures are logged
// and never change the exit status.
func exportMetrics(obs config.ObservabilityConfig, recorder *metrics.Recorder) {
	if obs.PushgatewayURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		if err := recorder.Push(ctx, obs.PushgatewayURL, pushJob); err != nil {
			klog.ErrorS(err, "Failed to push metrics", "url", obs.PushgatewayURL)
		}
		cancel()
	}

	if obs.TextfilePath != "" {
		if err := recorder.WriteTextfile(obs.TextfilePath); err != nil {
			klog.ErrorS(err, "Failed to write metrics textfile", "path", obs.TextfilePath)
		}
	}
}
