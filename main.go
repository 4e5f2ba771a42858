package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
	"github.com/prometheus/exporter-toolkit/web"

	"github.com/johnmathews/disk-status-exporter/pkg/config"
	"github.com/johnmathews/disk-status-exporter/pkg/exporter"
)

const (
	exporterName = "disk_status_exporter"
)

func main() {
	var opts config.StartupFlags

	flag.StringVar(&opts.ConfigFile, "config-file", "", "Configuration file to read from")
	flag.StringVar(&opts.WebConfigFile, "web-config-file", "", "Use to enable TLS, HTTP Basic Auth")
	flag.BoolVar(&opts.Version, "version", false, "Print version information")
	flag.Parse()

	if opts.Version {
		fmt.Println(version.Print(exporterName))
		os.Exit(0)
	}

	cfg := config.Config{
		Listen: config.ListenConfig{
			Address: "0.0.0.0",
			Port:    9646,
		},
		Log: config.LogConfig{
			Level:  "info",
			Format: "text",
		},
		MetricsPath: "/metrics",
		Smartctl: config.SmartctlConfig{
			Executable: "/usr/sbin/smartctl",
			DeviceType: "sat",
			Attempts:   2,
			IntervalMS: 1000,
			TimeoutMS:  10000,
		},
		MaxConcurrency:  4,
		CooldownSeconds: 300,
	}
	loadConfig(&opts, &cfg)
	logger := setupLogger(&cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting disk_status_exporter", "version", version.Info())
	diskExporter, err := exporter.New(cfg)
	if err != nil {
		slog.Error("Error creating exporter", "error", err)
		os.Exit(1)
	}

	prometheus.MustRegister(
		versioncollector.NewCollector(exporterName),
		diskExporter,
	)

	http.Handle(cfg.MetricsPath, promhttp.Handler())
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		// liveness only, never runs probes
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	if cfg.MetricsPath != "/" {
		landingConfig := web.LandingConfig{
			Name:        "Disk Status Exporter",
			Description: "Prometheus exporter for disk power states.",
			Version:     version.Info(),
			Links: []web.LandingLinks{
				{
					Address: cfg.MetricsPath,
					Text:    "Metrics",
				},
			},
		}
		landingPage, err := web.NewLandingPage(landingConfig)
		if err != nil {
			slog.Error("Error creating landing page", "error", err)
			os.Exit(1)
		}
		http.Handle("/", landingPage)
	}

	listenAddr := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	flags := web.FlagConfig{
		WebListenAddresses: &[]string{listenAddr},
		WebConfigFile:      &opts.WebConfigFile,
	}
	server := &http.Server{}
	if err := web.ListenAndServe(server, &flags, logger); err != nil {
		slog.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler
	level := new(slog.LevelVar)
	switch cfg.Log.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})

	}

	switch cfg.Log.Level {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func loadConfig(opts *config.StartupFlags, cfg *config.Config) {
	if opts.ConfigFile != "" {
		slog.Info("Loading configuration", "config_file", opts.ConfigFile)
		err := config.LoadConfigFromFile(cfg, opts.ConfigFile)
		if err != nil {
			slog.Error("Error loading configuration", "file", opts.ConfigFile, "error", err)
		}
	}
}
