package exporter

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/johnmathews/disk-status-exporter/pkg/config"
	"github.com/johnmathews/disk-status-exporter/pkg/cooldown"
	"github.com/johnmathews/disk-status-exporter/pkg/disks"
	"github.com/johnmathews/disk-status-exporter/pkg/shell"
	"github.com/johnmathews/disk-status-exporter/pkg/smartctl"
)

const (
	namespace = "disk"
)

type Prober interface {
	Probe(ctx context.Context, devicePath string) smartctl.Result
}

type Discoverer interface {
	Discover() ([]disks.Device, error)
}

type Exporter struct {
	Disks          Discoverer
	Prober         Prober
	Cooldown       *cooldown.Tracker
	MaxConcurrency int
}

var (
	powerStateDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "power_state"),
		"Current disk power state as a numeric code (0=standby, 1=idle, 2=active_or_idle, -1=unknown, -2=error).",
		[]string{"device_id", "device", "type"}, nil,
	)
	powerModeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "power_mode", "info"),
		"Disk power mode as reported by smartctl (label state=...). Always 1.",
		[]string{"device_id", "device", "type", "state"}, nil,
	)
	diskInfoDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "info"),
		"Static labels describing the disk. Always 1.",
		[]string{"device_id", "device", "type"}, nil,
	)
	devicesTotalDesc = prometheus.NewDesc(
		"disk_exporter_devices_total",
		"Devices seen during the last scrape, by kind.",
		[]string{"kind"}, nil,
	)
	scrapeDuration = prometheus.NewDesc(
		"disk_exporter_scrape_duration_seconds",
		"Number of seconds taken to scrape metrics",
		[]string{}, nil,
	)
	scrapeSuccess = prometheus.NewDesc(
		"disk_exporter_scrape_success",
		"Indicates if any failures occured during scrape",
		[]string{}, nil,
	)
)

func New(cfg config.Config) (*Exporter, error) {
	return &Exporter{
		Disks:          disks.New(),
		Prober:         smartctl.New(cfg.Smartctl, shell.LocalShell{}),
		Cooldown:       cooldown.NewTracker(time.Duration(cfg.CooldownSeconds) * time.Second),
		MaxConcurrency: cfg.MaxConcurrency,
	}, nil
}

// Scrape runs one full collection pass: discover, filter, probe with bounded
// concurrency, and assemble the snapshot. It always returns a complete
// snapshot; individual device failures show up as error states, never as a
// scrape failure.
func (e *Exporter) Scrape(ctx context.Context) *Snapshot {
	snap := &Snapshot{}

	devices, err := e.Disks.Discover()
	if err != nil {
		slog.Warn("device discovery unavailable", "error", err)
		snap.DiscoveryFailed = true
	}
	snap.Counts.Enumerated = len(devices)

	entries := make([]Entry, 0, len(devices))
	var probeIdx []int

	for _, dev := range devices {
		switch dev.MediaType {
		case disks.MediaVirtual:
			snap.Counts.SkippedVirtual++
			continue
		case disks.MediaSSD, disks.MediaUnknown:
			// reported informationally, never probed
			snap.Counts.SkippedNonRotational++
			entries = append(entries, Entry{Device: dev, Code: smartctl.StateUnknown})
			continue
		}

		if !e.Cooldown.IsEligible(dev.ID, time.Now()) {
			snap.Counts.SkippedCooldown++
			code := smartctl.StateUnknown
			if last, ok := e.Cooldown.LastKnownState(dev.ID); ok {
				code = last
			}
			entries = append(entries, Entry{Device: dev, Code: code, Skipped: true})
			continue
		}

		snap.Counts.ScannedHDDs++
		entries = append(entries, Entry{Device: dev, Probed: true})
		probeIdx = append(probeIdx, len(entries)-1)
	}

	g := new(errgroup.Group)
	g.SetLimit(e.MaxConcurrency)
	for _, i := range probeIdx {
		g.Go(func() error {
			res := e.Prober.Probe(ctx, entries[i].Device.Path)
			entries[i].Code = res.Code
			entries[i].Mode = res.Mode

			switch {
			case res.TimedOut:
				e.Cooldown.RecordTimeout(entries[i].Device.ID, time.Now())
			case res.Code >= smartctl.StateStandby:
				e.Cooldown.RecordSuccess(entries[i].Device.ID, res.Code)
			}
			return nil
		})
	}
	// every dispatched probe finishes (or hits its own timeout) before the
	// snapshot is considered built
	_ = g.Wait()

	snap.Entries = entries
	return snap
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- scrapeDuration
	ch <- scrapeSuccess
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	start := time.Now()
	var success float64 = 1

	// deliberately not tied to the HTTP request context: a disconnecting
	// scraper must not leave cooldown bookkeeping half done
	snap := e.Scrape(context.Background())
	if snap.DiscoveryFailed {
		success = 0
	}

	for _, entry := range snap.Entries {
		labels := []string{entry.Device.ID, entry.Device.Path, string(entry.Device.MediaType)}

		ch <- prometheus.MustNewConstMetric(diskInfoDesc, prometheus.GaugeValue, 1.0, labels...)
		ch <- prometheus.MustNewConstMetric(powerStateDesc, prometheus.GaugeValue, float64(entry.Code), labels...)

		if entry.Mode != "" {
			ch <- prometheus.MustNewConstMetric(
				powerModeDesc, prometheus.GaugeValue, 1.0,
				entry.Device.ID, entry.Device.Path, string(entry.Device.MediaType), entry.Mode,
			)
		}
	}

	counts := map[string]int{
		"enumerated":             snap.Counts.Enumerated,
		"scanned_hdds":           snap.Counts.ScannedHDDs,
		"skipped_non_rotational": snap.Counts.SkippedNonRotational,
		"skipped_virtual":        snap.Counts.SkippedVirtual,
		"skipped_cooldown":       snap.Counts.SkippedCooldown,
	}
	for kind, count := range counts {
		ch <- prometheus.MustNewConstMetric(devicesTotalDesc, prometheus.GaugeValue, float64(count), kind)
	}

	duration := time.Since(start)
	ch <- prometheus.MustNewConstMetric(scrapeDuration, prometheus.GaugeValue, duration.Seconds())
	ch <- prometheus.MustNewConstMetric(scrapeSuccess, prometheus.GaugeValue, success)

	slog.Info("scan complete",
		"enumerated", snap.Counts.Enumerated,
		"scanned_hdds", snap.Counts.ScannedHDDs,
		"skipped_non_rotational", snap.Counts.SkippedNonRotational,
		"skipped_virtual", snap.Counts.SkippedVirtual,
		"skipped_cooldown", snap.Counts.SkippedCooldown,
		"duration", duration,
	)
}
