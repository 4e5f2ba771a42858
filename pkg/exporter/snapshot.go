package exporter

import (
	"github.com/johnmathews/disk-status-exporter/pkg/disks"
)

// Entry is one device's outcome within a scrape.
type Entry struct {
	Device disks.Device
	Code   int
	Mode   string // raw power mode; empty when the device was not probed
	Probed bool
	// Skipped marks an hdd that was under cooldown and therefore reported
	// from cached state instead of a probe.
	Skipped bool
}

type Counts struct {
	Enumerated           int
	ScannedHDDs          int
	SkippedNonRotational int
	SkippedVirtual       int
	SkippedCooldown      int
}

// Snapshot is the complete, immutable result of one scrape. It is built once
// per metrics request and handed wholesale to the emission loop; the next
// scrape supersedes it entirely.
type Snapshot struct {
	Entries         []Entry
	Counts          Counts
	DiscoveryFailed bool
}
