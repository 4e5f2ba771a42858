// Package disks enumerates physical block devices and classifies their media
// type so the exporter only ever probes rotational disks. Discovery is
// re-done from scratch on every scrape; nothing here is cached.
package disks

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jaypipes/ghw"
)

type MediaType string

const (
	MediaHDD     MediaType = "hdd"
	MediaSSD     MediaType = "ssd"
	MediaVirtual MediaType = "virtual"
	MediaUnknown MediaType = "unknown"
)

// Device is one physical storage device as seen during a single scrape.
type Device struct {
	Path      string // kernel device node, e.g. /dev/sda
	ID        string // stable /dev/disk/by-id path, or Path if none exists
	MediaType MediaType
	Vendor    string
	Model     string
}

// BlockDisk is the raw enumeration record handed to the classifier. It is a
// narrow view of what ghw reports, kept separate so tests can inject fakes
// without a real sysfs.
type BlockDisk struct {
	Name        string
	Vendor      string
	Model       string
	IsRemovable bool
}

type Discoverer struct {
	SysBlockPath string
	ByIDPath     string
	DevPath      string
	List         func() ([]BlockDisk, error)
}

func New() *Discoverer {
	return &Discoverer{
		SysBlockPath: "/sys/block",
		ByIDPath:     "/dev/disk/by-id",
		DevPath:      "/dev",
		List:         ghwList,
	}
}

func ghwList() ([]BlockDisk, error) {
	block, err := ghw.Block()
	if err != nil {
		return nil, err
	}

	disks := make([]BlockDisk, 0, len(block.Disks))
	for _, d := range block.Disks {
		disks = append(disks, BlockDisk{
			Name:        d.Name,
			Vendor:      d.Vendor,
			Model:       d.Model,
			IsRemovable: d.IsRemovable,
		})
	}

	return disks, nil
}

// skippedKernelPrefixes are virtual or non-disk block devices that never
// carry a power state: loopbacks, ramdisks, floppies, optical drives,
// device-mapper targets, md arrays and zvols.
var skippedKernelPrefixes = []string{"loop", "ram", "fd", "sr", "dm-", "md", "zd"}

// preferredIDPrefixes orders /dev/disk/by-id candidates; bus-level names
// survive reboots and controller reordering, so they win over model-based
// links.
var preferredIDPrefixes = []string{"ata-", "scsi-", "wwn-", "nvme-", "usb-", "virtio-"}

// Discover returns the current device list in a stable order. If the
// enumeration source is unavailable the scrape must still succeed, so the
// error is reported but an empty list is a valid outcome for the caller.
func (d *Discoverer) Discover() ([]Device, error) {
	raw, err := d.List()
	if err != nil {
		return nil, err
	}

	var devices []Device
	for _, disk := range raw {
		if skipKernelName(disk.Name) {
			continue
		}

		path := filepath.Join(d.DevPath, disk.Name)
		if _, err := os.Stat(path); err != nil {
			slog.Debug("skipping device without node", "device", path)
			continue
		}

		id := d.persistentID(path)
		devices = append(devices, Device{
			Path:      path,
			ID:        id,
			MediaType: d.classify(disk, id),
			Vendor:    disk.Vendor,
			Model:     disk.Model,
		})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })

	return devices, nil
}

func skipKernelName(name string) bool {
	for _, prefix := range skippedKernelPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}

func (d *Discoverer) classify(disk BlockDisk, id string) MediaType {
	if isVirtual(disk.Vendor, disk.Model, filepath.Base(id)) {
		return MediaVirtual
	}

	data, err := os.ReadFile(filepath.Join(d.SysBlockPath, disk.Name, "queue", "rotational"))
	if err != nil {
		return MediaUnknown
	}

	switch strings.TrimSpace(string(data)) {
	case "1":
		return MediaHDD
	case "0":
		return MediaSSD
	}

	return MediaUnknown
}

// isVirtual filters QEMU and other hypervisor-backed devices, which report a
// rotational flag but have no real power state to probe.
func isVirtual(vendor, model, idBase string) bool {
	vendor = strings.ToUpper(vendor)
	model = strings.ToUpper(model)
	if strings.Contains(vendor, "QEMU") || strings.Contains(model, "QEMU") {
		return true
	}
	if strings.Contains(vendor, "VIRTUAL") || strings.Contains(model, "VIRTUAL") {
		return true
	}

	for _, prefix := range []string{"scsi-0QEMU_", "ata-QEMU_", "virtio-"} {
		if strings.HasPrefix(idBase, prefix) {
			return true
		}
	}

	return false
}

// persistentID resolves the preferred /dev/disk/by-id symlink for a device
// node, falling back to the node path itself when no link points at it.
func (d *Discoverer) persistentID(devPath string) string {
	entries, err := os.ReadDir(d.ByIDPath)
	if err != nil {
		return devPath
	}

	real, err := filepath.EvalSymlinks(devPath)
	if err != nil {
		return devPath
	}

	var candidates []string
	for _, entry := range entries {
		target, err := filepath.EvalSymlinks(filepath.Join(d.ByIDPath, entry.Name()))
		if err != nil {
			continue
		}
		if target == real {
			candidates = append(candidates, entry.Name())
		}
	}

	if len(candidates) == 0 {
		return devPath
	}

	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := idPrefixRank(candidates[i]), idPrefixRank(candidates[j])
		if pi != pj {
			return pi < pj
		}
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) < len(candidates[j])
		}
		return candidates[i] < candidates[j]
	})

	return filepath.Join(d.ByIDPath, candidates[0])
}

func idPrefixRank(name string) int {
	for _, prefix := range preferredIDPrefixes {
		if strings.HasPrefix(name, prefix) {
			return 0
		}
	}

	return 1
}
