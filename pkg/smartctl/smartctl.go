// Package smartctl wraps the external smartctl binary to read a disk's power
// mode. The invocation always pins the device type and passes -n standby so
// the query itself can never spin a sleeping disk up.
package smartctl

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/johnmathews/disk-status-exporter/pkg/config"
	"github.com/johnmathews/disk-status-exporter/pkg/shell"
)

// Numeric power-state codes, kept compatible with existing Prometheus rules.
const (
	StateError        = -2
	StateUnknown      = -1
	StateStandby      = 0
	StateIdle         = 1
	StateActiveOrIdle = 2
)

type SmartCtl struct {
	Shell      shell.Shell
	Cmd        string
	DeviceType string
	Attempts   int
	Interval   time.Duration
	Timeout    time.Duration
}

// Result is the outcome of one probe, covering all attempts for one device.
type Result struct {
	DevicePath string
	Code       int
	Mode       string // raw smartctl power mode, e.g. STANDBY, IDLE_A
	TimedOut   bool
	ObservedAt time.Time
}

var powerModeRe = regexp.MustCompile(`Power mode (?:is|was):\s*(.+)`)

func New(cfg config.SmartctlConfig, sh shell.Shell) *SmartCtl {
	return &SmartCtl{
		Shell:      sh,
		Cmd:        cfg.Executable,
		DeviceType: cfg.DeviceType,
		Attempts:   cfg.Attempts,
		Interval:   time.Duration(cfg.IntervalMS) * time.Millisecond,
		Timeout:    time.Duration(cfg.TimeoutMS) * time.Millisecond,
	}
}

// Probe runs up to Attempts invocations against one device, sleeping Interval
// between them, and stops at the first definitive state. Retries exist for
// flaky links only. Total wall time never exceeds
// Attempts*Timeout + (Attempts-1)*Interval.
func (s *SmartCtl) Probe(ctx context.Context, devicePath string) Result {
	var res Result
	for attempt := 1; attempt <= s.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(s.Interval):
			case <-ctx.Done():
				return res
			}
		}

		res = s.runOnce(ctx, devicePath)
		if res.Code >= StateStandby {
			return res
		}
		slog.Debug("probe attempt not definitive",
			"device", devicePath, "attempt", attempt, "mode", res.Mode)
	}

	return res
}

func (s *SmartCtl) runOnce(ctx context.Context, devicePath string) Result {
	attemptCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	output, err := s.Shell.Execute(attemptCtx, s.Cmd,
		"-d", s.DeviceType, "-n", "standby", "-i", devicePath)

	res := Result{DevicePath: devicePath, ObservedAt: time.Now()}
	mode, parsed := parsePowerMode(output)

	switch {
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		res.Code = StateError
		res.Mode = "TIMEOUT"
		res.TimedOut = true
		slog.Warn("smartctl timeout", "device", devicePath, "timeout", s.Timeout)
	case parsed:
		// smartctl sets exit status bits for non-fatal conditions, and -n
		// standby exits non-zero when the disk is asleep. A parseable power
		// mode always wins over the exit status.
		res.Mode = mode
		res.Code = classifyMode(mode)
	case err != nil:
		res.Code = StateError
		res.Mode = "ERROR"
		slog.Warn("smartctl failed", "device", devicePath, "error", err)
	default:
		res.Code = StateUnknown
		res.Mode = "UNKNOWN"
	}

	return res
}

func parsePowerMode(output []byte) (string, bool) {
	matches := powerModeRe.FindSubmatch(output)
	if len(matches) != 2 {
		return "", false
	}

	return strings.TrimSpace(string(matches[1])), true
}

// classifyMode maps a raw smartctl mode to the numeric code space. SLEEP is
// treated like STANDBY: both mean the platters are stopped.
func classifyMode(raw string) int {
	switch strings.ToUpper(raw) {
	case "STANDBY", "SLEEP":
		return StateStandby
	case "IDLE", "IDLE_A", "IDLE_B", "IDLE_C":
		return StateIdle
	case "ACTIVE OR IDLE":
		return StateActiveOrIdle
	}

	return StateUnknown
}
