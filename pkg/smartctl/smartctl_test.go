package smartctl_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/johnmathews/disk-status-exporter/internal/testutil"
	"github.com/johnmathews/disk-status-exporter/pkg/smartctl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCall struct {
	Output []byte
	Err    error
}

// MockShell replays a scripted sequence of results, one per invocation. The
// last entry repeats if the probe keeps retrying.
type MockShell struct {
	mu       sync.Mutex
	Calls    []mockCall
	Invoked  int
	LastArgs []string
}

func (m *MockShell) Execute(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.Invoked
	if i >= len(m.Calls) {
		i = len(m.Calls) - 1
	}
	m.Invoked++
	m.LastArgs = args

	return m.Calls[i].Output, m.Calls[i].Err
}

// hangingShell blocks until the attempt deadline fires, like a disk that
// never answers the passthrough command.
type hangingShell struct{}

func (hangingShell) Execute(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func mockSmartCtl(sh smartctl.SmartCtl) *smartctl.SmartCtl {
	if sh.Cmd == "" {
		sh.Cmd = "/fake/smartctl"
	}
	if sh.DeviceType == "" {
		sh.DeviceType = "sat"
	}
	if sh.Attempts == 0 {
		sh.Attempts = 1
	}
	if sh.Timeout == 0 {
		sh.Timeout = time.Second
	}

	return &sh
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()

	return testutil.MustReadTestOutputData(t, name)
}

func TestProbeClassifiesPowerModes(t *testing.T) {
	cases := []struct {
		fixture      string
		expectedCode int
		expectedMode string
	}{
		{"testdata/power_mode_standby.txt", smartctl.StateStandby, "STANDBY"},
		{"testdata/power_mode_idle.txt", smartctl.StateIdle, "IDLE_A"},
		{"testdata/power_mode_active.txt", smartctl.StateActiveOrIdle, "ACTIVE or IDLE"},
	}

	for _, c := range cases {
		mshell := &MockShell{Calls: []mockCall{{Output: readFixture(t, c.fixture)}}}
		s := mockSmartCtl(smartctl.SmartCtl{Shell: mshell})

		res := s.Probe(context.Background(), "/dev/sda")
		assert.Equal(t, c.expectedCode, res.Code, c.fixture)
		assert.Equal(t, c.expectedMode, res.Mode, c.fixture)
		assert.False(t, res.TimedOut)
	}
}

func TestProbePassesDeviceTypeAndNocheck(t *testing.T) {
	mshell := &MockShell{Calls: []mockCall{{Output: readFixture(t, "testdata/power_mode_active.txt")}}}
	s := mockSmartCtl(smartctl.SmartCtl{Shell: mshell})

	s.Probe(context.Background(), "/dev/sda")
	assert.Equal(t, []string{"-d", "sat", "-n", "standby", "-i", "/dev/sda"}, mshell.LastArgs)
}

func TestProbeStandbyExitStatusStillParsed(t *testing.T) {
	// -n standby exits with status 2 when the disk is asleep; the power mode
	// line must win over the exit error.
	mshell := &MockShell{Calls: []mockCall{{
		Output: readFixture(t, "testdata/power_mode_standby.txt"),
		Err:    errors.New("exit status 2"),
	}}}
	s := mockSmartCtl(smartctl.SmartCtl{Shell: mshell})

	res := s.Probe(context.Background(), "/dev/sda")
	assert.Equal(t, smartctl.StateStandby, res.Code)
	assert.Equal(t, "STANDBY", res.Mode)
	assert.False(t, res.TimedOut)
}

func TestProbeUnparseableOutputIsUnknown(t *testing.T) {
	mshell := &MockShell{Calls: []mockCall{{Output: readFixture(t, "testdata/power_mode_missing.txt")}}}
	s := mockSmartCtl(smartctl.SmartCtl{Shell: mshell})

	res := s.Probe(context.Background(), "/dev/sda")
	assert.Equal(t, smartctl.StateUnknown, res.Code)
	assert.Equal(t, "UNKNOWN", res.Mode)
	assert.False(t, res.TimedOut)
}

func TestProbeUnrecognizedModeKeepsLabel(t *testing.T) {
	mshell := &MockShell{Calls: []mockCall{{Output: []byte("Power mode is: PARTY\n")}}}
	s := mockSmartCtl(smartctl.SmartCtl{Shell: mshell})

	res := s.Probe(context.Background(), "/dev/sda")
	assert.Equal(t, smartctl.StateUnknown, res.Code)
	assert.Equal(t, "PARTY", res.Mode)
}

func TestProbeExecFailureIsError(t *testing.T) {
	mshell := &MockShell{Calls: []mockCall{{Err: errors.New("fork/exec /fake/smartctl: no such file or directory")}}}
	s := mockSmartCtl(smartctl.SmartCtl{Shell: mshell})

	res := s.Probe(context.Background(), "/dev/sda")
	assert.Equal(t, smartctl.StateError, res.Code)
	assert.Equal(t, "ERROR", res.Mode)
	assert.False(t, res.TimedOut)
}

func TestProbeTimeout(t *testing.T) {
	s := mockSmartCtl(smartctl.SmartCtl{
		Shell:   hangingShell{},
		Timeout: 10 * time.Millisecond,
	})

	res := s.Probe(context.Background(), "/dev/sdb")
	assert.Equal(t, smartctl.StateError, res.Code)
	assert.Equal(t, "TIMEOUT", res.Mode)
	assert.True(t, res.TimedOut)
}

func TestProbeStopsAtFirstDefinitiveState(t *testing.T) {
	mshell := &MockShell{Calls: []mockCall{
		{Err: errors.New("exit status 1")},
		{Output: readFixture(t, "testdata/power_mode_idle.txt")},
		{Output: readFixture(t, "testdata/power_mode_active.txt")},
	}}
	s := mockSmartCtl(smartctl.SmartCtl{
		Shell:    mshell,
		Attempts: 3,
		Interval: 5 * time.Millisecond,
	})

	start := time.Now()
	res := s.Probe(context.Background(), "/dev/sda")

	assert.Equal(t, smartctl.StateIdle, res.Code)
	assert.Equal(t, 2, mshell.Invoked, "must stop after first definitive attempt")
	assert.Less(t, time.Since(start), 2*time.Second, "two fast attempts must stay well under the wall-time bound")
	assert.False(t, res.TimedOut)
}

func TestProbeExhaustsAttempts(t *testing.T) {
	mshell := &MockShell{Calls: []mockCall{{Output: readFixture(t, "testdata/power_mode_missing.txt")}}}
	s := mockSmartCtl(smartctl.SmartCtl{
		Shell:    mshell,
		Attempts: 3,
		Interval: time.Millisecond,
	})

	res := s.Probe(context.Background(), "/dev/sda")
	assert.Equal(t, smartctl.StateUnknown, res.Code)
	assert.Equal(t, 3, mshell.Invoked)
}

func TestProbeResultHasTimestamp(t *testing.T) {
	mshell := &MockShell{Calls: []mockCall{{Output: readFixture(t, "testdata/power_mode_standby.txt")}}}
	s := mockSmartCtl(smartctl.SmartCtl{Shell: mshell})

	before := time.Now()
	res := s.Probe(context.Background(), "/dev/sda")
	require.False(t, res.ObservedAt.IsZero())
	assert.False(t, res.ObservedAt.Before(before))
}
