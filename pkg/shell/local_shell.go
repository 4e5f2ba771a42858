package shell

import (
	"context"
	"os/exec"
)

type LocalShell struct{}

// Execute runs the command and returns its standard output. When ctx expires
// the process is killed, not abandoned. On a non-zero exit the captured
// stdout is still returned alongside the *exec.ExitError so callers can parse
// partial output.
func (LocalShell) Execute(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	wrapperCmd := exec.CommandContext(ctx, cmd, args...)
	output, err := wrapperCmd.Output()

	return output, err
}
