package challenge

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// ScriptStep wraps a local command as a challenge step. The
// command's exit code determines success; combined output is
// included in the error on failure. Useful for challenges that
// shell out to automation scripts.
func ScriptStep(
	label, command string,
	args ...string,
) Step {
	return Step{
		Label: label,
		Run: func(ctx context.Context) error {
			if _, err := exec.LookPath(command); err != nil {
				return fmt.Errorf(
					"command %s not found: %w", command, err,
				)
			}

			cmd := exec.CommandContext(ctx, command, args...)
			var out bytes.Buffer
			cmd.Stdout = &out
			cmd.Stderr = &out

			if err := cmd.Run(); err != nil {
				return fmt.Errorf(
					"command %s failed: %w: %s",
					command, err, truncate(out.String(), 512),
				)
			}
			return nil
		},
	}
}

// FileCheckStep succeeds when the given path exists. Used by
// file-management challenges to verify produced artifacts.
func FileCheckStep(label, path string) Step {
	return Step{
		Label: label,
		Run: func(_ context.Context) error {
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf(
					"expected file %s: %w", path, err,
				)
			}
			return nil
		},
	}
}

// truncate shortens s to at most n bytes for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
