package executor

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// writeLogHeader writes the fixed 8-line per-task log header before the
// child's stdout/stderr starts flowing into the same file descriptor.
func writeLogHeader(w io.Writer, spec Spec) error {
	lines := []string{
		fmt.Sprintf("==== myqueue job %d ====", spec.ID),
		fmt.Sprintf("Script:  %s", spec.ScriptPath),
		fmt.Sprintf("Workdir: %s", spec.Workdir),
		fmt.Sprintf("CPUs (%d): %s", len(spec.CPUs), joinInts(spec.CPUs)),
		fmt.Sprintf("GPUs (%d): %s", len(spec.GPUs), joinInts(spec.GPUs)),
		fmt.Sprintf("Started: %s", time.Now().UTC().Format(time.RFC3339)),
		strings.Repeat("-", 30),
		"",
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}
