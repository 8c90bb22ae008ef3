// pkg/omboot_err/summary.go

package omboot_err

import (
	"context"
	"strings"
)

// ExtractSummary returns the last maxLines non-empty lines of command
// output, for embedding in error logs without reproducing whole transcripts.
func ExtractSummary(ctx context.Context, output string, maxLines int) string {
	_ = ctx
	if maxLines <= 0 {
		maxLines = 1
	}
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, " | ")
}
