package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Remediation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Status | Records |\n")
	sb.WriteString("|--------|---------|\n")
	sb.WriteString(fmt.Sprintf("| done | %d |\n", r.Summary.Done))
	sb.WriteString(fmt.Sprintf("| skipped | %d |\n", r.Summary.Skipped))
	sb.WriteString(fmt.Sprintf("| failed | %d |\n", r.Summary.Failed))
	sb.WriteString(fmt.Sprintf("| **total** | %d |\n", r.Summary.Total))
	sb.WriteString("\n")

	// Outcomes
	sb.WriteString("## Outcomes\n\n")
	if len(r.Outcomes) == 0 {
		sb.WriteString("No metadata records processed.\n\n")
		return sb.String()
	}

	sb.WriteString("| Metadata | Mint | Status | Attempts | Signature | Reason |\n")
	sb.WriteString("|----------|------|--------|----------|-----------|--------|\n")
	for _, o := range r.Outcomes {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s | %s |\n",
			o.MetadataAddress, o.MintAddress, o.Status, o.Attempts, o.Signature, escapeCell(o.Reason)))
	}
	sb.WriteString("\n")

	return sb.String()
}

// escapeCell keeps a value on one table row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
