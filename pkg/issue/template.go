package issue

import (
	"fmt"
	"strings"
	"time"
)

const timestampLayout = "Jan 02, 2006 15:04:05 MST"

// RenderBody renders the fixed-structure markdown body of r. Media sections
// appear only for attachments that have a URL.
func RenderBody(r *Report) string {
	var b strings.Builder

	b.WriteString("### Description\n")
	b.WriteString(valueOr(r.Description, "_No description provided._"))
	b.WriteString("\n\n")

	b.WriteString("### Report Information\n")
	writeTable(&b, [][2]string{
		{"Report Type", r.Type.DisplayText()},
		{"Email", valueOr(r.Email, "not provided")},
		{"Timestamp", formatTime(r.Timestamp)},
	})
	b.WriteString("\n")

	if r.Device != nil {
		b.WriteString("### Device & App Information\n")
		writeTable(&b, r.Device.Rows())
		b.WriteString("\n")
	}

	if r.Crash != nil {
		b.WriteString("### Crash Information\n")
		fmt.Fprintf(&b, "- **Type**: %s\n", r.Crash.Type)
		fmt.Fprintf(&b, "- **Time**: %s\n\n", formatTime(r.Crash.Timestamp))
		writeFence(&b, r.Crash.Details)
		b.WriteString("\n")
	}

	b.WriteString("### Logs\n\n")
	b.WriteString("#### JavaScript Logs\n")
	writeFence(&b, r.JSLogs)
	b.WriteString("\n#### Native Logs\n")
	writeFence(&b, r.NativeLogs)

	if r.ScreenshotURL != "" {
		b.WriteString("\n### Screenshot\n")
		writeMedia(&b, "Screenshot", r.ScreenshotURL)
	}
	if r.ReplayURL != "" {
		b.WriteString("\n### Session Replay\n")
		writeMedia(&b, "Session Replay", r.ReplayURL)
	}

	return b.String()
}

func writeTable(b *strings.Builder, rows [][2]string) {
	b.WriteString("| Property | Value |\n")
	b.WriteString("| ----- | ----- |\n")
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", row[0], escapeCell(row[1]))
	}
}

// writeFence wraps content in a code fence long enough that backticks inside
// the logs cannot close it early.
func writeFence(b *strings.Builder, content string) {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	b.WriteString(fence)
	b.WriteByte('\n')
	if content != "" {
		b.WriteString(strings.TrimRight(content, "\n"))
		b.WriteByte('\n')
	}
	b.WriteString(fence)
	b.WriteByte('\n')
}

func writeMedia(b *strings.Builder, label, url string) {
	b.WriteString("<details open>\n")
	fmt.Fprintf(b, "  <summary>%s</summary>\n", label)
	fmt.Fprintf(b, "  <img src=\"%s\" alt=\"%s\" height=\"500\">\n", url, label)
	b.WriteString("</details>\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(timestampLayout)
}

func valueOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
