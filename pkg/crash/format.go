package crash

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"
)

const (
	maxStackBytes   = 64 * 1024
	maxCrashTypeLen = 120
)

// FormatDetails renders the reason and stack the way they appear in the
// crash block of an issue.
func FormatDetails(reason string, stack []byte) string {
	var b strings.Builder
	b.WriteString("Reason: ")
	b.WriteString(reason)
	stack = bytes.TrimSpace(stack)
	if len(stack) > 0 {
		b.WriteString("\n\nStack trace:\n")
		b.Write(stack)
	}
	return b.String()
}

// panicType names a recovered panic value for the issue title.
func panicType(v any) string {
	var reason string
	switch x := v.(type) {
	case error:
		reason = x.Error()
	case fmt.Stringer:
		reason = x.String()
	case string:
		reason = x
	default:
		reason = fmt.Sprintf("%v", x)
	}
	return truncate("panic: "+firstLine(reason), maxCrashTypeLen)
}

// allStacks captures every goroutine's stack, bounded in size.
func allStacks() []byte {
	buf := make([]byte, maxStackBytes)
	n := runtime.Stack(buf, true)
	return buf[:n]
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
