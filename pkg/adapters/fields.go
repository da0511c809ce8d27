package adapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
)

// renderFields appends "key=value" pairs in key order so captured lines are
// stable across runs.
func renderFields(message string, fields map[string]interface{}) string {
	if len(fields) == 0 {
		return message
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(message)
	for _, k := range keys {
		value, _ := logstore.FormatArgs(fields[k])
		fmt.Fprintf(&b, " %s=%s", k, value)
	}
	return b.String()
}
