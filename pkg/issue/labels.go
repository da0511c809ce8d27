package issue

var typeLabels = map[ReportType][]string{
	TypeBug:        {"bug"},
	TypeSuggestion: {"enhancement"},
	TypeQuestion:   {"question"},
	TypeCrash:      {"bug", "crash"},
}

// Labels maps a report type onto the tracker label set and appends extra
// labels that are not already present. Absent or unknown types map to
// ["bug"].
func Labels(t ReportType, extra ...string) []string {
	base, ok := typeLabels[t]
	if !ok {
		base = typeLabels[TypeBug]
	}

	labels := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, group := range [][]string{base, extra} {
		for _, l := range group {
			if l == "" {
				continue
			}
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			labels = append(labels, l)
		}
	}
	return labels
}
