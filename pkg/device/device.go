// Package device collects the read-only app and host metadata that is
// attached to every report.
package device

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Info describes the running application and the machine it runs on.
type Info struct {
	AppVersion    string `json:"app_version" yaml:"app_version"`
	BuildNumber   string `json:"build_number" yaml:"build_number"`
	DeviceModel   string `json:"device_model" yaml:"device_model"`
	DeviceName    string `json:"device_name" yaml:"device_name"`
	SystemName    string `json:"system_name" yaml:"system_name"`
	SystemVersion string `json:"system_version" yaml:"system_version"`
	Memory        string `json:"memory,omitempty" yaml:"memory,omitempty"`
	CPUs          int    `json:"cpus,omitempty" yaml:"cpus,omitempty"`
	Language      string `json:"language,omitempty" yaml:"language,omitempty"`
	RuntimeInfo   string `json:"runtime,omitempty" yaml:"runtime,omitempty"`
}

// Collector produces device metadata. Platform bindings provide their own;
// Host is used otherwise.
type Collector interface {
	Collect() Info
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc func() Info

func (f CollectorFunc) Collect() Info {
	return f()
}

// Host collects what the Go runtime and the process environment expose.
type Host struct {
	AppVersion  string
	BuildNumber string
}

func (h Host) Collect() Info {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Info{
		AppVersion:    valueOr(h.AppVersion, "unknown"),
		BuildNumber:   valueOr(h.BuildNumber, "unknown"),
		DeviceModel:   runtime.GOARCH,
		DeviceName:    hostname,
		SystemName:    runtime.GOOS,
		SystemVersion: systemVersion(),
		Memory:        FormatSize(int64(mem.Sys)),
		CPUs:          runtime.NumCPU(),
		Language:      language(),
		RuntimeInfo:   runtime.Version(),
	}
}

// Rows returns the table rows rendered in the "Device & App Information"
// section, in display order. Empty values are skipped.
func (i Info) Rows() [][2]string {
	rows := [][2]string{
		{"App Version", fmt.Sprintf("%s (%s)", valueOr(i.AppVersion, "unknown"), valueOr(i.BuildNumber, "unknown"))},
		{"Device Model", i.DeviceModel},
		{"Device Name", i.DeviceName},
		{"OS", strings.TrimSpace(i.SystemName + " " + i.SystemVersion)},
		{"Memory", i.Memory},
		{"Language", i.Language},
		{"Runtime", i.RuntimeInfo},
	}
	if i.CPUs > 0 {
		rows = append(rows, [2]string{"CPUs", fmt.Sprintf("%d", i.CPUs)})
	}

	out := rows[:0]
	for _, row := range rows {
		if row[1] != "" {
			out = append(out, row)
		}
	}
	return out
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(size int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)

	switch {
	case size >= gb:
		return fmt.Sprintf("%.2f GB", float64(size)/gb)
	case size >= mb:
		return fmt.Sprintf("%.2f MB", float64(size)/mb)
	case size >= kb:
		return fmt.Sprintf("%.2f KB", float64(size)/kb)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func language() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			if i := strings.IndexByte(v, '.'); i > 0 {
				v = v[:i]
			}
			return v
		}
	}
	return ""
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
