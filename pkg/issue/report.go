// Package issue turns captured context into a tracker issue: it uploads
// attachments, renders the body, picks labels and hands the result to a
// Tracker.
package issue

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/kerlexov/bugreport-go-sdk/pkg/device"
)

type ReportType string

const (
	TypeBug        ReportType = "bug"
	TypeSuggestion ReportType = "suggestion"
	TypeQuestion   ReportType = "question"
	TypeCrash      ReportType = "crash"
)

// ParseReportType normalizes user input. Unknown or empty input yields "".
func ParseReportType(s string) ReportType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bug":
		return TypeBug
	case "suggestion", "enhancement", "feature":
		return TypeSuggestion
	case "question":
		return TypeQuestion
	case "crash":
		return TypeCrash
	}
	return ""
}

func (t ReportType) Valid() bool {
	switch t {
	case TypeBug, TypeSuggestion, TypeQuestion, TypeCrash:
		return true
	}
	return false
}

func (t ReportType) Icon() string {
	switch t {
	case TypeSuggestion:
		return "💡"
	case TypeQuestion:
		return "❓"
	case TypeCrash:
		return "🚨"
	default:
		return "🐞"
	}
}

func (t ReportType) DisplayName() string {
	switch t {
	case TypeSuggestion:
		return "Suggestion"
	case TypeQuestion:
		return "Question"
	case TypeCrash:
		return "Crash"
	default:
		return "Bug"
	}
}

// DisplayText is the icon followed by the display name, e.g. "🐞 Bug".
func (t ReportType) DisplayText() string {
	return t.Icon() + " " + t.DisplayName()
}

// Attachment is a binary blob uploaded before the issue is created.
type Attachment struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Ext returns the file extension without the dot, derived from the file
// name first and the content type second.
func (a *Attachment) Ext() string {
	if ext := strings.TrimPrefix(filepath.Ext(a.Filename), "."); ext != "" {
		return strings.ToLower(ext)
	}
	switch a.ContentType {
	case "image/jpeg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	}
	return "png"
}

func (a *Attachment) empty() bool {
	return a == nil || len(a.Data) == 0
}

// CrashInfo is the crash block of a report.
type CrashInfo struct {
	Type      string
	Details   string
	Timestamp time.Time
}

// Report is built for a single submission and never stored.
type Report struct {
	Title         string
	Email         string
	Description   string
	Type          ReportType
	JSLogs        string
	NativeLogs    string
	Screenshot    *Attachment
	Replay        *Attachment
	ScreenshotURL string
	ReplayURL     string
	Crash         *CrashInfo
	Device        *device.Info
	Timestamp     time.Time
}

// Tracker is the external issue-tracker collaborator.
type Tracker interface {
	Configured() bool
	CreateIssue(ctx context.Context, title, body string, labels []string) (string, error)
}

// Uploader stores a file and returns a URL that can be embedded in the body.
type Uploader interface {
	UploadFile(ctx context.Context, path string, content []byte, message string) (string, error)
}
