package issue

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kerlexov/bugreport-go-sdk/pkg/device"
	"github.com/kerlexov/bugreport-go-sdk/pkg/errs"
	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
)

type fakeTracker struct {
	configured bool
	url        string
	err        error

	calls  int
	title  string
	body   string
	labels []string
}

func (f *fakeTracker) Configured() bool { return f.configured }

func (f *fakeTracker) CreateIssue(ctx context.Context, title, body string, labels []string) (string, error) {
	f.calls++
	f.title = title
	f.body = body
	f.labels = labels
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeUploader struct {
	err   error
	paths []string
}

func (f *fakeUploader) UploadFile(ctx context.Context, path string, content []byte, message string) (string, error) {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return "", f.err
	}
	return "https://example.com/" + path, nil
}

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLabels(t *testing.T) {
	tests := []struct {
		name     string
		typ      ReportType
		extra    []string
		expected []string
	}{
		{"bug", TypeBug, nil, []string{"bug"}},
		{"suggestion", TypeSuggestion, nil, []string{"enhancement"}},
		{"question", TypeQuestion, nil, []string{"question"}},
		{"crash", TypeCrash, nil, []string{"bug", "crash"}},
		{"omitted", "", nil, []string{"bug"}},
		{"unknown", ReportType("feedback"), nil, []string{"bug"}},
		{"extra deduplicated", TypeCrash, []string{"crash", "triage", ""}, []string{"bug", "crash", "triage"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Labels(tt.typ, tt.extra...)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Labels(%q) = %v, want %v", tt.typ, got, tt.expected)
			}
		})
	}
}

func TestParseReportType(t *testing.T) {
	tests := map[string]ReportType{
		"Bug":         TypeBug,
		"enhancement": TypeSuggestion,
		" question ":  TypeQuestion,
		"CRASH":       TypeCrash,
		"":            "",
		"other":       "",
	}
	for input, expected := range tests {
		if got := ParseReportType(input); got != expected {
			t.Errorf("ParseReportType(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestRenderBodySectionOrder(t *testing.T) {
	body := RenderBody(&Report{
		Description:   "Button does nothing",
		Email:         "dev@example.com",
		Type:          TypeCrash,
		JSLogs:        "js line",
		NativeLogs:    "native line",
		ScreenshotURL: "https://example.com/s.png",
		ReplayURL:     "https://example.com/r.gif",
		Crash:         &CrashInfo{Type: "panic", Details: "boom", Timestamp: fixedTime},
		Device:        &device.Info{AppVersion: "1.0", BuildNumber: "7", DeviceModel: "arm64"},
		Timestamp:     fixedTime,
	})

	sections := []string{
		"### Description",
		"### Report Information",
		"| Report Type | 🚨 Crash |",
		"| Email | dev@example.com |",
		"| Timestamp | Mar 01, 2024 12:00:00 UTC |",
		"### Device & App Information",
		"| App Version | 1.0 (7) |",
		"### Crash Information",
		"- **Type**: panic",
		"### Logs",
		"#### JavaScript Logs",
		"js line",
		"#### Native Logs",
		"native line",
		"### Screenshot",
		"### Session Replay",
	}

	last := -1
	for _, section := range sections {
		idx := strings.Index(body, section)
		if idx < 0 {
			t.Fatalf("Expected body to contain %q, got:\n%s", section, body)
		}
		if idx < last {
			t.Errorf("Expected %q after the previous section", section)
		}
		last = idx
	}
}

func TestRenderBodyFenceSurvivesBackticks(t *testing.T) {
	body := RenderBody(&Report{JSLogs: "```inner```"})

	if !strings.Contains(body, "````\n```inner```\n````") {
		t.Errorf("Expected a longer fence around logs containing backticks, got:\n%s", body)
	}
}

func TestSubmitUnconfiguredTracker(t *testing.T) {
	store := logstore.New(10)
	tracker := &fakeTracker{configured: false}
	uploader := &fakeUploader{}
	s := NewSubmitter(tracker, WithUploader(uploader), WithStore(store))

	_, err := s.Submit(context.Background(), &Report{
		Screenshot: &Attachment{Data: []byte("png")},
	})

	if !errs.Is(err, errs.ErrTypeConfig) {
		t.Fatalf("Expected config error, got %v", err)
	}
	if tracker.calls != 0 || len(uploader.paths) != 0 {
		t.Errorf("Expected no I/O, got %d issue calls and %d uploads", tracker.calls, len(uploader.paths))
	}
	if !strings.Contains(store.Snapshot(), "Issue submission failed:") {
		t.Errorf("Expected failure to be logged, got %q", store.Snapshot())
	}

	if _, err := NewSubmitter(nil).Submit(context.Background(), &Report{}); !errs.Is(err, errs.ErrTypeConfig) {
		t.Errorf("Expected config error for nil tracker, got %v", err)
	}
}

func TestSubmitLabels(t *testing.T) {
	tests := []struct {
		typ      ReportType
		expected []string
	}{
		{TypeQuestion, []string{"question"}},
		{"", []string{"bug"}},
	}

	for _, tt := range tests {
		tracker := &fakeTracker{configured: true, url: "https://github.com/o/r/issues/1"}
		s := NewSubmitter(tracker, WithClock(func() time.Time { return fixedTime }))

		if _, err := s.Submit(context.Background(), &Report{Type: tt.typ}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !reflect.DeepEqual(tracker.labels, tt.expected) {
			t.Errorf("Type %q: expected labels %v, got %v", tt.typ, tt.expected, tracker.labels)
		}
	}
}

func TestSubmitScreenshotUploadFailure(t *testing.T) {
	store := logstore.New(10)
	tracker := &fakeTracker{configured: true, url: "https://github.com/o/r/issues/2"}
	uploader := &fakeUploader{err: errors.New("upload refused")}
	s := NewSubmitter(tracker, WithUploader(uploader), WithStore(store))

	url, err := s.Submit(context.Background(), &Report{
		Description: "broken",
		Screenshot:  &Attachment{Data: []byte("jpeg"), ContentType: "image/jpeg"},
	})

	if err != nil {
		t.Fatalf("Expected success despite upload failure, got %v", err)
	}
	if url != tracker.url {
		t.Errorf("Expected URL %s, got %s", tracker.url, url)
	}
	if tracker.calls != 1 {
		t.Errorf("Expected exactly 1 issue call, got %d", tracker.calls)
	}
	if strings.Contains(tracker.body, "### Screenshot") {
		t.Errorf("Expected no screenshot section, got:\n%s", tracker.body)
	}
	if !strings.Contains(store.Snapshot(), "Failed to upload screenshot:") {
		t.Errorf("Expected upload failure in the store, got %q", store.Snapshot())
	}
}

func TestSubmitUploadsAttachments(t *testing.T) {
	store := logstore.New(10)
	tracker := &fakeTracker{configured: true, url: "https://github.com/o/r/issues/3"}
	uploader := &fakeUploader{}
	s := NewSubmitter(tracker,
		WithUploader(uploader),
		WithStore(store),
		WithClock(func() time.Time { return fixedTime }),
	)

	_, err := s.Submit(context.Background(), &Report{
		Screenshot: &Attachment{Data: []byte("png"), Filename: "capture.PNG"},
		Replay:     &Attachment{Data: []byte("gif")},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expectedPaths := []string{
		"screenshots/screenshot_20240301_120000.png",
		"replays/replay_20240301_120000.gif",
	}
	if !reflect.DeepEqual(uploader.paths, expectedPaths) {
		t.Errorf("Expected upload paths %v, got %v", expectedPaths, uploader.paths)
	}
	if !strings.Contains(tracker.body, `<img src="https://example.com/screenshots/screenshot_20240301_120000.png"`) {
		t.Errorf("Expected screenshot link in body, got:\n%s", tracker.body)
	}
	if !strings.Contains(tracker.body, "### Session Replay") {
		t.Errorf("Expected session replay section, got:\n%s", tracker.body)
	}
	if tracker.title != "Bug Report" {
		t.Errorf("Expected default title, got %q", tracker.title)
	}
	if !strings.HasSuffix(store.Snapshot(), "[CUSTOM] Issue created: "+tracker.url) {
		t.Errorf("Expected issue URL logged, got %q", store.Snapshot())
	}
}

func TestSubmitTrackerErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected errs.ErrType
	}{
		{"typed api error", errs.APIError(422, `{"message":"Validation Failed"}`), errs.ErrTypeAPI},
		{"untyped error", errors.New("connection reset"), errs.ErrTypeTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := &fakeTracker{configured: true, err: tt.err}
			_, err := NewSubmitter(tracker).Submit(context.Background(), &Report{})
			if errs.TypeOf(err) != tt.expected {
				t.Errorf("Expected %s, got %v", tt.expected, err)
			}
		})
	}
}

func TestFormValidate(t *testing.T) {
	tests := []struct {
		name    string
		form    Form
		wantErr string
	}{
		{"valid", Form{Description: "it broke", Email: "a@b.co", Type: "Bug"}, ""},
		{"missing description", Form{}, "description is required"},
		{"bad email", Form{Description: "x", Email: "nope"}, "email must be a valid email address"},
		{"bad type", Form{Description: "x", Type: "rant"}, "type must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
			if !errs.Is(err, errs.ErrTypeInvalidArgument) {
				t.Errorf("Expected invalid argument error, got %v", err)
			}
		})
	}
}

func TestFormNormalizesType(t *testing.T) {
	form := Form{Description: "idea", Type: "enhancement"}
	if err := form.Validate(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if form.Type != TypeSuggestion {
		t.Errorf("Expected type %q, got %q", TypeSuggestion, form.Type)
	}

	report := form.Report("js", "native")
	if report.Type != TypeSuggestion || report.JSLogs != "js" || report.NativeLogs != "native" {
		t.Errorf("Unexpected report %+v", report)
	}
}
