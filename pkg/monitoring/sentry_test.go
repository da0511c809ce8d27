package monitoring

import (
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/kerlexov/bugreport-go-sdk/pkg/crash"
	"github.com/kerlexov/bugreport-go-sdk/pkg/errs"
)

var _ crash.Mirror = (*Sentry)(nil)

func TestNewSentryRequiresDSN(t *testing.T) {
	if _, err := NewSentry(Config{}); !errs.Is(err, errs.ErrTypeConfig) {
		t.Errorf("Expected config error for empty DSN, got %v", err)
	}
	if _, err := NewSentry(Config{DSN: "::not a dsn"}); !errs.Is(err, errs.ErrTypeConfig) {
		t.Errorf("Expected config error for invalid DSN, got %v", err)
	}
}

func TestCrashEvent(t *testing.T) {
	rec := crash.Record{
		ID:          "abc",
		Timestamp:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		CrashType:   "panic: boom",
		Details:     "Reason: boom",
		AppVersion:  "1.0.0",
		DeviceModel: "arm64",
	}

	event := crashEvent(rec)

	if event.Level != sentry.LevelFatal {
		t.Errorf("Expected fatal level, got %s", event.Level)
	}
	if event.Message != "panic: boom" {
		t.Errorf("Unexpected message %q", event.Message)
	}
	if event.Tags["crash_id"] != "abc" || event.Tags["app_version"] != "1.0.0" {
		t.Errorf("Unexpected tags %v", event.Tags)
	}
	if event.Extra["details"] != "Reason: boom" {
		t.Errorf("Unexpected extra %v", event.Extra)
	}
	if !event.Timestamp.Equal(rec.Timestamp) {
		t.Errorf("Expected timestamp %s, got %s", rec.Timestamp, event.Timestamp)
	}
}
