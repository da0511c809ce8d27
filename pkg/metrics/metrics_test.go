package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kerlexov/bugreport-go-sdk/pkg/crash"
	"github.com/kerlexov/bugreport-go-sdk/pkg/github"
	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
	"github.com/kerlexov/bugreport-go-sdk/pkg/netmon"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	_ logstore.Observer      = (*Metrics)(nil)
	_ crash.Observer         = (*Metrics)(nil)
	_ netmon.Observer        = (*Metrics)(nil)
	_ github.RequestObserver = (*Metrics)(nil)
)

func TestStoreObserver(t *testing.T) {
	m := New()
	store := logstore.New(2, logstore.WithObserver(m))

	store.Append(logstore.LevelInfo, "one")
	store.Append(logstore.LevelInfo, "two")
	store.Append(logstore.LevelWarn, "three", make(chan int))

	if got := testutil.ToFloat64(m.logsAppended.WithLabelValues("INFO")); got != 2 {
		t.Errorf("Expected 2 INFO appends, got %v", got)
	}
	if got := testutil.ToFloat64(m.logsEvicted); got != 1 {
		t.Errorf("Expected 1 eviction, got %v", got)
	}
	if got := testutil.ToFloat64(m.serializationFailures); got != 1 {
		t.Errorf("Expected 1 serialization failure, got %v", got)
	}
}

func TestRequestCounters(t *testing.T) {
	m := New()

	m.TrackerRequest("create_issue", 201, 20*time.Millisecond, nil)
	m.TrackerRequest("create_issue", 0, time.Second, errors.New("offline"))
	m.NetworkRequest("GET", 200, time.Millisecond, nil)
	m.CrashHandled(crash.OutcomePersisted)
	m.ReportSubmitted("", nil)

	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{"tracker 201", testutil.ToFloat64(m.trackerRequests.WithLabelValues("create_issue", "201")), 1},
		{"tracker error", testutil.ToFloat64(m.trackerRequests.WithLabelValues("create_issue", "error")), 1},
		{"network 200", testutil.ToFloat64(m.networkRequests.WithLabelValues("GET", "200")), 1},
		{"crash persisted", testutil.ToFloat64(m.crashes.WithLabelValues("persisted")), 1},
		{"report bug success", testutil.ToFloat64(m.reports.WithLabelValues("bug", "success")), 1},
	}
	for _, tt := range tests {
		if tt.value != tt.expected {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, tt.value)
		}
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.LogsEvicted(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "bugreport_logs_evicted_total 3") {
		t.Errorf("Expected evicted counter in exposition output, got:\n%s", body)
	}
}
