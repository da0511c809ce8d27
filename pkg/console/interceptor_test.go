package console

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"testing"

	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
)

type recordingSink struct {
	calls []string
}

func (r *recordingSink) record(level string, args []any) {
	r.calls = append(r.calls, level+":"+strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

func (r *recordingSink) Log(args ...any)   { r.record("log", args) }
func (r *recordingSink) Info(args ...any)  { r.record("info", args) }
func (r *recordingSink) Warn(args ...any)  { r.record("warn", args) }
func (r *recordingSink) Error(args ...any) { r.record("error", args) }

func TestInterceptorCapturesAndForwards(t *testing.T) {
	store := logstore.New(10)
	original := &recordingSink{}
	c := New(original)

	interceptor := NewInterceptor(store, c)
	if !interceptor.Install() {
		t.Fatal("Expected first install to succeed")
	}

	c.Log("hello", 1)
	c.Info("info")
	c.Warn("warn")
	c.Error("error")

	entries := store.Entries()
	if len(entries) != 4 {
		t.Fatalf("Expected 4 captured entries, got %d", len(entries))
	}

	levels := []logstore.Level{logstore.LevelLog, logstore.LevelInfo, logstore.LevelWarn, logstore.LevelError}
	for i, level := range levels {
		if entries[i].Level != level {
			t.Errorf("Expected entry %d level %s, got %s", i, level, entries[i].Level)
		}
	}
	if entries[0].Message != "hello 1" {
		t.Errorf("Expected message 'hello 1', got %q", entries[0].Message)
	}

	if len(original.calls) != 4 {
		t.Fatalf("Expected original sink to receive 4 calls, got %d", len(original.calls))
	}
	if original.calls[0] != "log:hello 1" {
		t.Errorf("Expected original args to be forwarded unchanged, got %q", original.calls[0])
	}
}

func TestInterceptorInstallTwiceIsSingleLayer(t *testing.T) {
	store := logstore.New(10)
	original := &recordingSink{}
	c := New(original)

	interceptor := NewInterceptor(store, c)
	interceptor.Install()
	if interceptor.Install() {
		t.Error("Expected second install to be a no-op")
	}

	other := NewInterceptor(store, c)
	if other.Install() {
		t.Error("Expected a second interceptor on the same store to be a no-op")
	}

	c.Log("once")

	if store.Len() != 1 {
		t.Errorf("Expected exactly 1 captured line, got %d", store.Len())
	}
	if len(original.calls) != 1 {
		t.Errorf("Expected exactly 1 forwarded call, got %d", len(original.calls))
	}
}

func TestInterceptorUninstallRestoresSink(t *testing.T) {
	store := logstore.New(10)
	original := &recordingSink{}
	c := New(original)

	interceptor := NewInterceptor(store, c)
	interceptor.Install()
	interceptor.Uninstall()

	if c.Sink() != Sink(original) {
		t.Error("Expected original sink to be restored")
	}

	c.Log("not captured")
	if store.Len() != 0 {
		t.Errorf("Expected no capture after uninstall, got %d", store.Len())
	}

	interceptor.Uninstall()
	if interceptor.Installed() {
		t.Error("Expected interceptor to report uninstalled")
	}

	if !interceptor.Install() {
		t.Error("Expected reinstall after uninstall to succeed")
	}
}

func TestInterceptorUninstallKeepsLaterSink(t *testing.T) {
	store := logstore.New(10)
	c := New(&recordingSink{})

	interceptor := NewInterceptor(store, c)
	interceptor.Install()

	later := &recordingSink{}
	c.SetSink(later)
	interceptor.Uninstall()

	if c.Sink() != Sink(later) {
		t.Error("Expected the sink set after install to stay in place")
	}
	if interceptor.Installed() {
		t.Error("Expected interceptor to report uninstalled")
	}
}

type panickingObserver struct{}

func (panickingObserver) LogAppended(logstore.Level) { panic("observer failure") }
func (panickingObserver) LogsEvicted(int)            {}
func (panickingObserver) LogSerializationFailed(int) {}

func TestCaptureFailureDoesNotSuppressOutput(t *testing.T) {
	store := logstore.New(10, logstore.WithObserver(panickingObserver{}))
	original := &recordingSink{}
	c := New(original)

	NewInterceptor(store, c).Install()
	c.Error("still printed")

	if len(original.calls) != 1 {
		t.Errorf("Expected original sink to run despite capture failure, got %d calls", len(original.calls))
	}
}

func TestInterceptorStdLog(t *testing.T) {
	prevOutput := log.Writer()
	prevFlags := log.Flags()
	defer func() {
		log.SetOutput(prevOutput)
		log.SetFlags(prevFlags)
	}()

	var out bytes.Buffer
	log.SetOutput(&out)
	log.SetFlags(0)

	store := logstore.New(10)
	interceptor := NewInterceptor(store, New(Discard), WithStdLog(true))
	interceptor.Install()

	log.Println("from std log")

	if !strings.Contains(out.String(), "from std log") {
		t.Errorf("Expected std log output to be forwarded, got %q", out.String())
	}
	entries := store.Entries()
	if len(entries) != 1 || entries[0].Message != "from std log" {
		t.Fatalf("Expected captured std log line, got %v", entries)
	}

	interceptor.Uninstall()
	if log.Writer() != &out {
		t.Error("Expected std log output to be restored")
	}

	log.Println("after uninstall")
	if store.Len() != 1 {
		t.Errorf("Expected no capture after uninstall, got %d", store.Len())
	}
}

func TestWriterSink(t *testing.T) {
	var out, errOut bytes.Buffer
	sink := NewWriterSink(&out, &errOut)

	sink.Log("a", "b")
	sink.Info("c")
	sink.Warn("d")
	sink.Error("e")

	if out.String() != "a b\nc\n" {
		t.Errorf("Unexpected stdout %q", out.String())
	}
	if errOut.String() != "d\ne\n" {
		t.Errorf("Unexpected stderr %q", errOut.String())
	}
}
