package logging

import "testing"

func TestNew(t *testing.T) {
	for _, env := range []string{"development", "production", "test"} {
		logger, err := New(env)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", env, err)
		}
		if logger == nil {
			t.Fatalf("New(%q) returned nil logger", env)
		}
	}

	dev, _ := New("development")
	if !dev.Core().Enabled(-1) {
		t.Error("Expected development logger to enable debug")
	}
	prod, _ := New("production")
	if prod.Core().Enabled(-1) {
		t.Error("Expected production logger to skip debug")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("Expected a no-op logger")
	}
	Sync(nil)
}
