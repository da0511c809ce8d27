package console

import (
	"io"
	"log"
	"strings"
	"sync"

	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
)

type InterceptorOption func(*Interceptor)

// WithStdLog also redirects the standard library logger through the store.
func WithStdLog(enabled bool) InterceptorOption {
	return func(i *Interceptor) {
		i.captureStdLog = enabled
	}
}

// Interceptor routes a Console's entry points through a log store before the
// original sink. Install and Uninstall are idempotent.
type Interceptor struct {
	store         *logstore.Store
	console       *Console
	captureStdLog bool

	mu             sync.Mutex
	installed      bool
	original       Sink
	sink           *capturingSink
	originalStdOut io.Writer
	stdWriter      *stdLogWriter
}

func NewInterceptor(store *logstore.Store, console *Console, opts ...InterceptorOption) *Interceptor {
	i := &Interceptor{
		store:   store,
		console: console,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install wraps the console sink. It reports false when interception was
// already in place, either from this interceptor or another one feeding the
// same store.
func (i *Interceptor) Install() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.installed {
		return false
	}

	current := i.console.Sink()
	if cs, ok := current.(*capturingSink); ok && cs.store == i.store {
		return false
	}

	i.original = current
	i.sink = &capturingSink{store: i.store, next: current}
	i.console.SetSink(i.sink)

	if i.captureStdLog {
		prev := log.Writer()
		if _, wrapped := prev.(*stdLogWriter); !wrapped {
			i.originalStdOut = prev
			i.stdWriter = &stdLogWriter{store: i.store, next: prev}
			log.SetOutput(i.stdWriter)
		}
	}

	i.installed = true
	return true
}

// Uninstall restores the sink and log output captured by Install.
func (i *Interceptor) Uninstall() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.installed {
		return
	}

	// A sink or std logger output set after us belongs to someone else.
	if i.console.Sink() == Sink(i.sink) {
		i.console.SetSink(i.original)
	}
	if i.stdWriter != nil && log.Writer() == io.Writer(i.stdWriter) {
		log.SetOutput(i.originalStdOut)
	}

	i.original = nil
	i.sink = nil
	i.stdWriter = nil
	i.originalStdOut = nil
	i.installed = false
}

func (i *Interceptor) Installed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.installed
}

type capturingSink struct {
	store *logstore.Store
	next  Sink
}

func (s *capturingSink) Log(args ...any) {
	s.capture(logstore.LevelLog, args)
	s.next.Log(args...)
}

func (s *capturingSink) Info(args ...any) {
	s.capture(logstore.LevelInfo, args)
	s.next.Info(args...)
}

func (s *capturingSink) Warn(args ...any) {
	s.capture(logstore.LevelWarn, args)
	s.next.Warn(args...)
}

func (s *capturingSink) Error(args ...any) {
	s.capture(logstore.LevelError, args)
	s.next.Error(args...)
}

// capture must never keep the original sink from running.
func (s *capturingSink) capture(level logstore.Level, args []any) {
	defer func() { _ = recover() }()
	s.store.Append(level, args...)
}

type stdLogWriter struct {
	store *logstore.Store
	next  io.Writer
}

func (w *stdLogWriter) Write(p []byte) (int, error) {
	message := strings.TrimSpace(string(p))
	if message != "" {
		message = strings.TrimPrefix(message, log.Prefix())
		func() {
			defer func() { _ = recover() }()
			w.store.Append(logstore.LevelLog, message)
		}()
	}

	if w.next == nil {
		return len(p), nil
	}
	return w.next.Write(p)
}
