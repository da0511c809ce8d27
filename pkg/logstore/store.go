package logstore

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/kerlexov/bugreport-go-sdk/pkg/buffer"
)

// DefaultCapacity is the number of lines kept when no capacity is given.
const DefaultCapacity = 50

// Observer receives store events. Implementations must not log back into the
// store they observe.
type Observer interface {
	LogAppended(level Level)
	LogsEvicted(count int)
	LogSerializationFailed(count int)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithObserver(observer Observer) Option {
	return func(s *Store) {
		s.observer = observer
	}
}

// Store is the bounded history of recent log lines. It is safe for
// concurrent use; entries keep the order in which Append calls completed.
type Store struct {
	ring     *buffer.Ring[Entry]
	now      func() time.Time
	observer Observer
}

func New(capacity int, opts ...Option) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	s := &Store{
		ring: buffer.NewRing[Entry](capacity),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append serializes args, stamps them with the current time and level and
// pushes the line to the tail, evicting the oldest line when full.
func (s *Store) Append(level Level, args ...any) {
	message, failed := FormatArgs(args...)

	entry := Entry{
		Timestamp: s.now().UTC(),
		Level:     level,
		Message:   message,
	}
	evicted := s.ring.Add(entry)

	if s.observer != nil {
		s.observer.LogAppended(level)
		if evicted > 0 {
			s.observer.LogsEvicted(evicted)
		}
		if failed > 0 {
			s.observer.LogSerializationFailed(failed)
		}
	}
}

// Snapshot returns every line, oldest first, joined by newlines.
func (s *Store) Snapshot() string {
	return strings.Join(s.Lines(), "\n")
}

func (s *Store) Lines() []string {
	entries := s.ring.Snapshot()
	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = entry.String()
	}
	return lines
}

func (s *Store) Entries() []Entry {
	return s.ring.Snapshot()
}

func (s *Store) Clear() {
	s.ring.Clear()
}

func (s *Store) Len() int {
	return s.ring.Size()
}

func (s *Store) Cap() int {
	return s.ring.Cap()
}

// Writer returns an io.Writer that appends each written line at level.
// Blank lines are dropped.
func (s *Store) Writer(level Level) io.Writer {
	return &lineWriter{store: s, level: level}
}

type lineWriter struct {
	store *Store
	level Level
}

func (w *lineWriter) Write(p []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(p))
	scanner.Buffer(make([]byte, 0, 4096), len(p)+1)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		w.store.Append(w.level, line)
	}
	return len(p), nil
}
