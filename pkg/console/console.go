package console

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Sink is the set of logging entry points a Console forwards to.
type Sink interface {
	Log(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
}

// Console is the logging facade handed to application code. Its entry points
// always go through the current sink, which the interceptor may wrap.
type Console struct {
	mu   sync.RWMutex
	sink Sink
}

func New(sink Sink) *Console {
	if sink == nil {
		sink = NewWriterSink(os.Stdout, os.Stderr)
	}
	return &Console{sink: sink}
}

func (c *Console) Log(args ...any)   { c.Sink().Log(args...) }
func (c *Console) Info(args ...any)  { c.Sink().Info(args...) }
func (c *Console) Warn(args ...any)  { c.Sink().Warn(args...) }
func (c *Console) Error(args ...any) { c.Sink().Error(args...) }

func (c *Console) Sink() Sink {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sink
}

// SetSink replaces the sink and returns the previous one.
func (c *Console) SetSink(sink Sink) Sink {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.sink
	c.sink = sink
	return prev
}

// WriterSink prints LOG and INFO lines to out and WARN and ERROR lines to errOut.
type WriterSink struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

func NewWriterSink(out, errOut io.Writer) *WriterSink {
	return &WriterSink{out: out, errOut: errOut}
}

func (s *WriterSink) Log(args ...any)   { s.println(s.out, args) }
func (s *WriterSink) Info(args ...any)  { s.println(s.out, args) }
func (s *WriterSink) Warn(args ...any)  { s.println(s.errOut, args) }
func (s *WriterSink) Error(args ...any) { s.println(s.errOut, args) }

func (s *WriterSink) println(w io.Writer, args []any) {
	if w == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(w, args...)
}

// Discard is a sink that drops everything.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Log(...any)   {}
func (discardSink) Info(...any)  {}
func (discardSink) Warn(...any)  {}
func (discardSink) Error(...any) {}
