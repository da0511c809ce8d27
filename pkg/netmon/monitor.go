// Package netmon records outbound HTTP calls into a bounded history and
// summarizes them in the log store.
package netmon

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kerlexov/bugreport-go-sdk/pkg/buffer"
	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
)

const (
	DefaultCapacity = 50
	MaxBodyPreview  = 1024
	redacted        = "[REDACTED]"
)

var sensitiveHeaders = map[string]struct{}{
	"Authorization":       {},
	"Proxy-Authorization": {},
	"Cookie":              {},
	"Set-Cookie":          {},
	"X-Api-Key":           {},
}

// Request is one recorded HTTP exchange.
type Request struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	BodyPreview string            `json:"body_preview,omitempty"`
	Status      int               `json:"status,omitempty"`
	Duration    time.Duration     `json:"duration"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
}

type Observer interface {
	NetworkRequest(method string, statusCode int, duration time.Duration, err error)
}

type Option func(*Monitor)

func WithCapacity(n int) Option {
	return func(m *Monitor) {
		m.history = buffer.NewRing[Request](n)
	}
}

func WithObserver(o Observer) Option {
	return func(m *Monitor) {
		m.observer = o
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// Monitor owns the request history. Start and Stop swap the standard
// library's default transports; Wrap decorates any transport explicitly.
type Monitor struct {
	store    *logstore.Store
	history  *buffer.Ring[Request]
	observer Observer
	now      func() time.Time

	mu              sync.Mutex
	active          bool
	savedDefault    http.RoundTripper
	savedClient     http.RoundTripper
	clientTransport bool
}

func New(store *logstore.Store, opts ...Option) *Monitor {
	m := &Monitor{
		store:   store,
		history: buffer.NewRing[Request](DefaultCapacity),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start wraps http.DefaultTransport and, when set, http.DefaultClient's
// transport. It returns false if the monitor is already active.
func (m *Monitor) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return false
	}

	m.savedDefault = http.DefaultTransport
	m.savedClient = http.DefaultClient.Transport

	http.DefaultTransport = m.Wrap(m.savedDefault)
	// A nil client transport already resolves to the wrapped default.
	m.clientTransport = m.savedClient != nil
	if m.clientTransport {
		http.DefaultClient.Transport = m.Wrap(m.savedClient)
	}

	m.active = true
	m.log(logstore.LevelInfo, "Network monitoring started")
	return true
}

// Stop restores the transports captured by Start.
func (m *Monitor) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return false
	}

	http.DefaultTransport = m.savedDefault
	if m.clientTransport {
		http.DefaultClient.Transport = m.savedClient
	}
	m.savedDefault, m.savedClient = nil, nil
	m.active = false
	m.log(logstore.LevelInfo, "Network monitoring stopped")
	return true
}

func (m *Monitor) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Wrap returns a RoundTripper that records every request before handing it
// to next. A nil next means http.DefaultTransport at call time. Wrapping a
// transport this monitor already wraps returns it unchanged.
func (m *Monitor) Wrap(next http.RoundTripper) http.RoundTripper {
	if t, ok := next.(*transport); ok && t.monitor == m {
		return t
	}
	return &transport{next: next, monitor: m}
}

// Requests returns the last n recorded requests, oldest first. n <= 0
// returns all of them.
func (m *Monitor) Requests(n int) []Request {
	if n <= 0 {
		return m.history.Snapshot()
	}
	return m.history.Last(n)
}

func (m *Monitor) Clear() {
	m.history.Clear()
}

// SetCapacity changes the history size, dropping the oldest entries that no
// longer fit.
func (m *Monitor) SetCapacity(n int) {
	m.history.Resize(n)
}

func (m *Monitor) record(req Request, err error) {
	m.history.Add(req)
	if m.observer != nil {
		m.observer.NetworkRequest(req.Method, req.Status, req.Duration, err)
	}
}

func (m *Monitor) log(level logstore.Level, args ...any) {
	if m.store != nil {
		m.store.Append(level, args...)
	}
}

type transport struct {
	next    http.RoundTripper
	monitor *Monitor
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	m := t.monitor
	next := t.next
	if next == nil {
		next = http.DefaultTransport
		if next == http.RoundTripper(t) {
			next = m.savedDefaultOrBase()
		}
	}

	entry := Request{
		ID:        uuid.New().String(),
		URL:       req.URL.Redacted(),
		Method:    methodOf(req),
		Headers:   redactHeaders(req.Header),
		StartedAt: m.now(),
	}

	if req.Body != nil && req.Body != http.NoBody {
		preview, body, err := peekBody(req.Body, MaxBodyPreview)
		if err != nil {
			req.Body.Close()
			entry.Error = err.Error()
			m.record(entry, err)
			m.log(logstore.LevelError, "Network error:", entry.Method, entry.URL, "-", err)
			return nil, err
		}
		entry.BodyPreview = preview
		req = req.Clone(req.Context())
		req.Body = body
	}

	m.log(logstore.LevelInfo, "Network request:", entry.Method, entry.URL)

	resp, err := next.RoundTrip(req)
	entry.Duration = m.now().Sub(entry.StartedAt)

	if err != nil {
		entry.Error = err.Error()
		m.log(logstore.LevelError, "Network error:", entry.Method, entry.URL, "-", err)
	} else {
		entry.Status = resp.StatusCode
		m.log(logstore.LevelInfo, "Network response:", resp.StatusCode, entry.Method, entry.URL,
			fmt.Sprintf("(%dms)", entry.Duration.Milliseconds()))
	}

	m.record(entry, err)
	return resp, err
}

func (m *Monitor) savedDefaultOrBase() http.RoundTripper {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.savedDefault != nil {
		return m.savedDefault
	}
	return &http.Transport{Proxy: http.ProxyFromEnvironment}
}

func methodOf(req *http.Request) string {
	if req.Method == "" {
		return http.MethodGet
	}
	return req.Method
}

func redactHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for key, values := range h {
		canonical := http.CanonicalHeaderKey(key)
		if _, sensitive := sensitiveHeaders[canonical]; sensitive {
			out[canonical] = redacted
			continue
		}
		out[canonical] = strings.Join(values, ", ")
	}
	return out
}

// peekBody reads up to limit bytes for the preview and returns a body that
// still yields the full original content.
func peekBody(body io.ReadCloser, limit int) (string, io.ReadCloser, error) {
	buf := make([]byte, limit)
	n, err := io.ReadFull(body, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	buf = buf[:n]

	restored := struct {
		io.Reader
		io.Closer
	}{
		Reader: io.MultiReader(bytes.NewReader(buf), body),
		Closer: body,
	}
	return string(buf), restored, nil
}
