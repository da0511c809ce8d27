package netmon

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestWrapRecordsRequest(t *testing.T) {
	server := echoServer(t)
	store := logstore.New(10)
	m := New(store)
	client := &http.Client{Transport: m.Wrap(http.DefaultTransport)}

	req, err := http.NewRequest(http.MethodPost, server.URL+"/items?q=1", strings.NewReader("hello"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "text/plain")

	resp, err := client.Do(req)
	require.NoError(t, err)
	echoed, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "hello", string(echoed), "body must reach the server untouched")

	requests := m.Requests(0)
	require.Len(t, requests, 1)
	rec := requests[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, http.MethodPost, rec.Method)
	assert.Equal(t, server.URL+"/items?q=1", rec.URL)
	assert.Equal(t, http.StatusAccepted, rec.Status)
	assert.Equal(t, "hello", rec.BodyPreview)
	assert.Equal(t, "[REDACTED]", rec.Headers["Authorization"])
	assert.Equal(t, "text/plain", rec.Headers["Content-Type"])
	assert.Empty(t, rec.Error)

	snapshot := store.Snapshot()
	assert.Contains(t, snapshot, "[INFO] Network request: POST "+server.URL)
	assert.Contains(t, snapshot, "[INFO] Network response: 202 POST "+server.URL)
	assert.NotContains(t, snapshot, "secret")
}

func TestWrapTruncatesBodyPreview(t *testing.T) {
	server := echoServer(t)
	m := New(nil)
	client := &http.Client{Transport: m.Wrap(nil)}

	payload := strings.Repeat("x", 3*MaxBodyPreview)
	resp, err := client.Post(server.URL, "text/plain", strings.NewReader(payload))
	require.NoError(t, err)
	echoed, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Len(t, echoed, len(payload))
	assert.Len(t, m.Requests(1)[0].BodyPreview, MaxBodyPreview)
}

func TestWrapRecordsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	store := logstore.New(10)
	m := New(store)
	client := &http.Client{Transport: m.Wrap(http.DefaultTransport)}

	_, err := client.Get(url)
	require.Error(t, err)

	rec := m.Requests(1)[0]
	assert.NotEmpty(t, rec.Error)
	assert.Zero(t, rec.Status)
	assert.Contains(t, store.Snapshot(), "[ERROR] Network error: GET "+url)
}

func TestStartStopRestoresTransports(t *testing.T) {
	server := echoServer(t)
	originalDefault := http.DefaultTransport
	originalClient := http.DefaultClient.Transport

	m := New(logstore.New(10))
	require.True(t, m.Start())
	require.False(t, m.Start(), "second Start must be a no-op")
	assert.True(t, m.IsActive())

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Len(t, m.Requests(0), 1, "requests through the default client are recorded once")

	require.True(t, m.Stop())
	require.False(t, m.Stop())
	assert.False(t, m.IsActive())
	assert.True(t, http.DefaultTransport == originalDefault)
	assert.True(t, http.DefaultClient.Transport == originalClient)

	resp, err = http.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Len(t, m.Requests(0), 1, "nothing is recorded after Stop")
}

func TestHistoryIsBounded(t *testing.T) {
	server := echoServer(t)
	m := New(nil, WithCapacity(3))
	client := &http.Client{Transport: m.Wrap(http.DefaultTransport)}

	for _, path := range []string{"/a", "/b", "/c", "/d"} {
		resp, err := client.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
	}

	requests := m.Requests(0)
	require.Len(t, requests, 3)
	assert.True(t, strings.HasSuffix(requests[0].URL, "/b"))
	assert.True(t, strings.HasSuffix(requests[2].URL, "/d"))

	last := m.Requests(2)
	require.Len(t, last, 2)
	assert.True(t, strings.HasSuffix(last[0].URL, "/c"))

	m.SetCapacity(1)
	require.Len(t, m.Requests(0), 1)
	assert.True(t, strings.HasSuffix(m.Requests(0)[0].URL, "/d"))

	m.Clear()
	assert.Empty(t, m.Requests(0))
}

func TestWrapIsNotStacked(t *testing.T) {
	m := New(nil)
	wrapped := m.Wrap(http.DefaultTransport)
	assert.True(t, m.Wrap(wrapped) == wrapped)
}
