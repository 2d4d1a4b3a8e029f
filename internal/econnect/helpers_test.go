package econnect

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeCloud is a TLS test server that answers per path and records every
// request form.
type fakeCloud struct {
	srv *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	forms    map[string][]url.Values
	calls    int
}

func newFakeCloud(t *testing.T) *fakeCloud {
	t.Helper()

	f := &fakeCloud{
		handlers: make(map[string]http.HandlerFunc),
		forms:    make(map[string][]url.Values),
	}
	f.srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()

		f.mu.Lock()
		f.calls++
		f.forms[r.URL.Path] = append(f.forms[r.URL.Path], r.Form)
		h, ok := f.handlers[r.URL.Path]
		f.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeCloud) URL() string {
	return f.srv.URL
}

// respond registers a fixed answer for path.
func (f *fakeCloud) respond(path string, status int, body string) {
	f.handle(path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (f *fakeCloud) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

// count returns how many requests hit path.
func (f *fakeCloud) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forms[path])
}

// total returns how many requests hit the server.
func (f *fakeCloud) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// form returns the n-th form sent to path.
func (f *fakeCloud) form(t *testing.T, path string, n int) url.Values {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Greater(t, len(f.forms[path]), n, "no request %d on %s", n, path)
	return f.forms[path][n]
}

// newTestClient builds a client pointing at f. httptest TLS servers share
// one certificate, so f's client trusts every fake server.
func newTestClient(t *testing.T, f *fakeCloud, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(f.srv.Client())}, opts...)
	c, err := New(f.URL(), opts...)
	require.NoError(t, err)
	return c
}

// sessionClient returns a client that already holds the "test" token.
func sessionClient(t *testing.T, f *fakeCloud, opts ...Option) *Client {
	t.Helper()
	return newTestClient(t, f, append(opts, WithSessionID("test"))...)
}

// lockedClient returns a client holding both the token and the panel lock.
func lockedClient(t *testing.T, f *fakeCloud) *Client {
	t.Helper()
	c := sessionClient(t, f)
	require.NoError(t, c.lock.acquire(testContext(t)))
	return c
}
