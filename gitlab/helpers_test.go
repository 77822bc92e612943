package gitlab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testToken = "glpat-test"

// fakeGitLab serves canned JSON pages keyed by API path.
type fakeGitLab struct {
	mu      sync.Mutex
	pages   map[string][]string
	queries map[string][]url.Values
}

func newFakeGitLab(t *testing.T, pages map[string][]string) (*fakeGitLab, *httptest.Server) {
	t.Helper()
	f := &fakeGitLab{pages: pages, queries: map[string][]url.Values{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		path := strings.TrimPrefix(r.URL.EscapedPath(), "/api/v4/")
		f.mu.Lock()
		f.queries[path] = append(f.queries[path], r.URL.Query())
		bodies, ok := f.pages[path]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"404 Not Found"}`))
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		if page < 1 || page > len(bodies) {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(bodies[page-1]))
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGitLab) requests(path string) []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[path]
}

func newTestClient(t *testing.T, baseURL string, mutate ...func(*Options)) *Client {
	t.Helper()
	opts := Options{
		BaseURL:       baseURL + "/api/v4",
		Token:         testToken,
		PerPage:       2,
		MaxRetries:    3,
		BackoffFactor: time.Millisecond,
		Logger:        zaptest.NewLogger(t),
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := NewClient(opts)
	require.NoError(t, err)
	return c
}

// recordSleeps replaces the Retry-After sleep with a recorder.
func recordSleeps(c *Client) *[]time.Duration {
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return &slept
}
