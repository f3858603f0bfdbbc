package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/integrity"
)

// fakeMonitor mimics the monitor: warn is one-shot, reset clears everything.
type fakeMonitor struct {
	mu        sync.Mutex
	warn      bool
	terminate bool
	resets    int
	sessions  []string
}

func (f *fakeMonitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, r.Header.Get(core.SessionIDHeader))

	switch {
	case r.URL.Path == "/status" && r.Method == http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		if f.terminate {
			_, _ = w.Write([]byte(`{"warn": false, "terminate": true}`))
		} else if f.warn {
			_, _ = w.Write([]byte(`{"warn": true, "terminate": false}`))
		} else {
			_, _ = w.Write([]byte(`{"warn": false, "terminate": false}`))
		}
		f.warn = false
	case r.URL.Path == "/reset" && r.Method == http.MethodPost:
		f.resets++
		f.warn, f.terminate = false, false
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestClient(t *testing.T) {
	fake := &fakeMonitor{warn: true}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ctx := core.WithSessionID(context.Background(), "sess-1")

	assert.True(t, c.Ready(context.Background())) // consumes the warning

	fake.mu.Lock()
	fake.warn = true
	fake.mu.Unlock()
	rs, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, integrity.RemoteStatus{Warn: true}, rs)

	rs, err = c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, integrity.RemoteStatus{}, rs)

	fake.mu.Lock()
	fake.terminate = true
	fake.mu.Unlock()
	rs, err = c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, rs.Terminate)

	require.NoError(t, c.Reset(ctx))
	rs, err = c.Status(ctx)
	require.NoError(t, err)
	assert.False(t, rs.Terminate)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.resets)
	assert.Equal(t, []string{"", "sess-1", "sess-1", "sess-1", "sess-1", "sess-1"}, fake.sessions)
}

func TestClient_down(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, 100*time.Millisecond)
	assert.False(t, c.Ready(context.Background()))
	_, err := c.Status(context.Background())
	assert.Error(t, err)
	assert.Error(t, c.Reset(context.Background()))
}
