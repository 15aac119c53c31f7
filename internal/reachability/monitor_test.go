package reachability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProberAnyResponseIsReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewHTTPProber(server.URL, time.Second)
	require.NoError(t, p.Probe(context.Background()))
}

func TestHTTPProberTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p := NewHTTPProber(url, time.Second)
	require.Error(t, p.Probe(context.Background()))
}

func TestMonitorNotifiesEveryCheck(t *testing.T) {
	var up atomic.Bool
	m := NewMonitor(ProberFunc(func(context.Context) error {
		if up.Load() {
			return nil
		}
		return errors.New("no route")
	}), time.Hour, nil)

	var mu sync.Mutex
	var seen []Status
	m.Subscribe(func(s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	ctx := context.Background()
	require.False(t, m.Online())

	require.False(t, m.Check(ctx))
	up.Store(true)
	require.True(t, m.Check(ctx))
	require.True(t, m.Check(ctx))
	require.True(t, m.Online())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	require.False(t, seen[0].Changed)
	require.True(t, seen[1].Online)
	require.True(t, seen[1].Changed)
	require.False(t, seen[2].Changed)
}

func TestMonitorStartStop(t *testing.T) {
	var checks atomic.Int32
	m := NewMonitor(ProberFunc(func(context.Context) error {
		checks.Add(1)
		return nil
	}), 10*time.Millisecond, nil)

	m.Start(context.Background())
	require.Eventually(t, func() bool { return checks.Load() >= 3 }, time.Second, 5*time.Millisecond)
	m.Stop()

	after := checks.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, checks.Load())
	require.True(t, m.Online())
}
