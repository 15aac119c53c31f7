package reachability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Prober reports whether the remote service can be reached. A nil error
// means reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// HTTPProber treats any HTTP response from URL as reachable. Only transport
// failures count as offline.
type HTTPProber struct {
	url        string
	httpClient *http.Client
}

func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.url, err)
	}
	resp.Body.Close()
	return nil
}

// Status is delivered to listeners after every check.
type Status struct {
	Online    bool      `json:"online"`
	Changed   bool      `json:"changed"`
	CheckedAt time.Time `json:"checked_at"`
}

// Monitor polls a Prober and tells listeners what it saw. The state starts
// offline until the first check completes.
type Monitor struct {
	mu        sync.RWMutex
	prober    Prober
	interval  time.Duration
	logger    *slog.Logger
	status    Status
	listeners []func(Status)
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewMonitor(prober Prober, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval == 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger.With("component", "reachability"),
	}
}

// Subscribe registers fn to be called after every check. Listeners run on
// the checking goroutine and must not block.
func (m *Monitor) Subscribe(fn func(Status)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Online returns the result of the most recent check.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Online
}

// Status returns the most recent check result.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Check probes immediately, records the result and notifies listeners.
func (m *Monitor) Check(ctx context.Context) bool {
	err := m.prober.Probe(ctx)
	online := err == nil

	m.mu.Lock()
	changed := m.status.Online != online
	m.status = Status{Online: online, Changed: changed, CheckedAt: time.Now()}
	status := m.status
	listeners := make([]func(Status), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	if changed {
		if online {
			m.logger.Info("remote reachable")
		} else {
			m.logger.Warn("remote unreachable", "error", err)
		}
	}

	for _, fn := range listeners {
		fn(status)
	}
	return online
}

// Start runs an initial check and then polls until Stop or ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		m.Check(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}

// Stop halts polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
