package session

import (
	"net"
	"net/url"
	"sync"
	"time"
)

// probeInterval is how often the monitor re-checks reachability.
const probeInterval = 15 * time.Second

// probeTimeout bounds a single reachability check.
const probeTimeout = 5 * time.Second

// Monitor tracks whether the API host is reachable. The flag it
// maintains is advisory, for display only; no request path consults
// it. This stands in for the browser online/offline events the
// backend's web client listens to.
type Monitor struct {
	hostport string

	mu      sync.Mutex
	online  bool
	running bool
	stopCh  chan struct{}
}

// NewMonitor creates a monitor probing the host of the given base URL.
// The flag starts optimistic (online) until the first probe completes.
func NewMonitor(baseURL string) *Monitor {
	return &Monitor{
		hostport: hostportOf(baseURL),
		online:   true,
		stopCh:   make(chan struct{}),
	}
}

// hostportOf extracts "host:port" from a URL, defaulting the port from
// the scheme.
func hostportOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Host
	if u.Port() == "" {
		if u.Scheme == "http" {
			host += ":80"
		} else {
			host += ":443"
		}
	}
	return host
}

// IsOnline returns the last observed connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Start launches the probe loop. Calling Start twice is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running || m.hostport == "" {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	go m.loop()
}

// Stop halts the probe loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.stopCh)
	m.running = false
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	m.probe()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.probe()
		}
	}
}

// probe attempts a TCP dial to the API host and records the result.
func (m *Monitor) probe() {
	conn, err := net.DialTimeout("tcp", m.hostport, probeTimeout)
	if conn != nil {
		conn.Close()
	}

	m.mu.Lock()
	m.online = err == nil
	m.mu.Unlock()
}
