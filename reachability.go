package pusher

import (
	"net"
	"sync"
	"time"
)

// ReachabilityMonitor observes network reachability and notifies the
// connection state machine of reachable/unreachable transitions. The
// default implementation polls a TCP dial; platform integrations (e.g. iOS
// SCNetworkReachability, Android ConnectivityManager) should implement this
// interface directly and pass it via WithReachabilityMonitor instead of
// relying on the poller.
//
// No widely-used Go library provides OS-level network-reachability
// notifications (this is ordinarily a mobile-platform concern, not
// something the Go ecosystem packages); see DESIGN.md.
type ReachabilityMonitor interface {
	// IsReachable performs a synchronous probe of current reachability.
	IsReachable() bool
	// OnReachable registers a callback fired on every unreachable->reachable
	// transition. Multiple callbacks may be registered.
	OnReachable(func())
	// OnUnreachable registers a callback fired on every reachable->unreachable
	// transition.
	OnUnreachable(func())
	// Start begins monitoring; Stop ends it. Both are idempotent.
	Start()
	Stop()
}

const defaultProbeTarget = "ws.pusherapp.com:443"

// tcpProbeMonitor is the default ReachabilityMonitor: it periodically
// dials probeTarget and reports the dial's success/failure as
// reachable/unreachable.
type tcpProbeMonitor struct {
	target   string
	interval time.Duration
	timeout  time.Duration

	mu          sync.Mutex
	reachable   bool
	onReachable []func()
	onUnreach   []func()
	stopCh      chan struct{}
	started     bool
}

// NewReachabilityMonitor builds the default TCP-probe reachability monitor.
// An empty target falls back to probing the default Pusher WebSocket host
// (ws.pusherapp.com:443), whatever host the Options name.
func NewReachabilityMonitor(target string) ReachabilityMonitor {
	if target == "" {
		target = defaultProbeTarget
	}
	return &tcpProbeMonitor{
		target:    target,
		interval:  5 * time.Second,
		timeout:   3 * time.Second,
		reachable: true,
	}
}

func (m *tcpProbeMonitor) IsReachable() bool {
	conn, err := net.DialTimeout("tcp", m.target, m.timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (m *tcpProbeMonitor) OnReachable(f func()) {
	m.mu.Lock()
	m.onReachable = append(m.onReachable, f)
	m.mu.Unlock()
}

func (m *tcpProbeMonitor) OnUnreachable(f func()) {
	m.mu.Lock()
	m.onUnreach = append(m.onUnreach, f)
	m.mu.Unlock()
}

func (m *tcpProbeMonitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	go m.loop(stopCh)
}

func (m *tcpProbeMonitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.stopCh)
	m.mu.Unlock()
}

func (m *tcpProbeMonitor) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *tcpProbeMonitor) poll() {
	reachable := m.IsReachable()

	m.mu.Lock()
	wasReachable := m.reachable
	m.reachable = reachable
	var callbacks []func()
	if reachable && !wasReachable {
		callbacks = append(callbacks, m.onReachable...)
	} else if !reachable && wasReachable {
		callbacks = append(callbacks, m.onUnreach...)
	}
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}
