package pusher

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPProbeMonitorIsReachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	m := NewReachabilityMonitor(ln.Addr().String())
	assert.True(t, m.IsReachable())
}

func TestTCPProbeMonitorUnreachable(t *testing.T) {
	m := NewReachabilityMonitor("127.0.0.1:1") // nothing listens on port 1
	assert.False(t, m.IsReachable())
}

func TestTCPProbeMonitorTransitionCallbacks(t *testing.T) {
	impl := &tcpProbeMonitor{target: "unused", reachable: true}

	var becameUnreachable, becameReachable int
	impl.OnUnreachable(func() { becameUnreachable++ })
	impl.OnReachable(func() { becameReachable++ })

	// Simulate the probe directly rather than racing a real dial.
	simulatePoll(impl, false)
	assert.Equal(t, 1, becameUnreachable)
	assert.Equal(t, 0, becameReachable)

	simulatePoll(impl, false)
	assert.Equal(t, 1, becameUnreachable, "no repeated callback while state is unchanged")

	simulatePoll(impl, true)
	assert.Equal(t, 1, becameReachable)
}

// simulatePoll replicates tcpProbeMonitor.poll's transition logic for a
// given forced reachability reading, without depending on a real dial.
func simulatePoll(m *tcpProbeMonitor, reachable bool) {
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
