package wificmd

import (
	"log/slog"

	"github.com/soypat/wificmd/wlan"
)

// DefaultMaxRetries is the default bound on consecutive automatic reconnects.
const DefaultMaxRetries = 30

// ReconnectPolicy decides whether a dropped association is retried.
type ReconnectPolicy struct {
	// Enabled is set by Connect and cleared by Disconnect.
	Enabled bool
	// MaxRetries is the number of reconnects allowed between two successful
	// IPv4 acquisitions or Connect calls.
	MaxRetries uint32
	// Retries counts reconnects since the last reset.
	Retries uint32
}

// reset prepares the policy for a new association started by the user.
func (p *ReconnectPolicy) reset(enabled bool) {
	p.Retries = 0
	p.Enabled = enabled
}

// onDisconnect records a disconnect and reports whether to reconnect.
// A local leave means the association is being replaced on purpose and
// does not count against the budget.
func (p *ReconnectPolicy) onDisconnect(reason wlan.Reason) bool {
	if reason.IsLocalLeave() || !p.Enabled {
		return false
	}
	p.Retries = incsat(p.Retries)
	return p.Retries <= p.MaxRetries
}

// onGotIP replenishes the retry budget.
func (p *ReconnectPolicy) onGotIP() { p.Retries = 0 }

// reconnect issues a driver connect on a background goroutine. The attempt is
// abandoned if a Connect or Disconnect happened after the decision at epoch.
func (m *Manager) reconnect(epoch uint32) {
	m.mu.Lock()
	m.bgn++
	m.mu.Unlock()
	go func() {
		defer m.bgDone()
		m.opmu.Lock()
		defer m.opmu.Unlock()
		m.mu.Lock()
		stale := epoch != m.epoch
		m.mu.Unlock()
		if stale {
			m.debug("reconnect:stale", slog.Uint64("epoch", uint64(epoch)))
			return
		}
		err := m.drv.Connect()
		if err != nil {
			m.printf("WiFi Reconnect failed! (%s)", ErrorCode(err).Name())
			m.logerr("reconnect", errattr(err))
		}
	}()
}

func (m *Manager) bgDone() {
	m.mu.Lock()
	m.bgn--
	if m.bgn == 0 {
		m.bgidle.Broadcast()
	}
	m.mu.Unlock()
}
