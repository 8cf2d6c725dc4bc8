package wificmd

import (
	"golang.org/x/exp/constraints"

	"github.com/soypat/wificmd/wlan"
)

// LifecycleStatus is the driver lifecycle position. Values are ordered.
type LifecycleStatus uint8

const (
	StatusNone LifecycleStatus = iota
	StatusInit
	StatusStarted
)

func (s LifecycleStatus) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusInit:
		return "init"
	case StatusStarted:
		return "started"
	}
	return "unknown"
}

// Counters count driver events since the last clear.
type Counters struct {
	BeaconTimeout   uint32
	STADisconnected uint32
}

// Snapshot is a consistent copy of the Manager state.
type Snapshot struct {
	Status       LifecycleStatus
	STAConnected bool
	GotIPv4      bool
	Policy       ReconnectPolicy
	Counters     Counters
	Features     wlan.Features
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Status:       m.status,
		STAConnected: m.staConnected,
		GotIPv4:      m.gotIPv4,
		Policy:       m.policy,
		Counters:     m.counters,
		Features:     m.features,
	}
}

// Status returns the lifecycle status.
func (m *Manager) Status() LifecycleStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Counters returns the event counters.
func (m *Manager) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters
}

// ClearCounters zeroes the event counters.
func (m *Manager) ClearCounters() {
	m.mu.Lock()
	m.counters = Counters{}
	m.mu.Unlock()
}

// Policy returns a copy of the reconnect policy.
func (m *Manager) Policy() ReconnectPolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

// incsat increments v, stopping at the maximum value of T.
func incsat[T constraints.Unsigned](v T) T {
	if v+1 < v {
		return v
	}
	return v + 1
}
