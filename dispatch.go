package wificmd

import (
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/soypat/wificmd/wlan"
	"tinygo.org/x/drivers/netlink"
)

// EventKind names a handler slot of the dispatcher.
type EventKind uint8

const (
	EventSTADisconnected EventKind = iota
	EventSTAConnected
	EventScanDone
	EventBeaconTimeout
	EventGotIPv4
	EventGotIPv6
	EventAPSTADisconnected
	EventITWTSetup
	EventITWTTeardown
	EventITWTSuspend
	EventITWTProbe
	numEventKinds
)

type eventKey struct {
	base wlan.EventBase
	id   wlan.EventID
}

// eventKinds maps each slot to its driver event and the features it needs.
var eventKinds = [numEventKinds]struct {
	key  eventKey
	need wlan.Features
}{
	EventSTADisconnected:   {key: eventKey{wlan.BaseWiFi, wlan.EventSTADisconnected}},
	EventSTAConnected:      {key: eventKey{wlan.BaseWiFi, wlan.EventSTAConnected}},
	EventScanDone:          {key: eventKey{wlan.BaseWiFi, wlan.EventScanDone}},
	EventBeaconTimeout:     {key: eventKey{wlan.BaseWiFi, wlan.EventSTABeaconTimeout}},
	EventGotIPv4:           {key: eventKey{wlan.BaseIP, wlan.EventSTAGotIP}},
	EventGotIPv6:           {key: eventKey{wlan.BaseIP, wlan.EventGotIP6}, need: wlan.FeatureIPv6},
	EventAPSTADisconnected: {key: eventKey{wlan.BaseWiFi, wlan.EventAPSTADisconnected}},
	EventITWTSetup:         {key: eventKey{wlan.BaseWiFi, wlan.EventITWTSetup}, need: wlan.FeatureITWT},
	EventITWTTeardown:      {key: eventKey{wlan.BaseWiFi, wlan.EventITWTTeardown}, need: wlan.FeatureITWT},
	EventITWTSuspend:       {key: eventKey{wlan.BaseWiFi, wlan.EventITWTSuspend}, need: wlan.FeatureITWT},
	EventITWTProbe:         {key: eventKey{wlan.BaseWiFi, wlan.EventITWTProbe}, need: wlan.FeatureITWT},
}

func (k EventKind) String() string {
	if k >= numEventKinds {
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
	key := eventKinds[k].key
	return wlan.EventName(key.base, key.id)
}

// SetHandler installs h in the slot for kind. A nil h restores the default
// handler. Handlers take effect immediately, including for registrations
// made before the call.
func (m *Manager) SetHandler(kind EventKind, h wlan.Handler) error {
	if kind >= numEventKinds {
		return wlan.ErrInvalidArg
	}
	m.mu.Lock()
	m.handlers[kind] = h
	m.mu.Unlock()
	return nil
}

// DefaultHandler returns the built-in handler for kind so custom handlers
// may run it before or after their own work.
func (m *Manager) DefaultHandler(kind EventKind) wlan.Handler {
	switch kind {
	case EventSTADisconnected:
		return m.onSTADisconnected
	case EventSTAConnected:
		return m.onSTAConnected
	case EventScanDone:
		return m.onScanDone
	case EventBeaconTimeout:
		return m.onBeaconTimeout
	case EventGotIPv4:
		return m.onGotIPv4
	case EventGotIPv6:
		return m.onGotIPv6
	case EventAPSTADisconnected:
		return m.onAPSTADisconnected
	case EventITWTSetup:
		return m.onITWTSetup
	case EventITWTTeardown:
		return m.onITWTTeardown
	case EventITWTSuspend:
		return m.onITWTSuspend
	case EventITWTProbe:
		return m.onITWTProbe
	}
	return nil
}

func (m *Manager) dispatch(kind EventKind, base wlan.EventBase, id wlan.EventID, data any) {
	m.mu.Lock()
	h := m.handlers[kind]
	m.mu.Unlock()
	if h == nil {
		h = m.DefaultHandler(kind)
	}
	m.trace("dispatch", slog.String("event", kind.String()))
	h(base, id, data)
}

// registerHandlers binds every enabled slot to its driver event. Registration
// stops at the first failure.
func (m *Manager) registerHandlers() error {
	for kind := EventKind(0); kind < numEventKinds; kind++ {
		ek := eventKinds[kind]
		if !m.features.Has(ek.need) {
			continue
		}
		kind := kind
		err := m.drv.RegisterHandler(ek.key.base, ek.key.id, func(base wlan.EventBase, id wlan.EventID, data any) {
			m.dispatch(kind, base, id, data)
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", kind, err)
		}
		m.mu.Lock()
		m.registered = append(m.registered, ek.key)
		m.mu.Unlock()
	}
	return nil
}

// unregisterHandlers removes every registration, logging and skipping failures.
func (m *Manager) unregisterHandlers() {
	m.mu.Lock()
	keys := m.registered
	m.registered = nil
	m.mu.Unlock()
	for _, key := range keys {
		err := m.drv.UnregisterHandler(key.base, key.id)
		if err != nil {
			m.logerr("unregister", slog.String("event", wlan.EventName(key.base, key.id)), errattr(err))
		}
	}
}

func (m *Manager) onSTADisconnected(_ wlan.EventBase, _ wlan.EventID, data any) {
	var reason wlan.Reason
	if ev, ok := data.(*wlan.STADisconnected); ok && ev != nil {
		reason = ev.Reason
	}
	m.mu.Lock()
	m.counters.STADisconnected = incsat(m.counters.STADisconnected)
	m.staConnected = false
	m.gotIPv4 = false
	m.lastReason = reason
	retry := m.policy.onDisconnect(reason)
	epoch := m.epoch
	notify := m.notify
	m.mu.Unlock()

	m.printf("WIFI_EVENT_STA_DISCONNECTED! reason: %d", reason)
	if notify != nil {
		notify(netlink.EventNetDown)
	}
	if reason.IsLocalLeave() {
		m.debug("disconnect:local-leave")
		return
	}
	if !retry {
		return
	}
	m.printf("trying to reconnect...")
	m.reconnect(epoch)
}

func (m *Manager) onSTAConnected(_ wlan.EventBase, _ wlan.EventID, data any) {
	m.mu.Lock()
	m.staConnected = true
	m.mu.Unlock()
	m.printf("WIFI_EVENT_STA_CONNECTED!")
	if ev, ok := data.(*wlan.STAConnected); ok && ev != nil {
		m.printf("STA_CONNECTED_AUTH:%d", ev.AuthMode)
	}
	if !m.features.Has(wlan.FeatureIPv6) {
		return
	}
	if llc, ok := m.drv.(wlan.LinkLocalCreator); ok {
		if err := llc.CreateIPv6LinkLocal(); err != nil {
			m.warn("ipv6:linklocal", errattr(err))
		}
	}
}

func (m *Manager) onGotIPv4(_ wlan.EventBase, _ wlan.EventID, data any) {
	m.mu.Lock()
	m.gotIPv4 = true
	m.policy.onGotIP()
	notify := m.notify
	m.mu.Unlock()
	if ev, ok := data.(*wlan.GotIP); ok && ev != nil {
		m.printf("IP_EVENT_STA_GOT_IP: Interface \"%s\" address: %s", ev.Interface, ev.IP)
		m.printf("- IPv4 address: %s,", ev.IP)
	}
	if notify != nil {
		notify(netlink.EventNetUp)
	}
}

func (m *Manager) onGotIPv6(_ wlan.EventBase, _ wlan.EventID, data any) {
	ev, ok := data.(*wlan.GotIP6)
	if !ok || ev == nil {
		return
	}
	addr := ip6Expanded(ev.IP)
	typ := ev.AddrType()
	m.printf("IP_EVENT_GOT_IP6: Interface \"%s\" address: %s, type: %d", ev.Interface, addr, typ)
	m.printf("- IPv6 address: %s, type: %d", addr, typ)
}

func (m *Manager) onBeaconTimeout(wlan.EventBase, wlan.EventID, any) {
	m.mu.Lock()
	m.counters.BeaconTimeout = incsat(m.counters.BeaconTimeout)
	m.mu.Unlock()
}

func (m *Manager) onAPSTADisconnected(_ wlan.EventBase, _ wlan.EventID, data any) {
	if ev, ok := data.(*wlan.APSTADisconnected); ok && ev != nil {
		m.printf("WIFI_EVENT_AP_STADISCONNECTED,%s,%d", ev.MAC, ev.Reason)
	}
}

func (m *Manager) onITWTSetup(_ wlan.EventBase, _ wlan.EventID, data any) {
	ev, ok := data.(*wlan.ITWTSetup)
	if !ok || ev == nil {
		return
	}
	cfg := &ev.Config
	if ev.Status == wlan.ITWTSetupSuccess {
		trigger, flow := "non-trigger-enabled", "announced"
		if cfg.Trigger {
			trigger = "trigger-enabled"
		}
		if cfg.FlowType != 0 {
			flow = "unannounced"
		}
		m.printf("<WIFI_EVENT_ITWT_SETUP>twt_id:%d, flow_id:%d, %s, %s, wake_dura:%d, wake_dura_unit:%d, wake_invl_e:%d, wake_invl_m:%d",
			cfg.TWTID, cfg.FlowID, trigger, flow, cfg.MinWakeDura, cfg.WakeDurationUnit, cfg.WakeInvlExpn, cfg.WakeInvlMant)
		m.printf("<WIFI_EVENT_ITWT_SETUP>target wake time:%d, wake duration:%d us, service period:%d us",
			ev.TargetWakeTime, cfg.WakeDurationMicros(), cfg.ServicePeriodMicros())
		return
	}
	switch ev.Status {
	case wlan.ITWTSetupTimeout:
		m.printf("<WIFI_EVENT_ITWT_SETUP>twt_id:%d, timeout of receiving twt setup response frame", cfg.TWTID)
	case wlan.ITWTSetupTxFail:
		m.printf("<WIFI_EVENT_ITWT_SETUP>twt_id:%d, twt setup frame tx failed, reason: %d", cfg.TWTID, ev.Reason)
	case wlan.ITWTSetupReject:
		m.printf("<WIFI_EVENT_ITWT_SETUP>twt_id:%d, twt setup request was rejected, setup cmd: %d", cfg.TWTID, cfg.SetupCmd)
	default:
		m.printf("<WIFI_EVENT_ITWT_SETUP>twt_id:%d, twt setup failed, status: %d", cfg.TWTID, ev.Status)
	}
}

func (m *Manager) onITWTTeardown(_ wlan.EventBase, _ wlan.EventID, data any) {
	ev, ok := data.(*wlan.ITWTTeardown)
	if !ok || ev == nil {
		return
	}
	all := ""
	if ev.FlowID == wlan.ITWTFlowAll {
		all = "(all twt)"
	}
	if ev.Status == wlan.ITWTTeardownFail {
		m.printf("<WIFI_EVENT_ITWT_TEARDOWN>flow_id %d%s, twt teardown frame tx failed", ev.FlowID, all)
		return
	}
	m.printf("<WIFI_EVENT_ITWT_TEARDOWN>flow_id %d%s", ev.FlowID, all)
}

func (m *Manager) onITWTSuspend(_ wlan.EventBase, _ wlan.EventID, data any) {
	ev, ok := data.(*wlan.ITWTSuspend)
	if !ok || ev == nil {
		return
	}
	t := &ev.ActualSuspendTimeMs
	m.printf("<WIFI_EVENT_ITWT_SUSPEND>status:%d, flow_id_bitmap:0x%x, actual_suspend_time_ms:[%d %d %d %d %d %d %d %d]",
		ev.Status, ev.FlowIDBitmap, t[0], t[1], t[2], t[3], t[4], t[5], t[6], t[7])
}

func (m *Manager) onITWTProbe(_ wlan.EventBase, _ wlan.EventID, data any) {
	if ev, ok := data.(*wlan.ITWTProbe); ok && ev != nil {
		m.printf("<WIFI_EVENT_ITWT_PROBE>status:%s, reason:0x%x", ev.Status, ev.Reason)
	}
}

// ip6Expanded formats addr as eight zero padded groups, the way the vendor
// network interface prints IPv6 addresses.
func ip6Expanded(addr netip.Addr) string {
	b := addr.As16()
	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x:%02x%02x:%02x%02x:%02x%02x:%02x%02x:%02x%02x",
		b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7], b[8], b[9], b[10], b[11], b[12], b[13], b[14], b[15])
}
