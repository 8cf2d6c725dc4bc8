package wificmd

import (
	"log/slog"
	"net"
	"time"

	"github.com/soypat/wificmd/wlan"
	"tinygo.org/x/drivers/netlink"
)

var _ netlink.Netlinker = (*Manager)(nil)

const netConnectPoll = 20 * time.Millisecond

// NetConnect brings the driver up and joins params.Ssid as a station,
// blocking until an IPv4 address is acquired. Each attempt waits at most
// params.ConnectTimeout. Zero params.Retries retries forever.
func (m *Manager) NetConnect(params *netlink.ConnectParams) error {
	if params.ConnectMode != netlink.ConnectModeSTA {
		return netlink.ErrConnectModeNoGood
	}
	if params.Ssid == "" {
		return netlink.ErrMissingSSID
	}
	if params.Passphrase != "" && len(params.Passphrase) < 8 {
		return netlink.ErrShortPassphrase
	}
	snap := m.Snapshot()
	if snap.STAConnected && snap.GotIPv4 {
		return netlink.ErrConnected
	}
	cfg := wlan.StationConfig{
		SSID:     params.Ssid,
		Password: params.Passphrase,
		PMF:      wlan.PMFConfig{Capable: true},
	}
	switch params.AuthType {
	case netlink.AuthTypeOpen:
		cfg.Threshold.Auth = wlan.AuthOpen
	case netlink.AuthTypeWPA:
		cfg.Threshold.Auth = wlan.AuthWPA
	case netlink.AuthTypeWPA2:
		if params.Passphrase != "" {
			cfg.Threshold.Auth = wlan.AuthWPA2
		}
	case netlink.AuthTypeWPA2Mixed:
		cfg.Threshold.Auth = wlan.AuthWPAWPA2
	default:
		return netlink.ErrAuthTypeNoGood
	}
	if params.Country != "" {
		m.UpdateInitConfig(func(ic *wlan.InitConfig) { ic.Country = params.Country })
	}
	if err := m.Init(); err != nil {
		return err
	}
	if err := m.Start(); err != nil {
		return err
	}
	timeout := params.ConnectTimeout
	if timeout <= 0 {
		timeout = netlink.DefaultConnectTimeout
	}
	m.info("netconnect", slog.String("ssid", params.Ssid), slog.Int("retries", params.Retries), slog.Duration("timeout", timeout))

	for attempt := 1; ; attempt++ {
		err := m.Connect(cfg, true)
		if err != nil {
			return err
		}
		if m.waitIPv4(time.Now().Add(timeout)) {
			return nil
		}
		m.mu.Lock()
		reason := m.lastReason
		m.mu.Unlock()
		m.warn("netconnect:attempt-failed", slog.Int("attempt", attempt), slog.String("reason", reason.String()))
		if params.Retries > 0 && attempt >= params.Retries {
			return netConnectErr(reason)
		}
	}
}

// waitIPv4 polls the state until an IPv4 address is acquired or deadline.
func (m *Manager) waitIPv4(deadline time.Time) bool {
	for {
		m.mu.Lock()
		got := m.gotIPv4
		m.mu.Unlock()
		if got {
			return true
		}
		if time.Until(deadline) <= 0 {
			return false
		}
		time.Sleep(netConnectPoll)
	}
}

// netConnectErr maps the last disconnect reason of a failed attempt.
func netConnectErr(reason wlan.Reason) error {
	switch reason {
	case wlan.ReasonAuthFail, wlan.Reason4WayHandshakeTimeout, wlan.ReasonHandshakeTimeout,
		wlan.ReasonMICFailure, wlan.Reason8021XAuthFailed:
		return netlink.ErrAuthFailure
	case wlan.ReasonNoAPFound, wlan.ReasonAssocFail, wlan.ReasonConnectionFail:
		return netlink.ErrConnectFailed
	}
	return netlink.ErrConnectTimeout
}

// NetDisconnect drops the association and disables automatic reconnects.
func (m *Manager) NetDisconnect() {
	if err := m.Disconnect(); err != nil {
		m.logerr("netdisconnect", errattr(err))
	}
}

// NetNotify registers cb to be called when the station gains an IPv4 address
// and when it disconnects. cb runs on the driver's event goroutine.
func (m *Manager) NetNotify(cb func(netlink.Event)) {
	m.mu.Lock()
	m.notify = cb
	m.mu.Unlock()
}

// GetHardwareAddr returns the station MAC if the driver can report it.
func (m *Manager) GetHardwareAddr() (net.HardwareAddr, error) {
	hg, ok := m.drv.(wlan.HardwareAddrGetter)
	if !ok {
		return nil, netlink.ErrNotSupported
	}
	mac, err := hg.HardwareAddr()
	if err != nil {
		return nil, err
	}
	return mac.HardwareAddr(), nil
}
