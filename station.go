package wificmd

import (
	"log/slog"

	"github.com/soypat/wificmd/wlan"
)

// Connect starts an association with cfg. It resets the retry counter and
// sets whether dropped associations are retried automatically. The returned
// error is that of the driver; Connect does not retry.
func (m *Manager) Connect(cfg wlan.StationConfig, reconnect bool) error {
	m.opmu.Lock()
	defer m.opmu.Unlock()
	m.mu.Lock()
	m.policy.reset(reconnect)
	m.epoch++
	m.mu.Unlock()
	m.info("connect", slog.String("ssid", cfg.SSID), slog.Bool("reconnect", reconnect))

	err := m.drv.SetStationConfig(cfg)
	if err != nil {
		return err
	}
	if !cfg.PMF.Capable {
		pd, ok := m.drv.(wlan.PMFDisabler)
		if !ok {
			m.logerr("Failed to disable PMF config", slog.String("reason", "unsupported"))
			return wlan.ErrFail
		}
		if err := pd.DisablePMF(); err != nil {
			m.logerr("Failed to disable PMF config", errattr(err))
			return wlan.ErrFail
		}
	}
	return m.drv.Connect()
}

// ConnectStored connects with the station configuration already stored in
// the driver. The reconnect policy is left untouched.
func (m *Manager) ConnectStored() error {
	m.opmu.Lock()
	defer m.opmu.Unlock()
	return m.drv.Connect()
}

// Disconnect disables automatic reconnects and drops the association.
func (m *Manager) Disconnect() error {
	m.opmu.Lock()
	defer m.opmu.Unlock()
	m.mu.Lock()
	m.policy.Enabled = false
	m.epoch++
	m.mu.Unlock()
	m.info("disconnect")
	return m.drv.Disconnect()
}

// Leave drops the current association without changing the reconnect
// policy. The driver reports it as a local leave, which is never retried.
func (m *Manager) Leave() error {
	m.opmu.Lock()
	defer m.opmu.Unlock()
	return m.drv.Disconnect()
}
