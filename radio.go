package wificmd

import (
	"log/slog"

	"github.com/soypat/wificmd/wlan"
)

// SetMode selects the driver operating mode. Init selects station mode again
// when Config.InitToStation is set.
func (m *Manager) SetMode(mode wlan.Mode) error {
	ms, ok := m.drv.(wlan.ModeSetter)
	if !ok {
		return wlan.ErrNotSupported
	}
	m.opmu.Lock()
	defer m.opmu.Unlock()
	m.debug("radio:mode", slog.String("mode", mode.String()))
	return ms.SetMode(mode)
}

// Mode returns the driver operating mode.
func (m *Manager) Mode() (wlan.Mode, error) {
	mg, ok := m.drv.(wlan.ModeGetter)
	if !ok {
		return 0, wlan.ErrNotSupported
	}
	m.opmu.Lock()
	defer m.opmu.Unlock()
	return mg.Mode()
}

// SetCountry applies the regulatory country. Once set it replaces the init
// config country and is not overridden by later inits.
func (m *Manager) SetCountry(c wlan.Country) error {
	cs, ok := m.drv.(wlan.CountrySetter)
	if !ok {
		return wlan.ErrNotSupported
	}
	m.opmu.Lock()
	defer m.opmu.Unlock()
	m.debug("radio:country", slog.String("cc", c.Code), slog.String("policy", c.Policy()))
	if err := cs.SetCountry(c); err != nil {
		return err
	}
	m.mu.Lock()
	m.initConfigLocked().Country = c.Code
	m.countrySet = true
	m.mu.Unlock()
	return nil
}

// Country returns the regulatory country in effect.
func (m *Manager) Country() (wlan.Country, error) {
	cg, ok := m.drv.(wlan.CountryGetter)
	if !ok {
		return wlan.Country{}, wlan.ErrNotSupported
	}
	m.opmu.Lock()
	defer m.opmu.Unlock()
	return cg.Country()
}

// SetProtocols restricts the protocols of an interface. 5GHz protocols need
// a dual band driver.
func (m *Manager) SetProtocols(ifx wlan.Interface, p wlan.Protocols) error {
	ps, ok := m.drv.(wlan.ProtocolSetter)
	if !ok {
		return wlan.ErrNotSupported
	}
	if p.GHz5 != 0 && !m.features.Has(wlan.Feature5G) {
		return wlan.ErrNotSupported
	}
	m.opmu.Lock()
	defer m.opmu.Unlock()
	m.debug("radio:protocol", slog.String("ifx", ifx.String()),
		slog.String("2g", p.GHz2.String()), slog.String("5g", p.GHz5.String()))
	return ps.SetProtocols(ifx, p)
}

// Protocols returns the protocols enabled on an interface.
func (m *Manager) Protocols(ifx wlan.Interface) (wlan.Protocols, error) {
	pg, ok := m.drv.(wlan.ProtocolGetter)
	if !ok {
		return wlan.Protocols{}, wlan.ErrNotSupported
	}
	m.opmu.Lock()
	defer m.opmu.Unlock()
	return pg.Protocols(ifx)
}
