package wificmd

import (
	"errors"
	"log/slog"

	"github.com/soypat/wificmd/wlan"
)

// Action is a lifecycle step requested from the console.
type Action uint8

const (
	ActionInit Action = iota
	ActionStart
	ActionStop
	ActionDeinit
	ActionRestart
)

var actionNames = [...]string{
	ActionInit:    "init",
	ActionStart:   "start",
	ActionStop:    "stop",
	ActionDeinit:  "deinit",
	ActionRestart: "restart",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// ParseAction parses the lifecycle action names accepted by the wifi command.
func ParseAction(s string) (Action, error) {
	for i, name := range actionNames {
		if name == s {
			return Action(i), nil
		}
	}
	return 0, wlan.ErrInvalidArg
}

// Do runs a lifecycle action.
func (m *Manager) Do(a Action) error {
	switch a {
	case ActionInit:
		return m.Init()
	case ActionStart:
		return m.Start()
	case ActionStop:
		return m.Stop()
	case ActionDeinit:
		return m.Deinit()
	case ActionRestart:
		return m.Restart()
	}
	return wlan.ErrInvalidArg
}

// UpdateInitConfig applies fn to the retained driver init configuration,
// creating it with defaults first if needed. Changes apply on the next init.
func (m *Manager) UpdateInitConfig(fn func(cfg *wlan.InitConfig)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.initConfigLocked())
}

func (m *Manager) initConfigLocked() *wlan.InitConfig {
	if m.initCfg == nil {
		cfg := wlan.DefaultInitConfig()
		m.initCfg = &cfg
	}
	return m.initCfg
}

// Init initializes the driver and registers the event handlers. Init is a
// no-op once the driver is initialized with its handlers in place. Errors
// wrap ErrInitFatal.
func (m *Manager) Init() error {
	m.opmu.Lock()
	defer m.opmu.Unlock()
	if m.Status() >= StatusInit {
		if m.hasRegistrations() {
			m.debug("init:already-initialized")
			return nil
		}
		// A failed restart left the driver up without handlers.
		m.warn("init:reregister")
		if err := m.registerHandlers(); err != nil {
			m.logerr("init:failed", errattr(err))
			return errors.Join(ErrInitFatal, err)
		}
		return nil
	}
	m.info("init:start")
	err := m.initDriver()
	if err != nil {
		m.logerr("init:failed", errattr(err))
		return errors.Join(ErrInitFatal, err)
	}
	m.mu.Lock()
	m.status = StatusInit
	m.mu.Unlock()
	m.info("init:done")
	return nil
}

func (m *Manager) hasRegistrations() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.registered) > 0
}

// initDriver runs the one-time bootstrap, the driver init and the handler
// registration. It does not touch the lifecycle status.
func (m *Manager) initDriver() error {
	if !m.bootstrapped {
		if b, ok := m.drv.(wlan.Bootstrapper); ok {
			if err := b.Bootstrap(); err != nil {
				return err
			}
		}
		m.bootstrapped = true
	}
	m.mu.Lock()
	cfg := *m.initConfigLocked()
	m.mu.Unlock()
	m.debug("init:driver", slog.Bool("nvs", cfg.NVSEnable), slog.Int("espnow_enc", cfg.ESPNowMaxEncrypt))

	err := m.drv.Init(cfg)
	if err != nil {
		return err
	}
	err = m.registerHandlers()
	if err != nil {
		return err
	}
	if !m.countrySet && cfg.Country != "" {
		if cs, ok := m.drv.(wlan.CountrySetter); ok {
			if err := cs.SetCountry(wlan.Country{Code: cfg.Country}); err != nil {
				m.warn("init:country", slog.String("cc", cfg.Country), errattr(err))
			}
		}
		m.countrySet = true
	}
	if m.initToSTA {
		if ms, ok := m.drv.(wlan.ModeSetter); ok {
			if err := ms.SetMode(wlan.ModeSTA); err != nil {
				return err
			}
		}
	}
	return nil
}

// Start starts the driver. It is a no-op once started. On failure the
// status is left unchanged and the call may be retried.
func (m *Manager) Start() error {
	m.opmu.Lock()
	defer m.opmu.Unlock()
	if m.Status() >= StatusStarted {
		m.debug("start:already-started")
		return nil
	}
	err := m.drv.Start()
	if err != nil {
		m.logerr("start:failed", errattr(err))
		return err
	}
	m.mu.Lock()
	m.status = StatusStarted
	m.mu.Unlock()
	return nil
}

// Stop stops the driver and lowers the status to at most StatusInit, even
// when the driver call fails.
func (m *Manager) Stop() error {
	m.opmu.Lock()
	defer m.opmu.Unlock()
	return m.stop()
}

func (m *Manager) stop() error {
	err := m.drv.Stop()
	m.ewarn("esp_wifi_stop", err)
	m.mu.Lock()
	if m.status >= StatusInit {
		m.status = StatusInit
	}
	m.mu.Unlock()
	return err
}

// Deinit unregisters every handler and deinitializes the driver. The status
// becomes StatusNone regardless of failures.
func (m *Manager) Deinit() error {
	m.opmu.Lock()
	defer m.opmu.Unlock()
	return m.deinit()
}

func (m *Manager) deinit() error {
	m.unregisterHandlers()
	err := m.drv.Deinit()
	m.ewarn("app_wifi_deinit", err)
	m.mu.Lock()
	m.status = StatusNone
	m.mu.Unlock()
	return err
}

// Restart runs stop, deinit, init and start in sequence. Failures of the
// first three steps are logged and do not abort the sequence; the returned
// error is the result of the final start, or the registration error when
// the driver ends up running without handlers.
func (m *Manager) Restart() error {
	m.opmu.Lock()
	defer m.opmu.Unlock()
	m.info("restart:start")
	m.stop()
	derr := m.deinit()

	err := m.initDriver()
	m.ewarn("wifi_cmd_init_wifi_and_handlers", err)
	if err != nil && derr != nil && !m.hasRegistrations() {
		// The driver survived the failed deinit and rejects a second init.
		// Its events still need handlers.
		err = m.registerHandlers()
		if err != nil {
			m.logerr("restart:register", errattr(err))
		}
	}
	m.mu.Lock()
	m.status = StatusInit
	m.mu.Unlock()

	serr := m.drv.Start()
	m.ewarn("esp_wifi_start", serr)
	if serr != nil {
		return serr
	}
	m.mu.Lock()
	m.status = StatusStarted
	m.mu.Unlock()
	if !m.hasRegistrations() {
		return errors.Join(ErrInitFatal, err)
	}
	m.info("restart:done")
	return nil
}

// Restore resets the driver's persisted configuration to factory defaults.
func (m *Manager) Restore() error {
	m.opmu.Lock()
	defer m.opmu.Unlock()
	return m.drv.Restore()
}

// Reboot restarts the chip if the driver supports it. On success the Manager
// returns to its power-on state: status None, no handler registrations and
// the bootstrap redone by the next Init.
func (m *Manager) Reboot() error {
	r, ok := m.drv.(wlan.Rebooter)
	if !ok {
		return wlan.ErrNotSupported
	}
	m.opmu.Lock()
	defer m.opmu.Unlock()
	m.info("reboot")
	if err := r.Reboot(); err != nil {
		return err
	}
	m.mu.Lock()
	m.status = StatusNone
	m.staConnected, m.gotIPv4 = false, false
	m.registered = nil
	m.bootstrapped, m.countrySet = false, false
	m.policy.reset(true)
	m.epoch++
	m.mu.Unlock()
	return nil
}
