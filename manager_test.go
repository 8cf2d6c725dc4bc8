package wificmd

import (
	"bytes"
	"errors"
	"net/netip"
	"strings"
	"sync"
	"testing"

	"github.com/soypat/wificmd/wlan"
	"github.com/soypat/wificmd/wlan/wlansim"
)

const allFeatures = wlan.FeatureIPv6 | wlan.FeatureHE | wlan.FeatureITWT | wlan.Feature5G

var homeAP = wlansim.AP{
	Record: wlan.APRecord{
		BSSID:     wlan.MAC{0x24, 0x0a, 0xc4, 0x01, 0x02, 0x03},
		SSID:      "home",
		RSSI:      -40,
		Auth:      wlan.AuthWPA2,
		Primary:   6,
		Phy:       wlan.PhySupport{B: true, G: true, N: true},
		Bandwidth: wlan.BW20,
	},
	Password: "password1",
	IP:       netip.MustParseAddr("192.168.4.2"),
	IP6:      netip.MustParseAddr("fe80::260a:c4ff:fe01:203"),
}

var homeCfg = wlan.StationConfig{
	SSID:     "home",
	Password: "password1",
	PMF:      wlan.PMFConfig{Capable: true},
}

// lineBuffer collects status lines written concurrently.
type lineBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lb *lineBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

func (lb *lineBuffer) Lines() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	s := strings.TrimSuffix(lb.buf.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func (lb *lineBuffer) Count(line string) (n int) {
	for _, l := range lb.Lines() {
		if l == line {
			n++
		}
	}
	return n
}

func (lb *lineBuffer) Reset() {
	lb.mu.Lock()
	lb.buf.Reset()
	lb.mu.Unlock()
}

func newTestManager(t *testing.T, cfg Config, aps ...wlansim.AP) (*Manager, *wlansim.Sim, *lineBuffer) {
	t.Helper()
	sim := wlansim.New(wlansim.Config{
		Features: allFeatures,
		MAC:      wlan.MAC{0x24, 0x0a, 0xc4, 0xaa, 0xbb, 0xcc},
		APs:      aps,
	})
	out := &lineBuffer{}
	cfg.Output = out
	m, err := New(sim, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		m.Wait()
		sim.Close()
	})
	return m, sim, out
}

// settle delivers pending events and waits for the reconnects they cause
// until no further connect is issued.
func settle(m *Manager, sim *wlansim.Sim) {
	for {
		n := sim.Calls(wlansim.OpConnect)
		sim.Flush()
		m.Wait()
		if sim.Calls(wlansim.OpConnect) == n {
			return
		}
	}
}

func bringUp(t *testing.T, m *Manager, sim *wlansim.Sim) {
	t.Helper()
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(homeCfg, true); err != nil {
		t.Fatal(err)
	}
	settle(m, sim)
	snap := m.Snapshot()
	if !snap.STAConnected || !snap.GotIPv4 {
		t.Fatalf("not connected after bring up: %+v", snap)
	}
}

func TestNewNilDriver(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestDefaultPolicy(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	p := m.Policy()
	if !p.Enabled || p.MaxRetries != 30 || p.Retries != 0 {
		t.Errorf("bad default policy %+v", p)
	}
	if m.Status() != StatusNone {
		t.Errorf("status %s", m.Status())
	}
}

func TestInitIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitConfig = &wlan.InitConfig{NVSEnable: true, ESPNowMaxEncrypt: 4, Country: "US"}
	m, sim, _ := newTestManager(t, cfg)
	for i := 0; i < 2; i++ {
		if err := m.Init(); err != nil {
			t.Fatal(err)
		}
	}
	if n := sim.Calls(wlansim.OpInit); n != 1 {
		t.Errorf("driver init called %d times", n)
	}
	if n := sim.Handlers(); n != int(numEventKinds) {
		t.Errorf("got %d handlers registered, want %d", n, numEventKinds)
	}
	if sim.InitConfig().ESPNowMaxEncrypt != 4 {
		t.Error("init config not handed to driver")
	}
	if c, _ := sim.Country(); c.Code != "US" || c.Manual {
		t.Errorf("country %+v", c)
	}
	if mode, _ := sim.Mode(); mode != wlan.ModeSTA {
		t.Errorf("mode %s", mode)
	}
	if m.Status() != StatusInit {
		t.Errorf("status %s", m.Status())
	}

	// Bootstrap and country code happen once per Manager.
	if err := m.Deinit(); err != nil {
		t.Fatal(err)
	}
	if sim.Handlers() != 0 {
		t.Errorf("%d handlers left after deinit", sim.Handlers())
	}
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	if n := sim.Calls(wlansim.OpBootstrap); n != 1 {
		t.Errorf("bootstrap called %d times", n)
	}
	if n := sim.Calls(wlansim.OpSetCountry); n != 1 {
		t.Errorf("country set %d times", n)
	}
}

func TestInitConfigUpdate(t *testing.T) {
	m, sim, _ := newTestManager(t, DefaultConfig())
	m.UpdateInitConfig(func(cfg *wlan.InitConfig) {
		cfg.NVSEnable = false
		cfg.ESPNowMaxEncrypt = 2
	})
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	got := sim.InitConfig()
	if got.NVSEnable || got.ESPNowMaxEncrypt != 2 || got.PowerSave != wlan.PSMinModem {
		t.Errorf("unexpected init config %+v", got)
	}
	if sim.Calls(wlansim.OpSetCountry) != 0 {
		t.Error("empty country code must not be applied")
	}
}

func TestInitFatal(t *testing.T) {
	for _, op := range []wlansim.Op{wlansim.OpBootstrap, wlansim.OpInit, wlansim.OpRegister} {
		m, sim, _ := newTestManager(t, DefaultConfig())
		sim.SetError(op, wlan.ErrNoMem)
		err := m.Init()
		if !errors.Is(err, ErrInitFatal) {
			t.Errorf("op %d: want ErrInitFatal, got %v", op, err)
		}
		if code := ErrorCode(err); code != wlan.ErrNoMem {
			t.Errorf("op %d: code %s", op, code.Name())
		}
		if m.Status() != StatusNone {
			t.Errorf("op %d: status %s after failed init", op, m.Status())
		}
	}
}

func TestFeatureGatedRegistration(t *testing.T) {
	sim := wlansim.New(wlansim.Config{})
	defer sim.Close()
	m, err := New(sim, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if m.Features() != 0 {
		t.Errorf("features %s not narrowed to driver", m.Features())
	}
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	if sim.Registered(wlan.BaseIP, wlan.EventGotIP6) {
		t.Error("IPv6 handler registered without IPv6")
	}
	if sim.Registered(wlan.BaseWiFi, wlan.EventITWTSetup) {
		t.Error("iTWT handler registered without iTWT")
	}
	if !sim.Registered(wlan.BaseWiFi, wlan.EventSTADisconnected) {
		t.Error("disconnect handler not registered")
	}
	if n := sim.Handlers(); n != 6 {
		t.Errorf("got %d handlers, want 6", n)
	}
}

func TestResolveFeatures(t *testing.T) {
	sim := wlansim.New(wlansim.Config{Features: wlan.FeatureIPv6 | wlan.FeatureITWT})
	defer sim.Close()
	got := resolveFeatures(allFeatures, sim)
	if got != wlan.FeatureIPv6 {
		t.Errorf("iTWT kept without HE: %s", got)
	}
}

func TestStartStopDeinit(t *testing.T) {
	m, sim, out := newTestManager(t, DefaultConfig())
	err := m.Start()
	if ErrorCode(err) != wlan.ErrWiFiNotInit {
		t.Fatalf("start before init: %v", err)
	}
	if m.Status() != StatusNone {
		t.Fatal("failed start changed status")
	}
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := m.Start(); err != nil {
			t.Fatal(err)
		}
	}
	if n := sim.Calls(wlansim.OpStart); n != 2 {
		t.Errorf("driver start called %d times, want 2", n)
	}
	if m.Status() != StatusStarted {
		t.Fatalf("status %s", m.Status())
	}

	sim.SetError(wlansim.OpStop, wlan.ErrFail)
	m.Stop()
	if m.Status() != StatusInit {
		t.Errorf("stop failure must still lower status, got %s", m.Status())
	}
	if out.Count("@EW:failed:esp_wifi_stop,-1,ESP_FAIL") != 1 {
		t.Errorf("missing stop warning in %q", out.Lines())
	}
	sim.SetError(wlansim.OpStop, nil)
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}

	sim.SetError(wlansim.OpUnregister, wlan.ErrFail)
	if err := m.Deinit(); err != nil {
		t.Fatal(err)
	}
	if m.Status() != StatusNone {
		t.Errorf("status %s after deinit", m.Status())
	}
	if n := sim.Calls(wlansim.OpUnregister); n != int(numEventKinds) {
		t.Errorf("unregister attempted %d times, want every handler", n)
	}
}

func TestRestart(t *testing.T) {
	m, sim, out := newTestManager(t, DefaultConfig())
	// From None every teardown step fails and restart still reaches Started.
	if err := m.Restart(); err != nil {
		t.Fatal(err)
	}
	if m.Status() != StatusStarted {
		t.Fatalf("status %s", m.Status())
	}
	if out.Count("@EW:failed:esp_wifi_stop,12289,ESP_ERR_WIFI_NOT_INIT") != 1 {
		t.Errorf("missing stop warning: %q", out.Lines())
	}

	sim.SetError(wlansim.OpUnregister, wlan.ErrFail)
	if err := m.Restart(); err != nil {
		t.Fatal(err)
	}
	sim.SetError(wlansim.OpUnregister, nil)
	if m.Status() != StatusStarted {
		t.Errorf("status %s", m.Status())
	}
	if sim.Handlers() != int(numEventKinds) {
		t.Errorf("handlers out of sync with driver: %d", sim.Handlers())
	}

	// A failed stop leaves the driver running; restart logs each failure
	// and still ends started.
	out.Reset()
	sim.SetError(wlansim.OpStop, wlan.ErrFail)
	if err := m.Restart(); err != nil {
		t.Fatal(err)
	}
	sim.SetError(wlansim.OpStop, nil)
	if m.Status() != StatusStarted {
		t.Errorf("status %s", m.Status())
	}
	for _, line := range []string{
		"@EW:failed:esp_wifi_stop,-1,ESP_FAIL",
		"@EW:failed:app_wifi_deinit,12291,ESP_ERR_WIFI_NOT_STOPPED",
		"@EW:failed:wifi_cmd_init_wifi_and_handlers,259,ESP_ERR_INVALID_STATE",
	} {
		if out.Count(line) != 1 {
			t.Errorf("missing %q in %q", line, out.Lines())
		}
	}
	// The driver never stopped, so its handlers must be back in place.
	if sim.Handlers() != int(numEventKinds) {
		t.Fatalf("driver running with %d handlers after failed stop", sim.Handlers())
	}
	before := m.Counters()
	sim.DropLink(wlan.ReasonBeaconTimeout)
	sim.Flush()
	if got := m.Counters(); got.STADisconnected != before.STADisconnected+1 || got.BeaconTimeout != before.BeaconTimeout+1 {
		t.Errorf("events lost after restart: %+v -> %+v", before, got)
	}

	// When the handlers cannot be restored the restart fails and a later
	// Init repairs the registration.
	sim.SetError(wlansim.OpStop, wlan.ErrFail)
	sim.SetError(wlansim.OpRegister, wlan.ErrFail)
	err := m.Restart()
	sim.SetError(wlansim.OpStop, nil)
	sim.SetError(wlansim.OpRegister, nil)
	if !errors.Is(err, ErrInitFatal) {
		t.Errorf("restart without handlers returned %v", err)
	}
	if sim.Handlers() != 0 {
		t.Fatalf("%d handlers", sim.Handlers())
	}
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	if sim.Handlers() != int(numEventKinds) {
		t.Errorf("init left %d handlers", sim.Handlers())
	}

	sim.SetError(wlansim.OpStart, wlan.ErrNoMem)
	err = m.Restart()
	if ErrorCode(err) != wlan.ErrNoMem {
		t.Fatalf("want final start error, got %v", err)
	}
	if m.Status() != StatusInit {
		t.Errorf("status %s after failed restart", m.Status())
	}
}

func TestDoActions(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	for _, name := range []string{"init", "start", "stop", "deinit", "restart"} {
		a, err := ParseAction(name)
		if err != nil {
			t.Fatal(err)
		}
		if a.String() != name {
			t.Errorf("action %q round trips to %q", name, a.String())
		}
		if err := m.Do(a); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if m.Status() != StatusStarted {
		t.Errorf("status %s", m.Status())
	}
	if _, err := ParseAction("status"); err == nil {
		t.Error("status is not a lifecycle action")
	}
	if err := m.Do(Action(99)); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestRestoreReboot(t *testing.T) {
	m, sim, _ := newTestManager(t, DefaultConfig(), homeAP)
	bringUp(t, m, sim)
	if err := m.Restore(); err != nil {
		t.Fatal(err)
	}
	if err := m.Reboot(); err != nil {
		t.Fatal(err)
	}
	if sim.Calls(wlansim.OpRestore) != 1 || sim.Calls(wlansim.OpReboot) != 1 {
		t.Error("restore or reboot not forwarded")
	}
	snap := m.Snapshot()
	if snap.Status != StatusNone || snap.STAConnected || snap.GotIPv4 {
		t.Errorf("state after reboot %+v", snap)
	}
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	if sim.Calls(wlansim.OpBootstrap) != 2 {
		t.Error("bootstrap not repeated after reboot")
	}
	if !sim.Registered(wlan.BaseWiFi, wlan.EventSTADisconnected) {
		t.Error("handlers not registered after reboot")
	}
}

func TestHandlerOverride(t *testing.T) {
	m, sim, out := newTestManager(t, DefaultConfig(), homeAP)
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	var custom int
	err := m.SetHandler(EventSTAConnected, func(base wlan.EventBase, id wlan.EventID, data any) {
		custom++
		m.DefaultHandler(EventSTAConnected)(base, id, data)
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(homeCfg, true); err != nil {
		t.Fatal(err)
	}
	settle(m, sim)
	if custom != 1 {
		t.Errorf("custom handler ran %d times", custom)
	}
	if out.Count("WIFI_EVENT_STA_CONNECTED!") != 1 {
		t.Error("chained default handler did not run")
	}
	if !m.Snapshot().STAConnected {
		t.Error("state not updated through chained default")
	}

	m.SetHandler(EventSTAConnected, nil)
	if err := m.Connect(homeCfg, true); err != nil {
		t.Fatal(err)
	}
	settle(m, sim)
	if custom != 1 {
		t.Error("restored default still calls custom handler")
	}
	if out.Count("WIFI_EVENT_STA_CONNECTED!") != 2 {
		t.Error("default handler not restored")
	}
	if err := m.SetHandler(numEventKinds, nil); err == nil {
		t.Error("expected error for invalid slot")
	}
}

func TestEventKindString(t *testing.T) {
	if s := EventBeaconTimeout.String(); s != "WIFI_EVENT_STA_BEACON_TIMEOUT" {
		t.Errorf("got %q", s)
	}
	if s := EventGotIPv4.String(); s != "IP_EVENT_STA_GOT_IP" {
		t.Errorf("got %q", s)
	}
	if s := numEventKinds.String(); !strings.HasPrefix(s, "EventKind(") {
		t.Errorf("got %q", s)
	}
}

func TestCounters(t *testing.T) {
	m, sim, _ := newTestManager(t, DefaultConfig())
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		sim.Inject(wlan.BaseWiFi, wlan.EventSTABeaconTimeout, nil)
	}
	sim.Flush()
	if c := m.Counters(); c.BeaconTimeout != 3 || c.STADisconnected != 0 {
		t.Errorf("counters %+v", c)
	}
	m.ClearCounters()
	if c := m.Counters(); c != (Counters{}) {
		t.Errorf("counters not cleared %+v", c)
	}
}

func TestIncsat(t *testing.T) {
	if incsat(uint8(254)) != 255 || incsat(uint8(255)) != 255 {
		t.Error("uint8 saturation")
	}
	if incsat(^uint32(0)) != ^uint32(0) {
		t.Error("uint32 saturation")
	}
}
