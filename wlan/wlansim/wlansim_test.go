package wlansim

import (
	"errors"
	"net/netip"
	"sync"
	"testing"

	"github.com/soypat/wificmd/wlan"
)

var testAPs = []AP{
	{
		Record: wlan.APRecord{
			BSSID:   wlan.MAC{0x02, 0, 0, 0, 0, 1},
			SSID:    "lab",
			RSSI:    -70,
			Auth:    wlan.AuthWPA2,
			Primary: 1,
		},
		Password: "labpass1",
		IP:       netip.MustParseAddr("10.1.0.2"),
	},
	{
		Record: wlan.APRecord{
			BSSID:   wlan.MAC{0x02, 0, 0, 0, 0, 2},
			SSID:    "lab",
			RSSI:    -50,
			Auth:    wlan.AuthWPA2,
			Primary: 11,
		},
		Password: "labpass1",
		IP:       netip.MustParseAddr("10.1.0.3"),
	},
	{
		Record: wlan.APRecord{
			BSSID:   wlan.MAC{0x02, 0, 0, 0, 0, 3},
			SSID:    "secret",
			Auth:    wlan.AuthOpen,
			Primary: 6,
		},
		Hidden: true,
	},
}

type recorder struct {
	mu   sync.Mutex
	evs  []wlan.EventID
	data []any
}

func (r *recorder) handle(base wlan.EventBase, id wlan.EventID, data any) {
	r.mu.Lock()
	r.evs = append(r.evs, id)
	r.data = append(r.data, data)
	r.mu.Unlock()
}

func (r *recorder) take() ([]wlan.EventID, []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	evs, data := r.evs, r.data
	r.evs, r.data = nil, nil
	return evs, data
}

func newStarted(t *testing.T) (*Sim, *recorder) {
	t.Helper()
	s := New(Config{APs: testAPs, MAC: wlan.MAC{0x24, 0x0a, 0xc4, 0, 0, 1}})
	t.Cleanup(func() { s.Close() })
	rec := &recorder{}
	for _, k := range []struct {
		base wlan.EventBase
		id   wlan.EventID
	}{
		{wlan.BaseWiFi, wlan.EventSTAStart},
		{wlan.BaseWiFi, wlan.EventSTAConnected},
		{wlan.BaseWiFi, wlan.EventSTADisconnected},
		{wlan.BaseWiFi, wlan.EventScanDone},
		{wlan.BaseIP, wlan.EventSTAGotIP},
	} {
		if err := s.RegisterHandler(k.base, k.id, rec.handle); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Init(wlan.InitConfig{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.Flush()
	if evs, _ := rec.take(); len(evs) != 1 || evs[0] != wlan.EventSTAStart {
		t.Fatalf("start events: %v", evs)
	}
	return s, rec
}

func TestConnectStrongest(t *testing.T) {
	s, rec := newStarted(t)
	if err := s.SetStationConfig(wlan.StationConfig{SSID: "lab", Password: "labpass1", ScanMethod: wlan.ScanAllChannel}); err != nil {
		t.Fatal(err)
	}
	if err := s.Connect(); err != nil {
		t.Fatal(err)
	}
	s.Flush()
	evs, data := rec.take()
	if len(evs) != 2 || evs[0] != wlan.EventSTAConnected || evs[1] != wlan.EventSTAGotIP {
		t.Fatalf("events: %v", evs)
	}
	conn := data[0].(*wlan.STAConnected)
	if conn.Channel != 11 {
		t.Errorf("joined channel %d, want strongest AP on 11", conn.Channel)
	}
	if ip := data[1].(*wlan.GotIP).IP; ip != testAPs[1].IP {
		t.Errorf("ip %s", ip)
	}
	if ssid, ok := s.Linked(); !ok || ssid != "lab" {
		t.Errorf("linked %q %v", ssid, ok)
	}
}

func TestConnectFailures(t *testing.T) {
	tests := []struct {
		cfg    wlan.StationConfig
		reason wlan.Reason
	}{
		{cfg: wlan.StationConfig{SSID: "nowhere"}, reason: wlan.ReasonNoAPFound},
		{cfg: wlan.StationConfig{SSID: "lab", Password: "wrong"}, reason: wlan.Reason4WayHandshakeTimeout},
		{cfg: wlan.StationConfig{SSID: "lab", Password: "labpass1", Channel: 6}, reason: wlan.ReasonNoAPFound},
	}
	for _, test := range tests {
		s, rec := newStarted(t)
		if err := s.SetStationConfig(test.cfg); err != nil {
			t.Fatal(err)
		}
		if err := s.Connect(); err != nil {
			t.Fatal(err)
		}
		s.Flush()
		evs, data := rec.take()
		if len(evs) != 1 || evs[0] != wlan.EventSTADisconnected {
			t.Fatalf("%+v: events %v", test.cfg, evs)
		}
		if got := data[0].(*wlan.STADisconnected).Reason; got != test.reason {
			t.Errorf("%+v: reason %v, want %v", test.cfg, got, test.reason)
		}
	}
}

func TestScanHidden(t *testing.T) {
	s, rec := newStarted(t)
	for _, hidden := range []bool{false, true} {
		if err := s.StartScan(wlan.ScanConfig{ShowHidden: hidden}); err != nil {
			t.Fatal(err)
		}
		s.Flush()
		evs, data := rec.take()
		if len(evs) != 1 || evs[0] != wlan.EventScanDone {
			t.Fatalf("events %v", evs)
		}
		want := 2
		if hidden {
			want = 3
		}
		if n := data[0].(*wlan.ScanDone).Number; int(n) != want {
			t.Errorf("hidden=%v: %d APs, want %d", hidden, n, want)
		}
		recs := make([]wlan.APRecord, 8)
		n, err := s.ScanRecords(recs)
		if err != nil || n != want {
			t.Fatalf("records %d %v", n, err)
		}
		if hidden && recs[2].SSID != "" {
			t.Errorf("hidden SSID leaked: %q", recs[2].SSID)
		}
		if c, _ := s.ScanAPCount(); c != 0 {
			t.Errorf("records not consumed: %d left", c)
		}
	}
}

func TestLifecycleErrors(t *testing.T) {
	s, _ := newStarted(t)
	if err := s.Init(wlan.InitConfig{}); !errors.Is(err, wlan.ErrInvalidState) {
		t.Errorf("double init: %v", err)
	}
	if err := s.Deinit(); !errors.Is(err, wlan.ErrWiFiNotStopped) {
		t.Errorf("deinit while started: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Connect(); !errors.Is(err, wlan.ErrWiFiNotStarted) {
		t.Errorf("connect while stopped: %v", err)
	}
	if err := s.Deinit(); err != nil {
		t.Fatal(err)
	}
	if err := s.Deinit(); !errors.Is(err, wlan.ErrWiFiNotInit) {
		t.Errorf("double deinit: %v", err)
	}
}

func TestInjectedError(t *testing.T) {
	s, _ := newStarted(t)
	s.SetError(OpConnect, wlan.ErrWiFiConn)
	s.SetStationConfig(wlan.StationConfig{SSID: "lab", Password: "labpass1"})
	if err := s.Connect(); !errors.Is(err, wlan.ErrWiFiConn) {
		t.Errorf("got %v", err)
	}
	if n := s.Calls(OpConnect); n != 1 {
		t.Errorf("connect calls %d", n)
	}
	s.SetError(OpConnect, nil)
	if err := s.Connect(); err != nil {
		t.Errorf("after clearing: %v", err)
	}
}

func TestRebootDropsHandlers(t *testing.T) {
	s, _ := newStarted(t)
	if s.Handlers() == 0 {
		t.Fatal("no handlers registered")
	}
	if err := s.Reboot(); err != nil {
		t.Fatal(err)
	}
	if s.Handlers() != 0 {
		t.Errorf("%d handlers survived reboot", s.Handlers())
	}
	if err := s.Start(); !errors.Is(err, wlan.ErrWiFiNotInit) {
		t.Errorf("start after reboot: %v", err)
	}
}
