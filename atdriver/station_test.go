package atdriver

import (
	"sync"
	"testing"
	"time"

	"github.com/soypat/wificmd"
	"github.com/soypat/wificmd/wlan"
)

var homeCfg = wlan.StationConfig{
	SSID:     "home",
	Password: "password1",
	PMF:      wlan.PMFConfig{Capable: true},
}

// firmware emulates the reports of an ESP-AT module joining and leaving.
type firmware struct {
	mu         sync.Mutex
	associated bool
}

func (fw *firmware) onCmd(name string) []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	switch name {
	case "+CWJAP=":
		var msgs []string
		if fw.associated {
			msgs = append(msgs, "WIFI DISCONNECT")
		}
		fw.associated = true
		return append(msgs, "WIFI CONNECTED")
	case "+CWQAP":
		if fw.associated {
			fw.associated = false
			return []string{"WIFI DISCONNECT"}
		}
	}
	return nil
}

func newATManager(t *testing.T) (*wificmd.Manager, *fakeDev) {
	t.Helper()
	dev := newFakeDev()
	fw := &firmware{}
	dev.onCmd = fw.onCmd
	d := New(dev, Config{})
	m, err := wificmd.New(d, wificmd.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		m.Wait()
		d.Close()
	})
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	return m, dev
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func connectedAfter(m *wificmd.Manager, drops uint32) func() bool {
	return func() bool {
		s := m.Snapshot()
		return s.STAConnected && s.Counters.STADisconnected == drops
	}
}

func TestManagerLeaveThenConnect(t *testing.T) {
	for i := 0; i < 20; i++ {
		m, dev := newATManager(t)
		if err := m.Connect(homeCfg, true); err != nil {
			t.Fatal(err)
		}
		waitFor(t, "first association", connectedAfter(m, 0))

		// sta_connect without --no-disconnect.
		if err := m.Leave(); err != nil {
			t.Fatal(err)
		}
		if err := m.Connect(homeCfg, true); err != nil {
			t.Fatal(err)
		}
		waitFor(t, "second association", connectedAfter(m, 1))
		m.Wait()
		if p := m.Policy(); p.Retries != 0 {
			t.Fatalf("run %d: leave counted as a drop: %+v", i, p)
		}
		if n := dev.count("+CWJAP="); n != 2 {
			t.Fatalf("run %d: %d joins issued, want 2", i, n)
		}
	}
}

func TestManagerReplaceAssociation(t *testing.T) {
	m, dev := newATManager(t)
	if err := m.Connect(homeCfg, true); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first association", connectedAfter(m, 0))

	// sta_connect --no-disconnect: the firmware drops the old AP itself.
	if err := m.Connect(homeCfg, true); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "second association", connectedAfter(m, 1))
	m.Wait()
	if p := m.Policy(); p.Retries != 0 || !p.Enabled {
		t.Errorf("policy %+v", p)
	}
	if n := dev.count("+CWJAP="); n != 2 {
		t.Errorf("%d joins issued, want 2", n)
	}
}
