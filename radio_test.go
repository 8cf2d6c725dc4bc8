package wificmd

import (
	"errors"
	"testing"

	"github.com/soypat/wificmd/wlan"
	"github.com/soypat/wificmd/wlan/wlansim"
)

func TestProtocols(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultConfig())
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	bgn := wlan.Protocol11B | wlan.Protocol11G | wlan.Protocol11N
	want := wlan.Protocols{GHz2: bgn, GHz5: wlan.Protocol11A | wlan.Protocol11N}
	if err := m.SetProtocols(wlan.IfaceSTA, want); err != nil {
		t.Fatal(err)
	}
	if got, err := m.Protocols(wlan.IfaceSTA); err != nil || got != want {
		t.Fatalf("got %+v %v, want %+v", got, err, want)
	}

	// A zero band is left as is.
	if err := m.SetProtocols(wlan.IfaceSTA, wlan.Protocols{GHz2: wlan.Protocol11B}); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Protocols(wlan.IfaceSTA)
	if got.GHz2 != wlan.Protocol11B || got.GHz5 != want.GHz5 {
		t.Errorf("after 2.4GHz update %+v", got)
	}
	if ap, _ := m.Protocols(wlan.IfaceAP); ap.GHz2 != bgn|wlan.Protocol11AX {
		t.Errorf("ap protocols changed: %+v", ap)
	}
	if err := m.SetProtocols(wlan.Interface(5), want); !errors.Is(err, wlan.ErrWiFiIf) {
		t.Errorf("bad interface: %v", err)
	}
}

func TestProtocols5GUnsupported(t *testing.T) {
	m, sim, _ := newTestManager(t, Config{})
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	err := m.SetProtocols(wlan.IfaceSTA, wlan.Protocols{GHz5: wlan.Protocol11A})
	if !errors.Is(err, wlan.ErrNotSupported) {
		t.Errorf("got %v", err)
	}
	if sim.Calls(wlansim.OpSetProtocols) != 0 {
		t.Error("5GHz protocols reached a single band driver")
	}
}

func TestCountry(t *testing.T) {
	m, sim, _ := newTestManager(t, DefaultConfig())
	de := wlan.Country{Code: "DE", StartChan: 1, NumChan: 13, Manual: true}
	if err := m.SetCountry(de); err != nil {
		t.Fatal(err)
	}
	if got, err := m.Country(); err != nil || got != de {
		t.Errorf("got %+v %v", got, err)
	}
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	if n := sim.Calls(wlansim.OpSetCountry); n != 1 {
		t.Errorf("country set %d times before reboot", n)
	}

	// After a reboot the code is applied again by the next init.
	if err := m.Reboot(); err != nil {
		t.Fatal(err)
	}
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	if n := sim.Calls(wlansim.OpSetCountry); n != 2 {
		t.Errorf("country set %d times after reboot", n)
	}
	if got, _ := sim.Country(); got.Code != "DE" {
		t.Errorf("country %+v after reboot", got)
	}
	if err := m.SetCountry(wlan.Country{Code: "D"}); !errors.Is(err, wlan.ErrInvalidArg) {
		t.Errorf("one letter code: %v", err)
	}
}

// singleBand hides the optional interfaces of the wrapped driver.
type singleBand struct{ wlan.Driver }

func TestRadioNotSupported(t *testing.T) {
	sim := wlansim.New(wlansim.Config{})
	t.Cleanup(func() { sim.Close() })
	m, err := New(singleBand{sim}, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	errs := []error{
		m.SetMode(wlan.ModeAP),
		m.SetCountry(wlan.Country{Code: "US"}),
		m.SetProtocols(wlan.IfaceSTA, wlan.Protocols{GHz2: wlan.Protocol11B}),
	}
	_, err = m.Mode()
	errs = append(errs, err)
	_, err = m.Country()
	errs = append(errs, err)
	_, err = m.Protocols(wlan.IfaceSTA)
	errs = append(errs, err)
	for i, err := range errs {
		if !errors.Is(err, wlan.ErrNotSupported) {
			t.Errorf("call %d: got %v", i, err)
		}
	}
}
