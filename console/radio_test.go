package console

import (
	"errors"
	"testing"

	"github.com/soypat/wificmd/wlan"
	"github.com/soypat/wificmd/wlan/wlansim"
)

func TestWifiMode(t *testing.T) {
	c, m, _, out := newTestConsole(t)
	mustExec(t, c, "wifi_mode ap")
	if !out.Has("DONE.SET_WIFI_MODE,FAIL.12289,ESP_ERR_WIFI_NOT_INIT") {
		t.Errorf("got %q", out.Lines())
	}
	mustExec(t, c, "wifi init")
	out.Reset()
	mustExec(t, c, "wifi_mode apsta")
	if !out.Has("mode: apsta") || !out.Has("DONE.SET_WIFI_MODE,OK.") {
		t.Errorf("got %q", out.Lines())
	}
	if mode, _ := m.Mode(); mode != wlan.ModeAPSTA {
		t.Errorf("mode %s", mode)
	}
	out.Reset()
	mustExec(t, c, "wifi status")
	if !out.Has("WIFI_MODE:apsta") || !out.Has(" STA_MAC:24:0a:c4:aa:bb:cc") {
		t.Errorf("apsta status %q", out.Lines())
	}

	mustExec(t, c, "wifi_mode ap")
	out.Reset()
	mustExec(t, c, "wifi status")
	if !out.Has("WIFI_MODE:ap") || out.Has(" STA_MAC:24:0a:c4:aa:bb:cc") {
		t.Errorf("ap status %q", out.Lines())
	}

	if err := c.Exec("wifi_mode mesh"); !errors.Is(err, errArgs) {
		t.Errorf("unknown mode: %v", err)
	}
	if mode, _ := m.Mode(); mode != wlan.ModeAP {
		t.Errorf("mode changed by bad argument: %s", mode)
	}
}

func TestWifiCountry(t *testing.T) {
	c, _, sim, out := newTestConsole(t)
	mustExec(t, c, "wifi_country")
	if !out.Has("CUR_COUNTRY_CODE:01,") || !out.Has("GET_COUNTRY:01,schan=1,nchan=11,policy=auto") {
		t.Errorf("query %q", out.Lines())
	}

	tests := []struct {
		line string
		done string
		want wlan.Country
	}{
		{
			line: "wifi_country US -p manual",
			done: "DONE.SET_WIFI_COUNTRY_CODE,OK.",
			want: wlan.Country{Code: "US", StartChan: 1, NumChan: 11, Manual: true},
		},
		{
			line: "wifi_country JP -n 14",
			done: "DONE.SET_WIFI_COUNTRY,OK.",
			want: wlan.Country{Code: "JP", StartChan: 1, NumChan: 14},
		},
		{
			line: "wifi_country CN -s 10 -n 11",
			done: "DONE.SET_WIFI_COUNTRY,FAIL.258,ESP_ERR_INVALID_ARG",
			want: wlan.Country{Code: "JP", StartChan: 1, NumChan: 14},
		},
	}
	for _, tt := range tests {
		out.Reset()
		mustExec(t, c, tt.line)
		if !out.Has(tt.done) {
			t.Errorf("%q: got %q", tt.line, out.Lines())
		}
		if got, _ := sim.Country(); got != tt.want {
			t.Errorf("%q: country %+v, want %+v", tt.line, got, tt.want)
		}
	}
	if err := c.Exec("wifi_country US -p sometimes"); !errors.Is(err, errArgs) {
		t.Errorf("bad policy: %v", err)
	}

	// A country set from the console is not replaced by init.
	mustExec(t, c, "wifi init")
	if n := sim.Calls(wlansim.OpSetCountry); n != 3 {
		t.Errorf("country set %d times", n)
	}
	if got, _ := sim.Country(); got.Code != "JP" {
		t.Errorf("country after init %+v", got)
	}
}

func TestWifiProtocol(t *testing.T) {
	c, _, sim, out := newTestConsole(t)
	mustExec(t, c, "wifi_protocol")
	if !out.Has("GET_WIFI_PROTO:FAIL,12289,ESP_ERR_WIFI_NOT_INIT") {
		t.Errorf("got %q", out.Lines())
	}
	mustExec(t, c, "wifi init")
	out.Reset()

	mustExec(t, c, "wifi_protocol")
	mustExec(t, c, "wifi_protocol lr/b/g")
	mustExec(t, c, "wifi_protocol --2g b -i ap")
	mustExec(t, c, "wifi_protocol")
	mustExec(t, c, "wifi_protocol -i ap")
	mustExec(t, c, "wifi_protocol --5g a/n/ac")
	want := []string{
		"(sta)GET_WIFI_PROTO:b/g/n/ax",
		"DONE.SET_WIFI_PROTOCOL,OK.",
		"DONE.SET_WIFI_PROTOCOL,OK.",
		"(sta)GET_WIFI_PROTO:lr/b/g",
		"(ap)GET_WIFI_PROTO:b",
		"DONE.SET_WIFI_PROTOCOL,FAIL.262,ESP_ERR_NOT_SUPPORTED",
	}
	got := out.Lines()
	if len(got) != len(want) {
		t.Fatalf("got lines %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}

	for _, line := range []string{"wifi_protocol b --2g g", "wifi_protocol -i mesh", "wifi_protocol x/y", "wifi_protocol 0x"} {
		if err := c.Exec(line); !errors.Is(err, errArgs) {
			t.Errorf("%q: got %v", line, err)
		}
	}
	if n := sim.Calls(wlansim.OpSetProtocols); n != 2 {
		t.Errorf("protocols set %d times", n)
	}
}
