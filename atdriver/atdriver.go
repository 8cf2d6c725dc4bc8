// Package atdriver implements wlan.Driver on an ESP32 running the ESP-AT
// firmware, reached through github.com/embeddedgo/espat.
//
// The firmware's own auto reconnect is disabled during bootstrap so
// reconnects are decided by the caller. Asynchronous "WIFI ..." reports are
// translated into driver events and delivered from a single goroutine.
package atdriver

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/embeddedgo/espat"
	"github.com/soypat/wificmd/wlan"
)

// Commander executes AT commands and reports asynchronous messages.
// *espat.Device implements it.
type Commander interface {
	Cmd(name string, args ...any) (any, error)
	CmdStr(name string, args ...any) (string, error)
	Async() <-chan string
}

// Resetter is implemented by commanders that can bring the module to a
// known state, such as *espat.Device.
type Resetter interface {
	Init(reset bool) error
}

var _ Commander = (*espat.Device)(nil)

// Config configures a Driver.
type Config struct {
	Logger *slog.Logger
	// Reset reboots the module during Bootstrap.
	Reset bool
	// Features reported to the manager. The ESP-AT firmware of the classic
	// ESP32 supports IPv6 only.
	Features wlan.Features
}

type event struct {
	base wlan.EventBase
	id   wlan.EventID
	data any
}

type handlerKey struct {
	base wlan.EventBase
	id   wlan.EventID
}

// Driver is a wlan.Driver over ESP-AT. Create with New and release with Close.
type Driver struct {
	dev      Commander
	logger   *slog.Logger
	reset    bool
	features wlan.Features

	mu         sync.Mutex
	handlers   map[handlerKey]wlan.Handler
	cfg        wlan.StationConfig
	mode       wlan.Mode
	started    bool
	associated bool // follows the WIFI CONNECTED and WIFI DISCONNECT reports
	leaving    bool // the next WIFI DISCONNECT was caused by this station
	scanList   []wlan.APRecord
	lastScan   []wlan.APRecord

	events chan event
	done   chan struct{}
	wg     sync.WaitGroup
}

var (
	_ wlan.Driver             = (*Driver)(nil)
	_ wlan.Bootstrapper       = (*Driver)(nil)
	_ wlan.CountrySetter      = (*Driver)(nil)
	_ wlan.CountryGetter      = (*Driver)(nil)
	_ wlan.ModeSetter         = (*Driver)(nil)
	_ wlan.ModeGetter         = (*Driver)(nil)
	_ wlan.ProtocolSetter     = (*Driver)(nil)
	_ wlan.ProtocolGetter     = (*Driver)(nil)
	_ wlan.Rebooter           = (*Driver)(nil)
	_ wlan.HardwareAddrGetter = (*Driver)(nil)
	_ wlan.FeatureReporter    = (*Driver)(nil)
)

// New returns a driver issuing commands through dev and starts its event
// goroutine.
func New(dev Commander, cfg Config) *Driver {
	d := &Driver{
		dev:      dev,
		logger:   cfg.Logger,
		reset:    cfg.Reset,
		features: cfg.Features & wlan.FeatureIPv6,
		handlers: make(map[handlerKey]wlan.Handler),
		mode:     wlan.ModeSTA,
		events:   make(chan event, 8),
		done:     make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

// Close stops event delivery and waits for pending commands issued in the
// background.
func (d *Driver) Close() error {
	close(d.done)
	d.wg.Wait()
	return nil
}

func (d *Driver) cmd(name string, args ...any) error {
	d.debug("at:cmd", slog.String("cmd", name))
	_, err := d.dev.Cmd(name, args...)
	if err != nil {
		d.logerr("at:cmd", slog.String("cmd", name), slog.String("err", err.Error()))
	}
	return atError(err)
}

// Bootstrap resets the module if configured, disables the firmware auto
// reconnect and enables IPv6 when requested.
func (d *Driver) Bootstrap() error {
	if r, ok := d.dev.(Resetter); ok {
		if err := r.Init(d.reset); err != nil {
			return atError(err)
		}
	}
	if err := d.cmd("+CWRECONNCFG=", 0, 0); err != nil {
		return err
	}
	if d.features.Has(wlan.FeatureIPv6) {
		return d.cmd("+CIPV6=", 1)
	}
	return nil
}

func (d *Driver) Init(cfg wlan.InitConfig) error {
	store := 0
	if cfg.NVSEnable {
		store = 1
	}
	if err := d.cmd("+SYSSTORE=", store); err != nil {
		return err
	}
	return d.cmd("+CWINIT=", 1)
}

func (d *Driver) Deinit() error { return d.cmd("+CWINIT=", 0) }

func (d *Driver) Start() error {
	d.mu.Lock()
	mode := d.mode
	d.mu.Unlock()
	if err := d.cmd("+CWMODE=", int(mode)); err != nil {
		return err
	}
	d.mu.Lock()
	d.started = true
	d.mu.Unlock()
	return nil
}

func (d *Driver) Stop() error {
	d.mu.Lock()
	d.leaving = d.leaving || d.associated
	d.mu.Unlock()
	if err := d.cmd("+CWMODE=", 0); err != nil {
		return err
	}
	d.mu.Lock()
	d.started = false
	d.mu.Unlock()
	return nil
}

func (d *Driver) Restore() error { return d.cmd("+RESTORE") }

func (d *Driver) Reboot() error { return d.cmd("+RST") }

func (d *Driver) SetMode(m wlan.Mode) error {
	if m > wlan.ModeAPSTA {
		return wlan.ErrInvalidArg
	}
	d.mu.Lock()
	d.mode = m
	started := d.started
	d.mu.Unlock()
	if !started {
		return nil
	}
	return d.cmd("+CWMODE=", int(m))
}

// Mode returns the mode applied on Start. The firmware reports mode 0 while
// stopped.
func (d *Driver) Mode() (wlan.Mode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode, nil
}

// SetCountry issues AT+CWCOUNTRY. The firmware always takes a channel range,
// so a bare code is sent with the default range.
func (d *Driver) SetCountry(c wlan.Country) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.NumChan == 0 {
		c.StartChan, c.NumChan = wlan.DefaultStartChan, wlan.DefaultNumChan
	}
	policy := 0
	if c.Manual {
		policy = 1
	}
	return d.cmd("+CWCOUNTRY=", policy, c.Code, int(c.StartChan), int(c.NumChan))
}

func (d *Driver) Country() (wlan.Country, error) {
	s, err := d.dev.CmdStr("+CWCOUNTRY?")
	if err != nil {
		return wlan.Country{}, atError(err)
	}
	return parseCountry(s)
}

// SetProtocols issues AT+CWSTAPROTO or AT+CWAPPROTO. The firmware has no
// 5GHz radio.
func (d *Driver) SetProtocols(ifx wlan.Interface, p wlan.Protocols) error {
	name, err := protoCmd(ifx)
	if err != nil {
		return err
	}
	if p.GHz5 != 0 {
		return wlan.ErrNotSupported
	}
	if p.GHz2 == 0 {
		return nil
	}
	return d.cmd(name+"=", int(p.GHz2))
}

func (d *Driver) Protocols(ifx wlan.Interface) (wlan.Protocols, error) {
	name, err := protoCmd(ifx)
	if err != nil {
		return wlan.Protocols{}, err
	}
	s, err := d.dev.CmdStr(name + "?")
	if err != nil {
		return wlan.Protocols{}, atError(err)
	}
	p, err := parseProtocol(name, s)
	return wlan.Protocols{GHz2: p}, err
}

func protoCmd(ifx wlan.Interface) (string, error) {
	switch ifx {
	case wlan.IfaceSTA:
		return "+CWSTAPROTO", nil
	case wlan.IfaceAP:
		return "+CWAPPROTO", nil
	}
	return "", wlan.ErrWiFiIf
}

func (d *Driver) SetStationConfig(cfg wlan.StationConfig) error {
	if len(cfg.SSID) > 32 {
		return wlan.ErrWiFiSSID
	}
	if len(cfg.Password) > 64 {
		return wlan.ErrWiFiPassword
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	return nil
}

// Connect issues AT+CWJAP in the background. The firmware reports success
// asynchronously; a failed join is delivered as a disconnect event. Joining
// while associated makes the firmware drop the current AP first, which is
// reported as a local leave.
func (d *Driver) Connect() error {
	d.mu.Lock()
	cfg := d.cfg
	started := d.started
	d.mu.Unlock()
	if !started {
		return wlan.ErrWiFiNotStarted
	}
	if cfg.SSID == "" {
		return wlan.ErrWiFiSSID
	}
	d.mu.Lock()
	// Without an association no WIFI DISCONNECT is pending, so a stale mark
	// from a leave that produced no report is dropped here.
	d.leaving = d.associated
	d.mu.Unlock()
	args := []any{cfg.SSID, cfg.Password}
	if cfg.BSSIDSet {
		args = append(args, cfg.BSSID.String())
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_, err := d.dev.Cmd("+CWJAP=", args...)
		if err == nil {
			return
		}
		reason := joinReason(err)
		d.warn("at:join-failed", slog.String("ssid", cfg.SSID), slog.String("reason", reason.String()))
		d.post(wlan.BaseWiFi, wlan.EventSTADisconnected, &wlan.STADisconnected{
			SSID:   cfg.SSID,
			BSSID:  cfg.BSSID,
			Reason: reason,
		})
	}()
	return nil
}

func (d *Driver) Disconnect() error {
	d.mu.Lock()
	d.leaving = d.leaving || d.associated
	d.mu.Unlock()
	return d.cmd("+CWQAP")
}

// StartScan issues AT+CWLAP in the background and reports completion
// through EventScanDone.
func (d *Driver) StartScan(cfg wlan.ScanConfig) error {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if !started {
		return wlan.ErrWiFiNotStarted
	}
	name, args := scanCmd(cfg)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		resp, err := d.dev.CmdStr(name, args...)
		status := uint32(0)
		var recs []wlan.APRecord
		if err == nil {
			recs, err = parseCWLAP(resp)
		}
		if err != nil {
			d.logerr("at:scan", slog.String("err", err.Error()))
			status = 1
		}
		if !cfg.ShowHidden {
			n := 0
			for _, r := range recs {
				if r.SSID != "" {
					recs[n] = r
					n++
				}
			}
			recs = recs[:n]
		}
		d.mu.Lock()
		d.scanList = recs
		d.lastScan = append(d.lastScan[:0], recs...)
		d.mu.Unlock()
		d.post(wlan.BaseWiFi, wlan.EventScanDone, &wlan.ScanDone{
			Status: status,
			Number: uint8(min(len(recs), 255)),
		})
	}()
	return nil
}

// scanCmd builds AT+CWLAP[=<ssid>,<mac>,<channel>,<scan_type>,<min>,<max>].
func scanCmd(cfg wlan.ScanConfig) (string, []any) {
	if cfg.SSID == "" && cfg.BSSID.IsZero() && cfg.Channel == 0 && !cfg.Passive &&
		cfg.Time == (wlan.ScanTime{}) {
		return "+CWLAP", nil
	}
	args := make([]any, 6)
	if cfg.SSID != "" {
		args[0] = cfg.SSID
	}
	if !cfg.BSSID.IsZero() {
		args[1] = cfg.BSSID.String()
	}
	if cfg.Channel != 0 {
		args[2] = int(cfg.Channel)
	}
	if cfg.Passive {
		args[3] = 1
		if cfg.Time.Passive != 0 {
			args[5] = int(cfg.Time.Passive)
		}
	} else {
		args[3] = 0
		if cfg.Time.ActiveMin != 0 {
			args[4] = int(cfg.Time.ActiveMin)
		}
		if cfg.Time.ActiveMax != 0 {
			args[5] = int(cfg.Time.ActiveMax)
		}
	}
	for len(args) > 0 && args[len(args)-1] == nil {
		args = args[:len(args)-1]
	}
	return "+CWLAP=", args
}

func (d *Driver) ScanAPCount() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.scanList), nil
}

func (d *Driver) ScanRecords(dst []wlan.APRecord) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := copy(dst, d.scanList)
	d.scanList = nil
	return n, nil
}

func (d *Driver) ClearAPList() error {
	d.mu.Lock()
	d.scanList = nil
	d.mu.Unlock()
	return nil
}

func (d *Driver) RegisterHandler(base wlan.EventBase, id wlan.EventID, h wlan.Handler) error {
	if h == nil {
		return wlan.ErrInvalidArg
	}
	d.mu.Lock()
	d.handlers[handlerKey{base, id}] = h
	d.mu.Unlock()
	return nil
}

func (d *Driver) UnregisterHandler(base wlan.EventBase, id wlan.EventID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := handlerKey{base, id}
	if _, ok := d.handlers[key]; !ok {
		return wlan.ErrNotFound
	}
	delete(d.handlers, key)
	return nil
}

func (d *Driver) HardwareAddr() (wlan.MAC, error) {
	s, err := d.dev.CmdStr("+CIPSTAMAC?")
	if err != nil {
		return wlan.MAC{}, atError(err)
	}
	return parseStationMAC(s)
}

func (d *Driver) Features() wlan.Features { return d.features }

func (d *Driver) post(base wlan.EventBase, id wlan.EventID, data any) {
	select {
	case d.events <- event{base, id, data}:
	case <-d.done:
	}
}

func (d *Driver) loop() {
	defer d.wg.Done()
	async := d.dev.Async()
	for {
		select {
		case <-d.done:
			return
		case msg := <-async:
			d.handleAsync(msg)
		case ev := <-d.events:
			d.deliver(ev.base, ev.id, ev.data)
		}
	}
}

func (d *Driver) deliver(base wlan.EventBase, id wlan.EventID, data any) {
	d.mu.Lock()
	h := d.handlers[handlerKey{base, id}]
	d.mu.Unlock()
	if h == nil {
		return
	}
	d.trace("at:deliver", slog.String("event", wlan.EventName(base, id)))
	h(base, id, data)
}

// handleAsync translates an active message report of the firmware.
func (d *Driver) handleAsync(msg string) {
	d.trace("at:async", slog.String("msg", msg))
	switch {
	case msg == "":
		d.warn("at:async-overrun")
	case msg == "WIFI CONNECTED":
		d.mu.Lock()
		d.associated = true
		cfg := d.cfg
		auth := d.authOfLocked(cfg.SSID)
		d.mu.Unlock()
		d.deliver(wlan.BaseWiFi, wlan.EventSTAConnected, &wlan.STAConnected{
			SSID:     cfg.SSID,
			BSSID:    cfg.BSSID,
			Channel:  cfg.Channel,
			AuthMode: auth,
		})
	case msg == "WIFI DISCONNECT":
		d.mu.Lock()
		cfg := d.cfg
		reason := wlan.ReasonUnspecified
		if d.leaving {
			reason = wlan.ReasonAssocLeave
			d.leaving = false
		}
		d.associated = false
		d.mu.Unlock()
		d.deliver(wlan.BaseWiFi, wlan.EventSTADisconnected, &wlan.STADisconnected{
			SSID:   cfg.SSID,
			BSSID:  cfg.BSSID,
			Reason: reason,
		})
	case msg == "WIFI GOT IP":
		sa, err := d.stationAddrs()
		if err != nil {
			return
		}
		d.deliver(wlan.BaseIP, wlan.EventSTAGotIP, &wlan.GotIP{
			Interface: "sta",
			IP:        sa.IP,
			Netmask:   sa.Netmask,
			Gateway:   sa.Gateway,
			Changed:   true,
		})
	case strings.HasPrefix(msg, "WIFI GOT IPv6 "):
		sa, err := d.stationAddrs()
		if err != nil {
			return
		}
		ip := sa.IP6LL
		if strings.HasSuffix(msg, "GL") {
			ip = sa.IP6GL
		}
		d.deliver(wlan.BaseIP, wlan.EventGotIP6, &wlan.GotIP6{Interface: "sta", IP: ip})
	default:
		d.debug("at:async-ignored", slog.String("msg", msg))
	}
}

func (d *Driver) stationAddrs() (stationAddrs, error) {
	s, err := d.dev.CmdStr("+CIPSTA?")
	if err == nil {
		var sa stationAddrs
		sa, err = parseCIPSTA(s)
		if err == nil {
			return sa, nil
		}
	}
	d.logerr("at:cipsta", slog.String("err", err.Error()))
	return stationAddrs{}, err
}

// authOfLocked returns the auth mode of ssid seen in the last scan.
func (d *Driver) authOfLocked(ssid string) wlan.AuthMode {
	for i := range d.lastScan {
		if d.lastScan[i].SSID == ssid {
			return d.lastScan[i].Auth
		}
	}
	return d.cfg.Threshold.Auth
}

func (d *Driver) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if d.logger != nil && d.logger.Handler().Enabled(context.Background(), level) {
		d.logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}

func (d *Driver) logerr(msg string, attrs ...slog.Attr) { d.logattrs(slog.LevelError, msg, attrs...) }
func (d *Driver) warn(msg string, attrs ...slog.Attr)   { d.logattrs(slog.LevelWarn, msg, attrs...) }
func (d *Driver) debug(msg string, attrs ...slog.Attr)  { d.logattrs(slog.LevelDebug, msg, attrs...) }
func (d *Driver) trace(msg string, attrs ...slog.Attr)  { d.logattrs(slog.LevelDebug-1, msg, attrs...) }
