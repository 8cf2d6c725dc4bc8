// Package wlansim implements an in-process wlan.Driver backed by a scripted
// set of access points. Events are delivered serially from one goroutine.
package wlansim

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"sync"

	"github.com/soypat/wificmd/wlan"
)

var errClosed = errors.New("wlansim: closed")

// Op names a driver call for fault injection and call counting.
type Op uint8

const (
	OpBootstrap Op = iota
	OpInit
	OpDeinit
	OpStart
	OpStop
	OpRestore
	OpSetStationConfig
	OpConnect
	OpDisconnect
	OpStartScan
	OpScanRecords
	OpRegister
	OpUnregister
	OpSetMode
	OpSetCountry
	OpDisablePMF
	OpReboot
	OpSetProtocols
	numOps
)

// AP is a simulated access point.
type AP struct {
	Record wlan.APRecord
	// Password is checked against the station config. Empty for open APs.
	Password string
	// Hidden APs are reported by scans only when ShowHidden is set.
	Hidden bool
	// IP is the address handed to a station joining this AP.
	IP netip.Addr
	// IP6 is announced when the station creates its link-local address.
	IP6 netip.Addr
}

// Config configures a Sim.
type Config struct {
	Logger   *slog.Logger
	Features wlan.Features
	MAC      wlan.MAC
	APs      []AP
}

type event struct {
	base wlan.EventBase
	id   wlan.EventID
	data any
	done chan struct{}
}

type handlerKey struct {
	base wlan.EventBase
	id   wlan.EventID
}

// Sim is a simulated Wi-Fi driver. Create with New and release with Close.
type Sim struct {
	logger   *slog.Logger
	features wlan.Features
	mac      wlan.MAC

	mu        sync.Mutex
	aps       []AP
	handlers  map[handlerKey]wlan.Handler
	errs      [numOps]error
	calls     [numOps]int
	inited    bool
	started   bool
	mode      wlan.Mode
	country   wlan.Country
	protos    [2]wlan.Protocols
	cfg       wlan.StationConfig
	pmfOff    bool
	linked    *AP
	scanList  []wlan.APRecord
	initCfg   wlan.InitConfig
	queue     []event
	closed    bool
	wake      chan struct{}
	loopDone  chan struct{}
	scanCount uint8
}

var (
	_ wlan.Driver             = (*Sim)(nil)
	_ wlan.Bootstrapper       = (*Sim)(nil)
	_ wlan.CountrySetter      = (*Sim)(nil)
	_ wlan.CountryGetter      = (*Sim)(nil)
	_ wlan.ModeSetter         = (*Sim)(nil)
	_ wlan.ModeGetter         = (*Sim)(nil)
	_ wlan.ProtocolSetter     = (*Sim)(nil)
	_ wlan.ProtocolGetter     = (*Sim)(nil)
	_ wlan.PMFDisabler        = (*Sim)(nil)
	_ wlan.Rebooter           = (*Sim)(nil)
	_ wlan.LinkLocalCreator   = (*Sim)(nil)
	_ wlan.HardwareAddrGetter = (*Sim)(nil)
	_ wlan.FeatureReporter    = (*Sim)(nil)
)

// New returns a running simulator.
func New(cfg Config) *Sim {
	s := &Sim{
		logger:   cfg.Logger,
		features: cfg.Features,
		mac:      cfg.MAC,
		aps:      append([]AP(nil), cfg.APs...),
		handlers: make(map[handlerKey]wlan.Handler),
		country:  wlan.Country{Code: wlan.DefaultCountry, StartChan: 1, NumChan: 11},
		wake:     make(chan struct{}, 1),
		loopDone: make(chan struct{}),
	}
	s.resetProtocols()
	go s.loop()
	return s
}

// Close stops event delivery. Queued events are dropped.
func (s *Sim) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed
	}
	s.closed = true
	s.mu.Unlock()
	s.signal()
	<-s.loopDone
	return nil
}

// SetError makes every following call of op fail with err until cleared
// with a nil err.
func (s *Sim) SetError(op Op, err error) {
	s.mu.Lock()
	s.errs[op] = err
	s.mu.Unlock()
}

// Calls returns how many times op was called, failed calls included.
func (s *Sim) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Handlers returns the number of registered event handlers.
func (s *Sim) Handlers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// Registered reports whether a handler is registered for the event.
func (s *Sim) Registered(base wlan.EventBase, id wlan.EventID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handlers[handlerKey{base, id}]
	return ok
}

// StationConfig returns the last stored station config.
func (s *Sim) StationConfig() wlan.StationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// InitConfig returns the configuration of the last successful Init.
func (s *Sim) InitConfig() wlan.InitConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initCfg
}

// resetProtocols enables every protocol the simulated radio supports.
func (s *Sim) resetProtocols() {
	p := wlan.Protocols{GHz2: wlan.Protocol11B | wlan.Protocol11G | wlan.Protocol11N}
	if s.features.Has(wlan.Feature5G) {
		p.GHz5 = wlan.Protocol11A | wlan.Protocol11N | wlan.Protocol11AC
	}
	if s.features.Has(wlan.FeatureHE) {
		p.GHz2 |= wlan.Protocol11AX
		if p.GHz5 != 0 {
			p.GHz5 |= wlan.Protocol11AX
		}
	}
	s.protos = [2]wlan.Protocols{p, p}
}

// Linked returns the SSID of the AP the station is associated with.
func (s *Sim) Linked() (ssid string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linked == nil {
		return "", false
	}
	return s.linked.Record.SSID, true
}

// SetAPs replaces the simulated access points. An association with an AP
// no longer present is kept until DropLink.
func (s *Sim) SetAPs(aps []AP) {
	s.mu.Lock()
	s.aps = append(s.aps[:0], aps...)
	s.mu.Unlock()
}

// Inject queues an arbitrary event for delivery.
func (s *Sim) Inject(base wlan.EventBase, id wlan.EventID, data any) {
	s.mu.Lock()
	s.postLocked(base, id, data)
	s.mu.Unlock()
}

// DropLink ends the current association as if the AP went away, delivering
// a beacon timeout first when reason is wlan.ReasonBeaconTimeout.
func (s *Sim) DropLink(reason wlan.Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reason == wlan.ReasonBeaconTimeout {
		s.postLocked(wlan.BaseWiFi, wlan.EventSTABeaconTimeout, nil)
	}
	s.disconnectLocked(reason)
}

// Flush blocks until every event queued before the call was delivered.
// It must not be called from a handler.
func (s *Sim) Flush() {
	done := make(chan struct{})
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, event{done: done})
	s.mu.Unlock()
	s.signal()
	<-done
}

func (s *Sim) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Sim) postLocked(base wlan.EventBase, id wlan.EventID, data any) {
	s.queue = append(s.queue, event{base: base, id: id, data: data})
	s.signal()
}

func (s *Sim) loop() {
	defer close(s.loopDone)
	for range s.wake {
		for {
			s.mu.Lock()
			if s.closed {
				for _, ev := range s.queue {
					if ev.done != nil {
						close(ev.done)
					}
				}
				s.queue = nil
				s.mu.Unlock()
				return
			}
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue = s.queue[1:]
			h := s.handlers[handlerKey{ev.base, ev.id}]
			s.mu.Unlock()
			if ev.done != nil {
				close(ev.done)
				continue
			}
			if h == nil {
				s.trace("sim:drop", slog.String("event", wlan.EventName(ev.base, ev.id)))
				continue
			}
			s.trace("sim:deliver", slog.String("event", wlan.EventName(ev.base, ev.id)))
			h(ev.base, ev.id, ev.data)
		}
	}
}

// callLocked counts op and returns its injected error.
func (s *Sim) callLocked(op Op) error {
	s.calls[op]++
	return s.errs[op]
}

func (s *Sim) Bootstrap() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callLocked(OpBootstrap)
}

func (s *Sim) Init(cfg wlan.InitConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpInit); err != nil {
		return err
	}
	if s.inited {
		return wlan.ErrInvalidState
	}
	s.inited = true
	s.initCfg = cfg
	return nil
}

func (s *Sim) Deinit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpDeinit); err != nil {
		return err
	}
	if !s.inited {
		return wlan.ErrWiFiNotInit
	}
	if s.started {
		return wlan.ErrWiFiNotStopped
	}
	s.inited = false
	return nil
}

func (s *Sim) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpStart); err != nil {
		return err
	}
	if !s.inited {
		return wlan.ErrWiFiNotInit
	}
	if !s.started {
		s.started = true
		s.postLocked(wlan.BaseWiFi, wlan.EventSTAStart, nil)
	}
	return nil
}

func (s *Sim) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpStop); err != nil {
		return err
	}
	if !s.inited {
		return wlan.ErrWiFiNotInit
	}
	if s.linked != nil {
		s.disconnectLocked(wlan.ReasonAssocLeave)
	}
	if s.started {
		s.started = false
		s.postLocked(wlan.BaseWiFi, wlan.EventSTAStop, nil)
	}
	return nil
}

func (s *Sim) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpRestore); err != nil {
		return err
	}
	s.cfg = wlan.StationConfig{}
	s.pmfOff = false
	return nil
}

func (s *Sim) SetStationConfig(cfg wlan.StationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpSetStationConfig); err != nil {
		return err
	}
	if !s.inited {
		return wlan.ErrWiFiNotInit
	}
	if len(cfg.SSID) > 32 {
		return wlan.ErrWiFiSSID
	}
	if len(cfg.Password) > 64 {
		return wlan.ErrWiFiPassword
	}
	s.cfg = cfg
	s.pmfOff = false
	return nil
}

func (s *Sim) DisablePMF() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpDisablePMF); err != nil {
		return err
	}
	s.pmfOff = true
	return nil
}

// Connect joins the AP matching the stored config. The outcome is reported
// through events: connected and got-IP, or a disconnect with the reason.
func (s *Sim) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpConnect); err != nil {
		return err
	}
	if !s.inited {
		return wlan.ErrWiFiNotInit
	}
	if !s.started {
		return wlan.ErrWiFiNotStarted
	}
	if s.cfg.SSID == "" {
		return wlan.ErrWiFiSSID
	}
	if s.linked != nil {
		s.disconnectLocked(wlan.ReasonAssocLeave)
	}
	ap := s.findLocked()
	switch {
	case ap == nil:
		s.postDisconnectLocked(s.cfg.SSID, wlan.MAC{}, wlan.ReasonNoAPFound)
		return nil
	case ap.Password != s.cfg.Password:
		s.postDisconnectLocked(ap.Record.SSID, ap.Record.BSSID, wlan.Reason4WayHandshakeTimeout)
		return nil
	}
	s.linked = ap
	s.postLocked(wlan.BaseWiFi, wlan.EventSTAConnected, &wlan.STAConnected{
		SSID:     ap.Record.SSID,
		BSSID:    ap.Record.BSSID,
		Channel:  ap.Record.Primary,
		AuthMode: ap.Record.Auth,
		AID:      1,
	})
	if ap.IP.IsValid() {
		s.postLocked(wlan.BaseIP, wlan.EventSTAGotIP, &wlan.GotIP{
			Interface: "sta",
			IP:        ap.IP,
			Netmask:   netip.AddrFrom4([4]byte{255, 255, 255, 0}),
			Changed:   true,
		})
	}
	return nil
}

// findLocked returns the AP the stored config selects, honoring the BSSID,
// channel and threshold filters.
func (s *Sim) findLocked() *AP {
	var best *AP
	for i := range s.aps {
		ap := &s.aps[i]
		r := &ap.Record
		switch {
		case r.SSID != s.cfg.SSID,
			s.cfg.BSSIDSet && r.BSSID != s.cfg.BSSID,
			s.cfg.Channel != 0 && r.Primary != s.cfg.Channel,
			r.Auth < s.cfg.Threshold.Auth,
			s.cfg.Threshold.RSSI != 0 && r.RSSI < s.cfg.Threshold.RSSI:
			continue
		}
		if s.cfg.ScanMethod == wlan.ScanFast {
			return ap
		}
		if best == nil || betterAP(r, &best.Record, s.cfg.SortMethod) {
			best = ap
		}
	}
	return best
}

func betterAP(a, b *wlan.APRecord, sort wlan.SortMethod) bool {
	if sort == wlan.SortBySecurity && a.Auth != b.Auth {
		return a.Auth > b.Auth
	}
	return a.RSSI > b.RSSI
}

func (s *Sim) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpDisconnect); err != nil {
		return err
	}
	if !s.inited {
		return wlan.ErrWiFiNotInit
	}
	if !s.started {
		return wlan.ErrWiFiNotStarted
	}
	s.disconnectLocked(wlan.ReasonAssocLeave)
	return nil
}

func (s *Sim) disconnectLocked(reason wlan.Reason) {
	var (
		ssid  = s.cfg.SSID
		bssid wlan.MAC
	)
	if s.linked != nil {
		ssid, bssid = s.linked.Record.SSID, s.linked.Record.BSSID
	}
	s.linked = nil
	s.postDisconnectLocked(ssid, bssid, reason)
}

func (s *Sim) postDisconnectLocked(ssid string, bssid wlan.MAC, reason wlan.Reason) {
	s.postLocked(wlan.BaseWiFi, wlan.EventSTADisconnected, &wlan.STADisconnected{
		SSID:   ssid,
		BSSID:  bssid,
		Reason: reason,
	})
}

// StartScan collects the APs matching cfg and reports completion through
// EventScanDone.
func (s *Sim) StartScan(cfg wlan.ScanConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpStartScan); err != nil {
		return err
	}
	if !s.started {
		return wlan.ErrWiFiNotStarted
	}
	s.scanList = s.scanList[:0]
	for i := range s.aps {
		ap := &s.aps[i]
		r := &ap.Record
		switch {
		case ap.Hidden && !cfg.ShowHidden,
			cfg.SSID != "" && r.SSID != cfg.SSID,
			!cfg.BSSID.IsZero() && r.BSSID != cfg.BSSID,
			cfg.Channel != 0 && r.Primary != cfg.Channel:
			continue
		}
		rec := *r
		if ap.Hidden {
			rec.SSID = ""
		}
		s.scanList = append(s.scanList, rec)
	}
	s.scanCount++
	s.postLocked(wlan.BaseWiFi, wlan.EventScanDone, &wlan.ScanDone{
		Number: uint8(min(len(s.scanList), 255)),
		ScanID: s.scanCount,
	})
	return nil
}

func (s *Sim) ScanAPCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scanList), nil
}

func (s *Sim) ScanRecords(dst []wlan.APRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpScanRecords); err != nil {
		return 0, err
	}
	n := copy(dst, s.scanList)
	s.scanList = s.scanList[:0]
	return n, nil
}

func (s *Sim) ClearAPList() error {
	s.mu.Lock()
	s.scanList = s.scanList[:0]
	s.mu.Unlock()
	return nil
}

func (s *Sim) RegisterHandler(base wlan.EventBase, id wlan.EventID, h wlan.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpRegister); err != nil {
		return err
	}
	if h == nil {
		return wlan.ErrInvalidArg
	}
	s.handlers[handlerKey{base, id}] = h
	return nil
}

func (s *Sim) UnregisterHandler(base wlan.EventBase, id wlan.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpUnregister); err != nil {
		return err
	}
	key := handlerKey{base, id}
	if _, ok := s.handlers[key]; !ok {
		return wlan.ErrNotFound
	}
	delete(s.handlers, key)
	return nil
}

func (s *Sim) SetMode(m wlan.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpSetMode); err != nil {
		return err
	}
	if !s.inited {
		return wlan.ErrWiFiNotInit
	}
	if m > wlan.ModeAPSTA {
		return wlan.ErrInvalidArg
	}
	s.mode = m
	return nil
}

func (s *Sim) Mode() (wlan.Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inited {
		return 0, wlan.ErrWiFiNotInit
	}
	return s.mode, nil
}

// SetCountry stores c. A bare code keeps the channel range of the world safe
// domain.
func (s *Sim) SetCountry(c wlan.Country) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpSetCountry); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if c.NumChan == 0 {
		c.StartChan, c.NumChan = s.country.StartChan, s.country.NumChan
	}
	s.country = c
	return nil
}

func (s *Sim) Country() (wlan.Country, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.country, nil
}

func (s *Sim) SetProtocols(ifx wlan.Interface, p wlan.Protocols) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpSetProtocols); err != nil {
		return err
	}
	if !s.inited {
		return wlan.ErrWiFiNotInit
	}
	if ifx > wlan.IfaceAP {
		return wlan.ErrWiFiIf
	}
	if p.GHz5 != 0 && !s.features.Has(wlan.Feature5G) {
		return wlan.ErrNotSupported
	}
	if p.GHz2 != 0 {
		s.protos[ifx].GHz2 = p.GHz2
	}
	if p.GHz5 != 0 {
		s.protos[ifx].GHz5 = p.GHz5
	}
	return nil
}

func (s *Sim) Protocols(ifx wlan.Interface) (wlan.Protocols, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inited {
		return wlan.Protocols{}, wlan.ErrWiFiNotInit
	}
	if ifx > wlan.IfaceAP {
		return wlan.Protocols{}, wlan.ErrWiFiIf
	}
	return s.protos[ifx], nil
}

// Reboot resets the simulator to its power-on state, keeping the APs and
// the persisted station config.
func (s *Sim) Reboot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.callLocked(OpReboot); err != nil {
		return err
	}
	s.inited, s.started, s.linked = false, false, nil
	s.handlers = make(map[handlerKey]wlan.Handler)
	s.resetProtocols()
	return nil
}

func (s *Sim) CreateIPv6LinkLocal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linked == nil || !s.linked.IP6.IsValid() {
		return nil
	}
	s.postLocked(wlan.BaseIP, wlan.EventGotIP6, &wlan.GotIP6{
		Interface: "sta",
		IP:        s.linked.IP6,
	})
	return nil
}

func (s *Sim) HardwareAddr() (wlan.MAC, error) { return s.mac, nil }

func (s *Sim) Features() wlan.Features { return s.features }

func (s *Sim) trace(msg string, attrs ...slog.Attr) {
	if s.logger != nil {
		s.logger.LogAttrs(context.Background(), slog.LevelDebug-1, msg, attrs...)
	}
}
