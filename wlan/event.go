package wlan

import "net/netip"

// EventID identifies an event within its EventBase.
type EventID int32

// Wi-Fi events (BaseWiFi). Values follow the vendor enumeration.
const (
	EventWiFiReady         EventID = 0
	EventScanDone          EventID = 1 // *ScanDone
	EventSTAStart          EventID = 2
	EventSTAStop           EventID = 3
	EventSTAConnected      EventID = 4 // *STAConnected
	EventSTADisconnected   EventID = 5 // *STADisconnected
	EventAPStart           EventID = 12
	EventAPStop            EventID = 13
	EventAPSTAConnected    EventID = 14
	EventAPSTADisconnected EventID = 15 // *APSTADisconnected
	EventSTABeaconTimeout  EventID = 21 // nil
	EventITWTSetup         EventID = 38 // *ITWTSetup
	EventITWTTeardown      EventID = 39 // *ITWTTeardown
	EventITWTProbe         EventID = 40 // *ITWTProbe
	EventITWTSuspend       EventID = 41 // *ITWTSuspend
)

// IP events (BaseIP).
const (
	EventSTAGotIP  EventID = 0 // *GotIP
	EventSTALostIP EventID = 1
	EventGotIP6    EventID = 3 // *GotIP6
)

// EventName returns the vendor name of the event.
func EventName(base EventBase, id EventID) string {
	if base == BaseIP {
		switch id {
		case EventSTAGotIP:
			return "IP_EVENT_STA_GOT_IP"
		case EventSTALostIP:
			return "IP_EVENT_STA_LOST_IP"
		case EventGotIP6:
			return "IP_EVENT_GOT_IP6"
		}
		return "IP_EVENT_UNKNOWN"
	}
	switch id {
	case EventWiFiReady:
		return "WIFI_EVENT_WIFI_READY"
	case EventScanDone:
		return "WIFI_EVENT_SCAN_DONE"
	case EventSTAStart:
		return "WIFI_EVENT_STA_START"
	case EventSTAStop:
		return "WIFI_EVENT_STA_STOP"
	case EventSTAConnected:
		return "WIFI_EVENT_STA_CONNECTED"
	case EventSTADisconnected:
		return "WIFI_EVENT_STA_DISCONNECTED"
	case EventAPStart:
		return "WIFI_EVENT_AP_START"
	case EventAPStop:
		return "WIFI_EVENT_AP_STOP"
	case EventAPSTAConnected:
		return "WIFI_EVENT_AP_STACONNECTED"
	case EventAPSTADisconnected:
		return "WIFI_EVENT_AP_STADISCONNECTED"
	case EventSTABeaconTimeout:
		return "WIFI_EVENT_STA_BEACON_TIMEOUT"
	case EventITWTSetup:
		return "WIFI_EVENT_ITWT_SETUP"
	case EventITWTTeardown:
		return "WIFI_EVENT_ITWT_TEARDOWN"
	case EventITWTProbe:
		return "WIFI_EVENT_ITWT_PROBE"
	case EventITWTSuspend:
		return "WIFI_EVENT_ITWT_SUSPEND"
	}
	return "WIFI_EVENT_UNKNOWN"
}

// ScanDone is the payload of EventScanDone.
type ScanDone struct {
	// Status is zero on success.
	Status uint32
	Number uint8
	ScanID uint8
}

// STAConnected is the payload of EventSTAConnected.
type STAConnected struct {
	SSID     string
	BSSID    MAC
	Channel  uint8
	AuthMode AuthMode
	AID      uint16
}

// STADisconnected is the payload of EventSTADisconnected.
type STADisconnected struct {
	SSID   string
	BSSID  MAC
	Reason Reason
	RSSI   int8
}

// APSTADisconnected is the payload of EventAPSTADisconnected.
type APSTADisconnected struct {
	MAC    MAC
	AID    uint8
	Reason Reason
}

// GotIP is the payload of EventSTAGotIP.
type GotIP struct {
	// Interface is the network interface description, e.g. "sta".
	Interface string
	IP        netip.Addr
	Netmask   netip.Addr
	Gateway   netip.Addr
	Changed   bool
}

// IPv6AddrType classifies a received IPv6 address.
type IPv6AddrType int8

const (
	IPv6AddrUnknown IPv6AddrType = iota
	IPv6AddrGlobal
	IPv6AddrLinkLocal
	IPv6AddrSiteLocal
	IPv6AddrUniqueLocal
	IPv6AddrIPv4Mapped
)

// GotIP6 is the payload of EventGotIP6.
type GotIP6 struct {
	Interface string
	IP        netip.Addr
	Index     int
}

// AddrType classifies ev.IP the way the vendor network interface does.
func (ev *GotIP6) AddrType() IPv6AddrType {
	ip := ev.IP
	switch {
	case !ip.Is6():
		return IPv6AddrUnknown
	case ip.Is4In6():
		return IPv6AddrIPv4Mapped
	case ip.IsLinkLocalUnicast():
		return IPv6AddrLinkLocal
	case ip.IsPrivate():
		return IPv6AddrUniqueLocal
	}
	b := ip.As16()
	if b[0] == 0xfe && b[1]&0xc0 == 0xc0 {
		return IPv6AddrSiteLocal
	}
	if ip.IsGlobalUnicast() {
		return IPv6AddrGlobal
	}
	return IPv6AddrUnknown
}

// ITWT setup status codes reported in ITWTSetup.Status.
const (
	ITWTSetupSuccess = 1
	// Failure codes share the vendor error code space.
	ITWTSetupTimeout = int32(ErrTWTSetupTimeout)
	ITWTSetupTxFail  = int32(ErrTWTSetupTxFail)
	ITWTSetupReject  = int32(ErrTWTSetupReject)
)

// ITWTConfig describes a negotiated TWT agreement.
type ITWTConfig struct {
	SetupCmd         uint16
	Trigger          bool
	FlowType         uint8 // 0 announced, 1 unannounced
	FlowID           uint8
	TWTID            uint16
	WakeInvlExpn     uint8
	MinWakeDura      uint8
	WakeInvlMant     uint16
	WakeDurationUnit uint8 // 0: 256us, 1: TU (1024us)
}

// WakeDurationMicros returns the nominal wake duration.
func (c *ITWTConfig) WakeDurationMicros() uint32 {
	shift := 8
	if c.WakeDurationUnit == 1 {
		shift = 10
	}
	return uint32(c.MinWakeDura) << shift
}

// ServicePeriodMicros returns the wake interval: mantissa * 2^exponent.
func (c *ITWTConfig) ServicePeriodMicros() uint64 {
	return uint64(c.WakeInvlMant) << c.WakeInvlExpn
}

// ITWTSetup is the payload of EventITWTSetup.
type ITWTSetup struct {
	Config         ITWTConfig
	Status         int32
	Reason         uint8
	TargetWakeTime uint64
}

// ITWTTeardownStatus is the outcome of a teardown.
type ITWTTeardownStatus uint8

const (
	ITWTTeardownSuccess ITWTTeardownStatus = iota
	ITWTTeardownFail
)

// ITWTFlowAll is the flow id meaning every TWT agreement.
const ITWTFlowAll = 8

// ITWTTeardown is the payload of EventITWTTeardown.
type ITWTTeardown struct {
	FlowID uint8
	Status ITWTTeardownStatus
}

// ITWTSuspend is the payload of EventITWTSuspend.
type ITWTSuspend struct {
	Status              int32
	FlowIDBitmap        uint8
	ActualSuspendTimeMs [8]uint32
}

// ITWTProbeStatus is the outcome of a TWT probe.
type ITWTProbeStatus uint8

const (
	ITWTProbeFail ITWTProbeStatus = iota
	ITWTProbeSuccess
	ITWTProbeTimeout
	ITWTProbeSTADisconnected
)

func (s ITWTProbeStatus) String() string {
	switch s {
	case ITWTProbeFail:
		return "itwt probe fail"
	case ITWTProbeSuccess:
		return "itwt probe success"
	case ITWTProbeTimeout:
		return "itwt probe timeout"
	case ITWTProbeSTADisconnected:
		return "Sta disconnected"
	default:
		return "Unknown status"
	}
}

// ITWTProbe is the payload of EventITWTProbe.
type ITWTProbe struct {
	Status ITWTProbeStatus
	Reason uint8
}
