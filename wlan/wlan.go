// Package wlan defines the vendor Wi-Fi driver surface consumed by wificmd:
// the Driver interface, event bases and identifiers, typed event payloads,
// disconnect reasons, error codes and presentation helpers for scan records.
package wlan

// EventBase groups event identifiers, as in the vendor event loop.
type EventBase uint8

const (
	// BaseWiFi carries driver events (connect, disconnect, scan...).
	BaseWiFi EventBase = iota + 1
	// BaseIP carries network interface address events.
	BaseIP
)

func (b EventBase) String() string {
	switch b {
	case BaseWiFi:
		return "WIFI_EVENT"
	case BaseIP:
		return "IP_EVENT"
	default:
		return "UNKNOWN_EVENT"
	}
}

// Handler receives an event with its payload. Payload types are listed
// alongside the event identifiers. Handlers run on the driver's event
// goroutine and must not block.
type Handler func(base EventBase, id EventID, data any)

// Driver is the vendor Wi-Fi driver. Implementations must deliver events
// to registered handlers serially, never two at a time.
type Driver interface {
	// Init initializes the driver with cfg. Calling Init twice without Deinit
	// in between is a driver error.
	Init(cfg InitConfig) error
	Deinit() error
	Start() error
	Stop() error
	// Restore resets persisted driver configuration to factory defaults.
	Restore() error
	// SetStationConfig stores the association parameters used by Connect.
	SetStationConfig(cfg StationConfig) error
	// Connect starts an association with the stored station config. It does
	// not wait for the association to complete.
	Connect() error
	Disconnect() error
	// StartScan starts a scan and returns without waiting for it. Completion
	// is signaled by EventScanDone.
	StartScan(cfg ScanConfig) error
	// ScanAPCount returns the number of access points found by the last scan.
	ScanAPCount() (int, error)
	// ScanRecords copies up to len(dst) records from the last scan into dst
	// and frees the driver's list.
	ScanRecords(dst []APRecord) (int, error)
	// ClearAPList frees the driver's list of scan results.
	ClearAPList() error
	RegisterHandler(base EventBase, id EventID, h Handler) error
	UnregisterHandler(base EventBase, id EventID) error
}

// Bootstrapper is implemented by drivers that need one-time network
// interface and event loop setup before the first Init.
type Bootstrapper interface {
	Bootstrap() error
}

// CountrySetter is implemented by drivers that support setting the
// regulatory country.
type CountrySetter interface {
	SetCountry(c Country) error
}

// CountryGetter is implemented by drivers that report the regulatory country
// in effect.
type CountryGetter interface {
	Country() (Country, error)
}

// ModeSetter is implemented by drivers with selectable operating mode.
type ModeSetter interface {
	SetMode(m Mode) error
}

// ModeGetter is implemented by drivers that report their operating mode.
type ModeGetter interface {
	Mode() (Mode, error)
}

// ProtocolSetter is implemented by drivers that restrict the 802.11
// protocols an interface uses. A zero band in p keeps that band unchanged.
type ProtocolSetter interface {
	SetProtocols(ifx Interface, p Protocols) error
}

// ProtocolGetter is implemented by drivers that report the protocols enabled
// on an interface.
type ProtocolGetter interface {
	Protocols(ifx Interface) (Protocols, error)
}

// PMFDisabler is implemented by drivers that can drop the protected
// management frame capability from the stored station config.
type PMFDisabler interface {
	DisablePMF() error
}

// Rebooter is implemented by drivers that can restart the chip.
type Rebooter interface {
	Reboot() error
}

// LinkLocalCreator is implemented by drivers that generate an IPv6
// link-local address on request.
type LinkLocalCreator interface {
	CreateIPv6LinkLocal() error
}

// HardwareAddrGetter is implemented by drivers that can report the station MAC.
type HardwareAddrGetter interface {
	HardwareAddr() (MAC, error)
}

// FeatureReporter is implemented by drivers that know their platform features.
type FeatureReporter interface {
	Features() Features
}

// Mode is the driver operating mode.
type Mode uint8

const (
	ModeNull Mode = iota
	ModeSTA
	ModeAP
	ModeAPSTA
)

var modeNames = [...]string{"null", "sta", "ap", "apsta"}

// ParseMode converts a console mode name such as "apsta" to its mode.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return 0, ErrInvalidArg
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// Features is a bitfield of platform capabilities.
type Features uint32

const (
	FeatureIPv6 Features = 1 << iota
	// FeatureHE is 802.11ax (high efficiency) support.
	FeatureHE
	// FeatureITWT is individual target wake time negotiation. Requires FeatureHE.
	FeatureITWT
	// Feature5G is 5GHz band support.
	Feature5G
)

// Has reports whether all features in want are set.
func (f Features) Has(want Features) bool { return f&want == want }

func (f Features) String() string {
	if f == 0 {
		return "none"
	}
	var s string
	add := func(bit Features, name string) {
		if f&bit == 0 {
			return
		}
		if s != "" {
			s += "|"
		}
		s += name
	}
	add(FeatureIPv6, "ipv6")
	add(FeatureHE, "he")
	add(FeatureITWT, "itwt")
	add(Feature5G, "5g")
	return s
}
