package wlan

// PSType is the modem power save mode.
type PSType uint8

const (
	PSNone PSType = iota
	PSMinModem
	PSMaxModem
)

// Driver init defaults.
const (
	DefaultESPNowMaxEncrypt = 7
	DefaultCountry          = "01"
)

// InitConfig is the configuration snapshot handed to Driver.Init.
type InitConfig struct {
	// NVSEnable persists driver configuration to flash when set, otherwise
	// configuration lives in RAM and is lost on reboot.
	NVSEnable bool
	// ESPNowMaxEncrypt is the maximum number of encrypted ESP-NOW peers.
	ESPNowMaxEncrypt int
	// Country is the regulatory country code applied after the first
	// successful init. Empty leaves the driver default.
	Country        string
	PowerSave      PSType
	Disable11bRate bool
}

// DefaultInitConfig returns the driver's documented init defaults.
func DefaultInitConfig() InitConfig {
	return InitConfig{
		NVSEnable:        true,
		ESPNowMaxEncrypt: DefaultESPNowMaxEncrypt,
		PowerSave:        PSMinModem,
	}
}

// ScanMethod selects how the station looks for its AP when connecting.
type ScanMethod uint8

const (
	// ScanFast stops at the first matching AP.
	ScanFast ScanMethod = iota
	ScanAllChannel
)

// SortMethod orders candidate APs when ScanAllChannel finds several.
type SortMethod uint8

const (
	SortBySignal SortMethod = iota
	SortBySecurity
)

// Threshold filters candidate APs by weakest acceptable auth mode and signal.
type Threshold struct {
	Auth AuthMode
	RSSI int8
}

// PMFConfig configures protected management frames.
type PMFConfig struct {
	Capable  bool
	Required bool
}

// StationConfig holds the association parameters applied by SetStationConfig.
type StationConfig struct {
	SSID     string
	Password string
	BSSID    MAC
	// BSSIDSet restricts the association to BSSID.
	BSSIDSet          bool
	Channel           uint8
	ScanMethod        ScanMethod
	SortMethod        SortMethod
	Threshold         Threshold
	PMF               PMFConfig
	ListenInterval    uint16
	FailureRetry      uint8
	SAEPWE            uint8
	TransitionDisable bool
	RM                bool
	BTM               bool
	MBO               bool
	FT                bool
	OWE               bool
}

// ScanTime is the per channel dwell in milliseconds. Zero selects the
// driver default.
type ScanTime struct {
	ActiveMin uint32
	ActiveMax uint32
	Passive   uint32
}

// ScanConfig restricts and tunes a scan. The zero value scans every channel
// actively for every visible SSID.
type ScanConfig struct {
	SSID       string
	BSSID      MAC
	Channel    uint8
	ShowHidden bool
	Passive    bool
	Time       ScanTime
	// HomeChanDwell is the time in milliseconds spent on the home channel
	// between scanned channels while connected.
	HomeChanDwell uint8
	Bitmap2G      uint16
	Bitmap5G      uint32
}

// HEInfo is the 802.11ax specific part of an AP record.
type HEInfo struct {
	BSSIDIndex       uint8
	BSSColor         uint8
	BSSColorDisabled bool
}

// APRecord describes an access point found by a scan.
type APRecord struct {
	BSSID     MAC
	SSID      string
	RSSI      int8
	Auth      AuthMode
	Primary   uint8
	Second    SecondChan
	Phy       PhySupport
	Bandwidth Bandwidth
	// VHTFreq1 and VHTFreq2 are the center channel indices of 80 and
	// 160MHz (or 80+80MHz) channels.
	VHTFreq1 uint8
	VHTFreq2 uint8
	HE       HEInfo
}

// SecondChan is the position of the secondary channel of a 40MHz AP.
type SecondChan uint8

const (
	SecondNone SecondChan = iota
	SecondAbove
	SecondBelow
)
