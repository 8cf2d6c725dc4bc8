package wlan

// Interface selects the station or the softAP side of the driver.
type Interface uint8

const (
	IfaceSTA Interface = iota
	IfaceAP
)

// ParseInterface converts "sta" or "ap" to its interface.
func ParseInterface(s string) (Interface, error) {
	switch s {
	case "sta":
		return IfaceSTA, nil
	case "ap":
		return IfaceAP, nil
	}
	return 0, ErrInvalidArg
}

func (ifx Interface) String() string {
	switch ifx {
	case IfaceSTA:
		return "sta"
	case IfaceAP:
		return "ap"
	}
	return "unknown"
}

// Protocols holds the protocol bitmaps of each band.
type Protocols struct {
	GHz2 Protocol
	GHz5 Protocol
}

// Country is a regulatory domain setting.
type Country struct {
	// Code is the two letter country code, such as "US" or "01" for world safe.
	Code string
	// StartChan and NumChan bound the usable 2.4GHz channels. A zero NumChan
	// sets the code alone and keeps the channel range the code implies.
	StartChan uint8
	NumChan   uint8
	// Manual keeps the setting when an AP advertises another country.
	Manual bool
}

// Default 2.4GHz channel range applied when only one bound is given.
const (
	DefaultStartChan = 1
	DefaultNumChan   = 13
)

// Validate checks the code length and the channel range.
func (c Country) Validate() error {
	if len(c.Code) != 2 {
		return ErrInvalidArg
	}
	if c.NumChan != 0 && (c.StartChan == 0 || int(c.StartChan)+int(c.NumChan)-1 > 14) {
		return ErrInvalidArg
	}
	return nil
}

// Policy returns "manual" or "auto".
func (c Country) Policy() string {
	if c.Manual {
		return "manual"
	}
	return "auto"
}
