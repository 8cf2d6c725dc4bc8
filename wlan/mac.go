package wlan

import "net"

// MAC is a 48 bit hardware address.
type MAC [6]byte

// ParseMAC parses the colon separated form "aa:bb:cc:dd:ee:ff".
// Other forms accepted by net.ParseMAC, and any trailing characters,
// are rejected with ErrInvalidMAC.
func ParseMAC(s string) (MAC, error) {
	var mac MAC
	if len(s) != 17 {
		return mac, ErrInvalidMAC
	}
	for i := 0; i < 6; i++ {
		if i > 0 && s[3*i-1] != ':' {
			return mac, ErrInvalidMAC
		}
		hi, ok1 := fromHex(s[3*i])
		lo, ok2 := fromHex(s[3*i+1])
		if !ok1 || !ok2 {
			return mac, ErrInvalidMAC
		}
		mac[i] = hi<<4 | lo
	}
	return mac, nil
}

// IsZero reports whether m is the all zeros address.
func (m MAC) IsZero() bool { return m == MAC{} }

// HardwareAddr returns m as a net.HardwareAddr.
func (m MAC) HardwareAddr() net.HardwareAddr { return net.HardwareAddr(m[:]) }

func (m MAC) String() string {
	const hextable = "0123456789abcdef"
	var buf [17]byte
	for i, b := range m {
		if i > 0 {
			buf[3*i-1] = ':'
		}
		buf[3*i] = hextable[b>>4]
		buf[3*i+1] = hextable[b&0xf]
	}
	return string(buf[:])
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
