package wlan

import (
	"strconv"
	"strings"
)

// AuthMode is the authentication mode of an AP or a connect threshold.
type AuthMode uint8

const (
	AuthOpen AuthMode = iota
	AuthWEP
	AuthWPA
	AuthWPA2
	AuthWPAWPA2
	AuthWPA2Enterprise
	AuthWPA3
	AuthWPA2WPA3
	AuthWAPI
	AuthOWE
	AuthWPA3Ent192
	AuthWPA3ExtPSK
	AuthWPA3ExtPSKMixed
	AuthDPP
	AuthWPA3Enterprise
	AuthWPA2WPA3Enterprise
	AuthWPAEnterprise
)

var authNames = []struct {
	mode AuthMode
	name string
}{
	{AuthOpen, "open"},
	{AuthWEP, "wep"},
	{AuthWPA, "wpa"},
	{AuthWPA2, "wpa2"},
	{AuthWPAWPA2, "wpa_wpa2"},
	{AuthWPA2Enterprise, "wpa2_enterprise"},
	{AuthWPA3, "wpa3"},
	{AuthWPA2WPA3, "wpa2_wpa3"},
	{AuthWAPI, "wapi"},
	{AuthOWE, "owe"},
	{AuthWPA3Ent192, "wpa3_ent_192"},
	{AuthWPA3Enterprise, "wpa3_enterprise"},
	{AuthWPA2WPA3Enterprise, "wpa2_wpa3_enterprise"},
}

// ParseAuthMode converts a console auth name such as "wpa2_wpa3" to its mode.
func ParseAuthMode(s string) (AuthMode, error) {
	for _, a := range authNames {
		if a.name == s {
			return a.mode, nil
		}
	}
	return 0, ErrInvalidArg
}

// String returns the console name of the mode or "unknown".
func (a AuthMode) String() string {
	for _, an := range authNames {
		if an.mode == a {
			return an.name
		}
	}
	return "unknown"
}

// Protocol is a bitmask of 802.11 protocols.
type Protocol uint32

const (
	Protocol11B Protocol = 1 << iota
	Protocol11G
	Protocol11N
	ProtocolLR
	Protocol11AX
	Protocol11A
	Protocol11AC
)

var protocolNames = []struct {
	name  string
	proto Protocol
}{
	{"lr", ProtocolLR},
	{"b", Protocol11B},
	{"g", Protocol11G},
	{"n", Protocol11N},
	{"lr/b", ProtocolLR | Protocol11B},
	{"b/g", Protocol11B | Protocol11G},
	{"lr/b/g", ProtocolLR | Protocol11B | Protocol11G},
	{"b/g/n", Protocol11B | Protocol11G | Protocol11N},
	{"lr/b/g/n", ProtocolLR | Protocol11B | Protocol11G | Protocol11N},
	{"ax", Protocol11AX},
	{"b/g/n/ax", Protocol11B | Protocol11G | Protocol11N | Protocol11AX},
	{"lr/b/g/n/ax", ProtocolLR | Protocol11B | Protocol11G | Protocol11N | Protocol11AX},
	{"a", Protocol11A},
	{"ac", Protocol11AC},
	{"a/n", Protocol11A | Protocol11N},
	{"a/n/ac", Protocol11A | Protocol11N | Protocol11AC},
	{"a/n/ac/ax", Protocol11A | Protocol11N | Protocol11AC | Protocol11AX},
}

// ParseProtocol accepts a protocol name from the console ("b/g/n", "lr/ax")
// or a hexadecimal bitmap prefixed with "0x". A leading "lr/" is combined
// with any name that follows it.
func ParseProtocol(s string) (Protocol, error) {
	if hex, ok := strings.CutPrefix(s, "0x"); ok {
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil || hex == "" {
			return 0, ErrInvalidArg
		}
		return Protocol(v), nil
	}
	sub, hasLR := strings.CutPrefix(s, "lr/")
	for _, p := range protocolNames {
		if p.name == sub {
			if hasLR {
				return p.proto | ProtocolLR, nil
			}
			return p.proto, nil
		}
	}
	return 0, ErrInvalidArg
}

// String returns the console name of the exact bitmap or "unknown".
func (p Protocol) String() string {
	for _, pn := range protocolNames {
		if pn.proto == p {
			return pn.name
		}
	}
	return "unknown"
}

// PhySupport lists the PHY modes an AP advertises.
type PhySupport struct {
	B, G, N, LR bool
	A, AC, AX   bool
}

// Protocol returns the protocol bitmap equivalent of the PHY flags.
func (ps PhySupport) Protocol() Protocol {
	var p Protocol
	flags := [...]struct {
		ok bool
		p  Protocol
	}{
		{ps.B, Protocol11B},
		{ps.G, Protocol11G},
		{ps.N, Protocol11N},
		{ps.LR, ProtocolLR},
		{ps.A, Protocol11A},
		{ps.AC, Protocol11AC},
		{ps.AX, Protocol11AX},
	}
	for _, f := range flags {
		if f.ok {
			p |= f.p
		}
	}
	return p
}

// PhySupportFromProtocol is the inverse of PhySupport.Protocol. Unknown bits
// are ignored.
func PhySupportFromProtocol(p Protocol) PhySupport {
	return PhySupport{
		B:  p&Protocol11B != 0,
		G:  p&Protocol11G != 0,
		N:  p&Protocol11N != 0,
		LR: p&ProtocolLR != 0,
		A:  p&Protocol11A != 0,
		AC: p&Protocol11AC != 0,
		AX: p&Protocol11AX != 0,
	}
}

// Bandwidth is a channel bandwidth.
type Bandwidth uint8

const (
	BW20 Bandwidth = iota + 1
	BW40
	BW80
	BW160
	BW80Plus80
)

func (bw Bandwidth) String() string {
	switch bw {
	case BW20:
		return "20MHz"
	case BW40:
		return "40MHz"
	case BW80:
		return "80MHz"
	case BW160:
		return "160MHz"
	case BW80Plus80:
		return "80+80MHz"
	}
	return "unknown"
}
