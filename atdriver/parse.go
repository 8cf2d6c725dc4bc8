package atdriver

import (
	"errors"
	"net/netip"
	"strconv"
	"strings"

	"github.com/embeddedgo/espat"
	"github.com/soypat/wificmd/wlan"
)

var errParse = errors.New("atdriver: malformed response")

// splitFields splits a comma separated AT response payload. Quoted fields
// are unquoted and may contain commas and backslash escapes.
func splitFields(s string) ([]string, error) {
	var (
		fields []string
		sb     strings.Builder
		quoted bool
		inq    bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inq && c == '\\':
			i++
			if i == len(s) {
				return nil, errParse
			}
			sb.WriteByte(s[i])
		case c == '"':
			inq = !inq
			quoted = true
		case !inq && c == ',':
			fields = append(fields, sb.String())
			sb.Reset()
			quoted = false
		default:
			sb.WriteByte(c)
		}
	}
	if inq {
		return nil, errParse
	}
	if sb.Len() > 0 || quoted || len(fields) > 0 {
		fields = append(fields, sb.String())
	}
	return fields, nil
}

// parseCWLAP parses the response of AT+CWLAP. Each line has the form
//
//	+CWLAP:(<ecn>,<ssid>,<rssi>,<mac>,<channel>,<freq_offset>,<freqcal>,<pairwise>,<group>,<bgn>,<wps>)
//
// Only the leading fields are required.
func parseCWLAP(s string) ([]wlan.APRecord, error) {
	var recs []wlan.APRecord
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "+CWLAP:(")
		if !ok {
			continue
		}
		payload, ok = strings.CutSuffix(payload, ")")
		if !ok {
			return nil, errParse
		}
		f, err := splitFields(payload)
		if err != nil {
			return nil, err
		}
		if len(f) < 5 {
			return nil, errParse
		}
		ecn, err1 := strconv.Atoi(f[0])
		rssi, err2 := strconv.Atoi(f[2])
		mac, err3 := wlan.ParseMAC(f[3])
		ch, err4 := strconv.Atoi(f[4])
		if err := errors.Join(err1, err2, err3, err4); err != nil {
			return nil, errParse
		}
		rec := wlan.APRecord{
			Auth:      wlan.AuthMode(ecn),
			SSID:      f[1],
			RSSI:      int8(rssi),
			BSSID:     mac,
			Primary:   uint8(ch),
			Bandwidth: wlan.BW20,
		}
		if len(f) > 9 {
			bgn, err := strconv.Atoi(f[9])
			if err != nil {
				return nil, errParse
			}
			rec.Phy = wlan.PhySupport{
				B:  bgn&1 != 0,
				G:  bgn&2 != 0,
				N:  bgn&4 != 0,
				AX: bgn&8 != 0,
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// stationAddrs holds the addresses reported by AT+CIPSTA?.
type stationAddrs struct {
	IP, Gateway, Netmask netip.Addr
	IP6LL, IP6GL         netip.Addr
}

// parseCIPSTA parses lines of the form +CIPSTA:<key>:"<addr>".
func parseCIPSTA(s string) (stationAddrs, error) {
	var sa stationAddrs
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		payload, ok := strings.CutPrefix(line, "+CIPSTA:")
		if !ok {
			continue
		}
		key, val, ok := strings.Cut(payload, ":")
		if !ok {
			return sa, errParse
		}
		addr, err := netip.ParseAddr(strings.Trim(val, `"`))
		if err != nil {
			return sa, errParse
		}
		switch key {
		case "ip":
			sa.IP = addr
		case "gateway":
			sa.Gateway = addr
		case "netmask":
			sa.Netmask = addr
		case "ip6ll":
			sa.IP6LL = addr
		case "ip6gl":
			sa.IP6GL = addr
		}
	}
	return sa, nil
}

// parseStationMAC parses the response of AT+CIPSTAMAC?.
func parseStationMAC(s string) (wlan.MAC, error) {
	payload, ok := strings.CutPrefix(strings.TrimSpace(s), "+CIPSTAMAC:")
	if !ok {
		return wlan.MAC{}, errParse
	}
	return wlan.ParseMAC(strings.Trim(payload, `"`))
}

// parseCountry parses the response of AT+CWCOUNTRY?:
//
//	+CWCOUNTRY:<country_policy>,<country_code>,<start_channel>,<total_channel_count>
func parseCountry(s string) (wlan.Country, error) {
	payload, ok := strings.CutPrefix(strings.TrimSpace(s), "+CWCOUNTRY:")
	if !ok {
		return wlan.Country{}, errParse
	}
	f, err := splitFields(payload)
	if err != nil {
		return wlan.Country{}, err
	}
	if len(f) < 4 {
		return wlan.Country{}, errParse
	}
	policy, err1 := strconv.Atoi(f[0])
	schan, err2 := strconv.ParseUint(f[2], 10, 8)
	nchan, err3 := strconv.ParseUint(f[3], 10, 8)
	if err := errors.Join(err1, err2, err3); err != nil {
		return wlan.Country{}, errParse
	}
	return wlan.Country{
		Code:      f[1],
		StartChan: uint8(schan),
		NumChan:   uint8(nchan),
		Manual:    policy == 1,
	}, nil
}

// parseProtocol parses the response of AT+CWSTAPROTO? or AT+CWAPPROTO?,
// a single line "<name>:<protocol>".
func parseProtocol(name, s string) (wlan.Protocol, error) {
	payload, ok := strings.CutPrefix(strings.TrimSpace(s), name+":")
	if !ok {
		return 0, errParse
	}
	v, err := strconv.ParseUint(payload, 10, 32)
	if err != nil {
		return 0, errParse
	}
	return wlan.Protocol(v), nil
}

// joinReason maps the +CWJAP:<code> error of a failed join to the
// disconnect reason the vendor driver reports for the same failure.
func joinReason(err error) wlan.Reason {
	var esp *espat.ErrorESP
	if !errors.As(err, &esp) {
		if errors.Is(err, espat.ErrTimeout) {
			return wlan.ReasonHandshakeTimeout
		}
		return wlan.ReasonUnspecified
	}
	for _, line := range strings.Split(esp.Code, "\n") {
		code, ok := strings.CutPrefix(strings.TrimSpace(line), "+CWJAP:")
		if !ok {
			continue
		}
		switch code {
		case "1":
			return wlan.ReasonHandshakeTimeout
		case "2":
			return wlan.Reason4WayHandshakeTimeout
		case "3":
			return wlan.ReasonNoAPFound
		case "4":
			return wlan.ReasonConnectionFail
		}
	}
	return wlan.ReasonUnspecified
}

// atError attaches a vendor error code to an AT command failure.
func atError(err error) error {
	if err == nil {
		return nil
	}
	code := wlan.ErrFail
	if errors.Is(err, espat.ErrTimeout) {
		code = wlan.ErrTimeout
	}
	return &cmdError{code: code, err: err}
}

type cmdError struct {
	code wlan.Error
	err  error
}

func (e *cmdError) Error() string { return e.err.Error() + " (" + e.code.Name() + ")" }

func (e *cmdError) Unwrap() []error { return []error{e.code, e.err} }
