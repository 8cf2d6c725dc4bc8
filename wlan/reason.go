package wlan

import "strconv"

// Reason is an 802.11 or vendor disconnect reason code.
type Reason uint16

const (
	ReasonUnspecified           Reason = 1
	ReasonAuthExpire            Reason = 2
	ReasonAuthLeave             Reason = 3
	ReasonAssocExpire           Reason = 4
	ReasonAssocTooMany          Reason = 5
	ReasonNotAuthed             Reason = 6
	ReasonNotAssoced            Reason = 7
	ReasonAssocLeave            Reason = 8
	ReasonAssocNotAuthed        Reason = 9
	ReasonIEInvalid             Reason = 13
	ReasonMICFailure            Reason = 14
	Reason4WayHandshakeTimeout  Reason = 15
	ReasonGroupKeyUpdateTimeout Reason = 16
	Reason8021XAuthFailed       Reason = 23
	ReasonBeaconTimeout         Reason = 200
	ReasonNoAPFound             Reason = 201
	ReasonAuthFail              Reason = 202
	ReasonAssocFail             Reason = 203
	ReasonHandshakeTimeout      Reason = 204
	ReasonConnectionFail        Reason = 205
	ReasonAPTSFReset            Reason = 206
	ReasonRoaming               Reason = 207
)

// IsLocalLeave reports whether the disconnect was initiated by this station,
// for example when a new connect supersedes the current association.
func (r Reason) IsLocalLeave() bool { return r == ReasonAssocLeave }

func (r Reason) String() string {
	switch r {
	case ReasonUnspecified:
		return "UNSPECIFIED"
	case ReasonAuthExpire:
		return "AUTH_EXPIRE"
	case ReasonAuthLeave:
		return "AUTH_LEAVE"
	case ReasonAssocExpire:
		return "ASSOC_EXPIRE"
	case ReasonAssocTooMany:
		return "ASSOC_TOOMANY"
	case ReasonNotAuthed:
		return "NOT_AUTHED"
	case ReasonNotAssoced:
		return "NOT_ASSOCED"
	case ReasonAssocLeave:
		return "ASSOC_LEAVE"
	case ReasonAssocNotAuthed:
		return "ASSOC_NOT_AUTHED"
	case ReasonIEInvalid:
		return "IE_INVALID"
	case ReasonMICFailure:
		return "MIC_FAILURE"
	case Reason4WayHandshakeTimeout:
		return "4WAY_HANDSHAKE_TIMEOUT"
	case ReasonGroupKeyUpdateTimeout:
		return "GROUP_KEY_UPDATE_TIMEOUT"
	case Reason8021XAuthFailed:
		return "802_1X_AUTH_FAILED"
	case ReasonBeaconTimeout:
		return "BEACON_TIMEOUT"
	case ReasonNoAPFound:
		return "NO_AP_FOUND"
	case ReasonAuthFail:
		return "AUTH_FAIL"
	case ReasonAssocFail:
		return "ASSOC_FAIL"
	case ReasonHandshakeTimeout:
		return "HANDSHAKE_TIMEOUT"
	case ReasonConnectionFail:
		return "CONNECTION_FAIL"
	case ReasonAPTSFReset:
		return "AP_TSF_RESET"
	case ReasonRoaming:
		return "ROAMING"
	}
	return "REASON_" + strconv.Itoa(int(r))
}
