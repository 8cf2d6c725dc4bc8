package wlan

import "strconv"

// Error is a vendor driver error code. The zero value is not an error and
// is never returned as one.
type Error int32

// Vendor error codes.
const (
	ErrFail            Error = -1
	ErrNoMem           Error = 0x101
	ErrInvalidArg      Error = 0x102
	ErrInvalidState    Error = 0x103
	ErrInvalidSize     Error = 0x104
	ErrNotFound        Error = 0x105
	ErrNotSupported    Error = 0x106
	ErrTimeout         Error = 0x107
	ErrInvalidMAC      Error = 0x10b
	ErrWiFiNotInit     Error = 0x3001
	ErrWiFiNotStarted  Error = 0x3002
	ErrWiFiNotStopped  Error = 0x3003
	ErrWiFiIf          Error = 0x3004
	ErrWiFiMode        Error = 0x3005
	ErrWiFiState       Error = 0x3006
	ErrWiFiConn        Error = 0x3007
	ErrWiFiNVS         Error = 0x3008
	ErrWiFiMAC         Error = 0x3009
	ErrWiFiSSID        Error = 0x300a
	ErrWiFiPassword    Error = 0x300b
	ErrWiFiTimeout     Error = 0x300c
	ErrWiFiWakeFail    Error = 0x300d
	ErrWiFiWouldBlock  Error = 0x300e
	ErrWiFiNotConnect  Error = 0x300f
	ErrWiFiNotAssoc    Error = 0x3015
	ErrTWTFull         Error = 0x3017
	ErrTWTSetupTimeout Error = 0x3018
	ErrTWTSetupTxFail  Error = 0x3019
	ErrTWTSetupReject  Error = 0x301a
)

var errorNames = map[Error]string{
	ErrFail:            "ESP_FAIL",
	ErrNoMem:           "ESP_ERR_NO_MEM",
	ErrInvalidArg:      "ESP_ERR_INVALID_ARG",
	ErrInvalidState:    "ESP_ERR_INVALID_STATE",
	ErrInvalidSize:     "ESP_ERR_INVALID_SIZE",
	ErrNotFound:        "ESP_ERR_NOT_FOUND",
	ErrNotSupported:    "ESP_ERR_NOT_SUPPORTED",
	ErrTimeout:         "ESP_ERR_TIMEOUT",
	ErrInvalidMAC:      "ESP_ERR_INVALID_MAC",
	ErrWiFiNotInit:     "ESP_ERR_WIFI_NOT_INIT",
	ErrWiFiNotStarted:  "ESP_ERR_WIFI_NOT_STARTED",
	ErrWiFiNotStopped:  "ESP_ERR_WIFI_NOT_STOPPED",
	ErrWiFiIf:          "ESP_ERR_WIFI_IF",
	ErrWiFiMode:        "ESP_ERR_WIFI_MODE",
	ErrWiFiState:       "ESP_ERR_WIFI_STATE",
	ErrWiFiConn:        "ESP_ERR_WIFI_CONN",
	ErrWiFiNVS:         "ESP_ERR_WIFI_NVS",
	ErrWiFiMAC:         "ESP_ERR_WIFI_MAC",
	ErrWiFiSSID:        "ESP_ERR_WIFI_SSID",
	ErrWiFiPassword:    "ESP_ERR_WIFI_PASSWORD",
	ErrWiFiTimeout:     "ESP_ERR_WIFI_TIMEOUT",
	ErrWiFiWakeFail:    "ESP_ERR_WIFI_WAKE_FAIL",
	ErrWiFiWouldBlock:  "ESP_ERR_WIFI_WOULD_BLOCK",
	ErrWiFiNotConnect:  "ESP_ERR_WIFI_NOT_CONNECT",
	ErrWiFiNotAssoc:    "ESP_ERR_WIFI_NOT_ASSOC",
	ErrTWTFull:         "ESP_ERR_WIFI_TWT_FULL",
	ErrTWTSetupTimeout: "ESP_ERR_WIFI_TWT_SETUP_TIMEOUT",
	ErrTWTSetupTxFail:  "ESP_ERR_WIFI_TWT_SETUP_TXFAIL",
	ErrTWTSetupReject:  "ESP_ERR_WIFI_TWT_SETUP_REJECT",
}

// Name returns the vendor name of the code, as printed by status lines.
func (e Error) Name() string {
	if e == 0 {
		return "ESP_OK"
	}
	if name, ok := errorNames[e]; ok {
		return name
	}
	return "ERROR"
}

func (e Error) Error() string {
	name, ok := errorNames[e]
	if !ok {
		return "wlan: error 0x" + strconv.FormatInt(int64(e), 16)
	}
	return "wlan: " + name
}
