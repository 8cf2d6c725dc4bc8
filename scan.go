package wificmd

import (
	"fmt"
	"log/slog"

	"github.com/soypat/wificmd/wlan"
)

// ScanInfoLevel selects what scan-done output includes. Bits combine.
type ScanInfoLevel uint8

const (
	// ScanCountOnly prints only the number of access points found.
	ScanCountOnly ScanInfoLevel = 0
	ScanBasic     ScanInfoLevel = 1 << 0
	ScanDetail    ScanInfoLevel = 1 << 1
	ScanAX        ScanInfoLevel = 1 << 2
)

// ScanLevel returns the level for the console's verbosity flags: no -v is
// basic, -v adds details and -vv adds 802.11ax info as well.
func ScanLevel(verbose int, countOnly, ax bool) ScanInfoLevel {
	if countOnly {
		return ScanCountOnly
	}
	level := ScanBasic
	switch {
	case verbose == 1:
		level |= ScanDetail
	case verbose >= 2:
		level |= ScanDetail | ScanAX
	}
	if ax {
		level |= ScanAX
	}
	return level
}

// Scan starts a scan with cfg and returns without waiting for the results,
// which are printed at level when the driver reports completion. A passive
// dwell time implies a passive scan; active dwell times conflict with it.
func (m *Manager) Scan(cfg wlan.ScanConfig, level ScanInfoLevel) error {
	if cfg.Time.Passive != 0 {
		cfg.Passive = true
	}
	if cfg.Passive && (cfg.Time.ActiveMin != 0 || cfg.Time.ActiveMax != 0) {
		return ErrScanTypeConflict
	}
	m.opmu.Lock()
	defer m.opmu.Unlock()
	m.mu.Lock()
	m.scanLevel = level
	m.mu.Unlock()
	m.debug("scan:start", slog.String("ssid", cfg.SSID), slog.Uint64("level", uint64(level)))
	return m.drv.StartScan(cfg)
}

func (m *Manager) onScanDone(wlan.EventBase, wlan.EventID, any) {
	n, err := m.drv.ScanAPCount()
	if err != nil {
		m.logerr("scan:count", errattr(err))
		return
	}
	if n == 0 {
		m.printf("SCAN_DONE: No AP found")
		return
	}
	m.mu.Lock()
	level := m.scanLevel
	m.mu.Unlock()
	if level == ScanCountOnly {
		m.printf("SCAN_DONE: Found %d APs", n)
		m.clearAPList()
		return
	}
	if n > m.maxScan {
		m.printf("SCAN_DONE: Failed to malloc buffer to print scan results")
		m.clearAPList()
		return
	}
	recs := make([]wlan.APRecord, n)
	got, err := m.drv.ScanRecords(recs)
	if err != nil {
		m.logerr("scan:records", errattr(err))
		m.clearAPList()
		return
	}
	var line []byte
	for i := range recs[:got] {
		line = appendRecord(line[:0], &recs[i], level, m.features)
		m.printf("%s", line)
	}
	m.printf("SCAN_DONE: Found %d APs", got)
}

func (m *Manager) clearAPList() {
	if err := m.drv.ClearAPList(); err != nil {
		m.warn("scan:clear", errattr(err))
	}
}

// appendRecord appends the +SCAN line describing r.
func appendRecord(b []byte, r *wlan.APRecord, level ScanInfoLevel, features wlan.Features) []byte {
	b = fmt.Appendf(b, "+SCAN:[%s][%s][rssi=%d][auth=%s][ch=%d]", r.BSSID, r.SSID, r.RSSI, r.Auth, r.Primary)
	proto := r.Phy.Protocol()
	if level&ScanDetail != 0 {
		b = fmt.Appendf(b, "[second=%d][proto=%s]", r.Second, proto)
		b = fmt.Appendf(b, "[cbw=%s]", r.Bandwidth)
		if features.Has(wlan.Feature5G) && r.Bandwidth >= wlan.BW80 {
			b = fmt.Appendf(b, "[vht_freq=%d/%d]", r.VHTFreq1, r.VHTFreq2)
		}
	}
	if level&ScanAX != 0 && features.Has(wlan.FeatureHE) {
		if proto&wlan.Protocol11AX == 0 {
			return append(b, "[non_he_ap]"...)
		}
		state := "enabled"
		if r.HE.BSSColorDisabled {
			state = "disabled"
		}
		b = fmt.Appendf(b, "[bssid_index=%d][bss_color=%d/%s]", r.HE.BSSIDIndex, r.HE.BSSColor, state)
	}
	return b
}
