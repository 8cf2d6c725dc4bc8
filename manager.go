// Package wificmd manages the connection lifecycle of a Wi-Fi station on top
// of a vendor driver: the init/start/stop/deinit sequence, dispatch of driver
// events to overridable handlers, and a bounded auto-reconnect policy.
//
// A Manager is safe for concurrent use by console commands and the driver's
// event goroutine.
package wificmd

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/soypat/wificmd/wlan"
	"tinygo.org/x/drivers/netlink"
)

var (
	// ErrInitFatal wraps driver init failures. The driver and the handler
	// registrations may be out of sync after it is returned.
	ErrInitFatal        = errors.New("wificmd: unrecoverable driver init failure")
	errNilDriver        = errors.New("wificmd: nil driver")
	ErrScanTypeConflict = errors.New("wificmd: can not set active scan and passive scan at the same time")
)

const defaultMaxScanRecords = 64

// Config configures a Manager. Use DefaultConfig as a starting point.
type Config struct {
	// Logger receives structured logs. nil disables logging.
	Logger *slog.Logger
	// Output receives status lines. nil discards them.
	Output io.Writer
	// MaxRetries bounds consecutive automatic reconnects.
	MaxRetries uint32
	// Features requests optional event handling. Features the driver does not
	// report are dropped when the Manager is created.
	Features wlan.Features
	// InitToStation selects station mode after every driver init.
	InitToStation bool
	// MaxScanRecords bounds the scan result scratch buffer. Scans finding
	// more access points are reported as an allocation failure.
	MaxScanRecords int
	// InitConfig overrides wlan.DefaultInitConfig for the first init.
	InitConfig *wlan.InitConfig
}

// DefaultConfig returns the configuration of a full-featured station.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     DefaultMaxRetries,
		Features:       wlan.FeatureIPv6 | wlan.FeatureHE | wlan.FeatureITWT | wlan.Feature5G,
		InitToStation:  true,
		MaxScanRecords: defaultMaxScanRecords,
	}
}

// Manager is the connection lifecycle manager. Create with New.
type Manager struct {
	// mu guards the state fields from status on. It is never held across
	// driver calls.
	mu sync.Mutex
	// opmu serializes driver control calls issued by console operations and
	// background reconnects.
	opmu  sync.Mutex
	outmu sync.Mutex

	drv       wlan.Driver
	logger    *slog.Logger
	out       io.Writer
	features  wlan.Features
	initToSTA bool
	maxScan   int

	status       LifecycleStatus
	policy       ReconnectPolicy
	staConnected bool
	gotIPv4      bool
	lastReason   wlan.Reason
	counters     Counters
	scanLevel    ScanInfoLevel
	// epoch is bumped by every Connect and Disconnect so background
	// reconnects started before them can tell they are stale.
	epoch        uint32
	initCfg      *wlan.InitConfig
	bootstrapped bool
	countrySet   bool
	registered   []eventKey
	handlers     [numEventKinds]wlan.Handler
	notify       func(netlink.Event)
	// bgn counts running reconnect goroutines. bgidle is signaled when it
	// drops to zero.
	bgn    int
	bgidle *sync.Cond
}

// New returns a Manager driving drv. The driver is not touched until Init.
func New(drv wlan.Driver, cfg Config) (*Manager, error) {
	if drv == nil {
		return nil, errNilDriver
	}
	out := cfg.Output
	if out == nil {
		out = io.Discard
	}
	maxScan := cfg.MaxScanRecords
	if maxScan <= 0 {
		maxScan = defaultMaxScanRecords
	}
	m := &Manager{
		drv:       drv,
		logger:    cfg.Logger,
		out:       out,
		features:  resolveFeatures(cfg.Features, drv),
		initToSTA: cfg.InitToStation,
		maxScan:   maxScan,
		policy: ReconnectPolicy{
			Enabled:    true,
			MaxRetries: cfg.MaxRetries,
		},
		scanLevel: ScanBasic,
	}
	m.bgidle = sync.NewCond(&m.mu)
	if cfg.InitConfig != nil {
		ic := *cfg.InitConfig
		m.initCfg = &ic
	}
	m.debug("wificmd:new", slog.String("features", m.features.String()), slog.Uint64("maxretries", uint64(cfg.MaxRetries)))
	return m, nil
}

// Features returns the optional features resolved at construction.
func (m *Manager) Features() wlan.Features { return m.features }

// Wait blocks until background reconnect attempts have finished.
func (m *Manager) Wait() {
	m.mu.Lock()
	for m.bgn > 0 {
		m.bgidle.Wait()
	}
	m.mu.Unlock()
}
