package console

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/soypat/wificmd"
	"github.com/soypat/wificmd/wlan"
)

func (c *Console) wifiCmd() *cobra.Command {
	var (
		storage   string
		espnowEnc int
		noReboot  bool
	)
	cmd := &cobra.Command{
		Use:       "wifi <init|deinit|start|stop|restart|status|restore>",
		Short:     "Wi-Fi driver lifecycle",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"init", "deinit", "start", "stop", "restart", "status", "restore"},
		RunE: func(cmd *cobra.Command, args []string) error {
			m := c.m
			switch args[0] {
			case "status":
				c.printStatus()
				return nil
			case "restore":
			default:
				if _, err := wificmd.ParseAction(args[0]); err != nil {
					return fmt.Errorf("%w: invalid input action %q", errArgs, args[0])
				}
			}
			if cmd.Flags().Changed("espnow_enc") {
				m.UpdateInitConfig(func(cfg *wlan.InitConfig) { cfg.ESPNowMaxEncrypt = espnowEnc })
				c.info("console:espnow-enc", slog.Int("num", espnowEnc))
			}
			if cmd.Flags().Changed("storage") {
				switch storage {
				case "flash", "ram":
					nvs := storage == "flash"
					m.UpdateInitConfig(func(cfg *wlan.InitConfig) { cfg.NVSEnable = nvs })
				default:
					c.logerr("console:invalid-storage", slog.String("storage", storage))
				}
			}
			if args[0] == "restore" {
				if err := m.Restore(); err != nil {
					return fmt.Errorf("esp_wifi_restore failed: %w", err)
				}
				m.Printf("esp_wifi_restore,OK")
				if !noReboot {
					if err := m.Reboot(); err != nil {
						c.logerr("console:reboot", slog.String("err", err.Error()))
					}
				}
				return nil
			}
			action, _ := wificmd.ParseAction(args[0])
			m.Printf("%s", wificmd.DoneLine("WIFI", m.Do(action)))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&storage, "storage", "", "set wifi storage 'flash' or 'ram' during init")
	f.IntVar(&espnowEnc, "espnow_enc", 0, "espnow encryption number, only for init and restart")
	f.BoolVar(&noReboot, "no_reboot", false, "restore without reboot")
	return cmd
}

func (c *Console) printStatus() {
	m := c.m
	snap := m.Snapshot()
	m.Printf("wifi status: %d", snap.Status)
	m.Printf("WIFI_QUERY:")
	if snap.Status == wificmd.StatusNone {
		return
	}
	mode, err := m.Mode()
	switch {
	case err == nil:
		m.Printf("WIFI_MODE:%s", mode)
		if mode != wlan.ModeSTA && mode != wlan.ModeAPSTA {
			return
		}
	case !errors.Is(err, wlan.ErrNotSupported):
		c.logerr("console:mode", slog.String("err", err.Error()))
		return
	}
	switch {
	case snap.STAConnected && snap.GotIPv4:
		m.Printf(" STA_CONNECTED!")
	case snap.STAConnected:
		m.Printf(" STA_WIFI_CONNECTED_WITHOUT_IP!")
	}
	if p, err := m.Protocols(wlan.IfaceSTA); err == nil {
		m.Printf(" STA_PROTOCOL:%s", p.GHz2)
		if m.Features().Has(wlan.Feature5G) {
			m.Printf(" STA_PROTOCOL_5G:%s", p.GHz5)
		}
	}
	if mac, err := m.GetHardwareAddr(); err == nil {
		m.Printf(" STA_MAC:%s", mac)
	}
}

func (c *Console) wifiCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wifi_count [query|clear]",
		Short: "Query or clear Wi-Fi event counters",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := c.m
			if len(args) > 0 && args[0] == "clear" {
				m.ClearCounters()
				m.Printf("WIFI_COUNT_CLEAR,OK")
				return nil
			}
			cnt := m.Counters()
			m.Printf("WiFi Counts:")
			m.Printf("  BCN_TIMEOUT_CNT:%d", cnt.BeaconTimeout)
			m.Printf("  STA_DISCONNECTED_CNT:%d", cnt.STADisconnected)
			return nil
		},
	}
}

type connectFlags struct {
	bssid          string
	channel        uint8
	noDisconnect   bool
	noReconnect    bool
	fullScan       bool
	noReconfig     bool
	rssi           int8
	auth           string
	listenInterval uint16
	sortMethod     uint8
	failureRetry   uint8
	saePWE         uint8
	disablePMF     bool
	pmfRequired    bool
	transDisable   bool
	rm, btm        bool
	mbo, ft        bool
	roam           bool
	owe            bool
}

func (c *Console) staConnectCmd(use, deprecated string) *cobra.Command {
	var fl connectFlags
	cmd := &cobra.Command{
		Use:        use + " <ssid> [<pass>]",
		Short:      "Connect the station to an AP",
		Deprecated: deprecated,
		Args:       cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := c.m
			if fl.noReconfig {
				m.Printf("%s", wificmd.DoneLine("WIFI_CONNECT_START", m.ConnectStored()))
				return nil
			}
			cfg, err := fl.stationConfig(cmd, args)
			if err != nil {
				return err
			}
			if !fl.noDisconnect {
				if err := m.Leave(); err != nil {
					c.info("console:leave", slog.String("err", err.Error()))
				}
			}
			m.Printf("Connecting to %s...", cfg.SSID)
			m.Printf("%s", wificmd.DoneLine("WIFI_CONNECT_START", m.Connect(cfg, !fl.noReconnect)))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&fl.bssid, "bssid", "b", "", "bssid of AP")
	f.Uint8VarP(&fl.channel, "channel", "n", 0, "channel of AP")
	f.BoolVar(&fl.noDisconnect, "no-disconnect", false, "do not disconnect before connect")
	f.BoolVar(&fl.noReconnect, "no-reconnect", false, "disable auto-reconnect in the disconnect handler")
	f.BoolVar(&fl.fullScan, "full-scan", false, "do full channel scan during sta connect")
	f.BoolVar(&fl.noReconfig, "no-reconfig", false, "connect with the stored config, ignore all other parameters")
	f.Int8Var(&fl.rssi, "rssi", 0, "rssi threshold")
	f.StringVar(&fl.auth, "auth", "", "auth threshold")
	f.Uint16Var(&fl.listenInterval, "listen_interval", 0, "listen interval")
	f.Uint8Var(&fl.sortMethod, "sort_method", 0, "sort method")
	f.Uint8Var(&fl.failureRetry, "failure_retry", 0, "connect failure retry count")
	f.Uint8Var(&fl.saePWE, "sae_pwe", 0, "sae pwe method")
	f.BoolVar(&fl.disablePMF, "disable_pmf", false, "disable pmf capable")
	f.BoolVar(&fl.pmfRequired, "pmf_required", false, "pmf required")
	f.BoolVar(&fl.transDisable, "transition_disable", false, "enable transition disable")
	f.BoolVar(&fl.rm, "rm", false, "rrm enabled")
	f.BoolVar(&fl.btm, "btm", false, "btm enabled")
	f.BoolVar(&fl.mbo, "mbo", false, "mbo enabled")
	f.BoolVar(&fl.ft, "ft", false, "ft enabled")
	f.BoolVar(&fl.roam, "roam", false, "enable all roaming related options: rm,btm,mbo,ft")
	f.BoolVar(&fl.owe, "owe", false, "owe enabled")
	return cmd
}

func (fl *connectFlags) stationConfig(cmd *cobra.Command, args []string) (wlan.StationConfig, error) {
	cfg := wlan.StationConfig{
		ScanMethod: wlan.ScanFast,
		SortMethod: wlan.SortBySignal,
	}
	if len(args) == 0 {
		return cfg, fmt.Errorf("%w: ssid must be set", errArgs)
	}
	cfg.SSID = args[0]
	if len(args) > 1 {
		cfg.Password = args[1]
		cfg.Threshold.Auth = wlan.AuthWEP
	}
	if fl.fullScan {
		cfg.ScanMethod = wlan.ScanAllChannel
	}
	cfg.Channel = fl.channel
	if fl.bssid != "" {
		mac, err := wlan.ParseMAC(fl.bssid)
		if err != nil {
			return cfg, fmt.Errorf("%w: can not parse bssid: %s", errArgs, fl.bssid)
		}
		cfg.BSSID = mac
		cfg.BSSIDSet = true
	}
	cfg.FailureRetry = fl.failureRetry
	cfg.RM = fl.rm || fl.roam
	cfg.BTM = fl.btm || fl.roam
	cfg.MBO = fl.mbo || fl.roam
	cfg.FT = fl.ft || fl.roam
	cfg.OWE = fl.owe
	cfg.TransitionDisable = fl.transDisable
	cfg.SAEPWE = fl.saePWE
	cfg.PMF = wlan.PMFConfig{Capable: !fl.disablePMF, Required: fl.pmfRequired}
	cfg.ListenInterval = fl.listenInterval
	if cmd.Flags().Changed("sort_method") {
		cfg.SortMethod = wlan.SortMethod(fl.sortMethod)
	}
	if fl.auth != "" {
		auth, err := wlan.ParseAuthMode(fl.auth)
		if err != nil {
			return cfg, fmt.Errorf("%w: unknown auth mode %q", errArgs, fl.auth)
		}
		cfg.Threshold.Auth = auth
	}
	cfg.Threshold.RSSI = fl.rssi
	return cfg, nil
}

func (c *Console) staDisconnectCmd(use, deprecated string) *cobra.Command {
	return &cobra.Command{
		Use:        use,
		Short:      "Disconnect the station and disable auto-reconnect",
		Deprecated: deprecated,
		Args:       cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.m.Printf("%s", wificmd.DoneLine("WIFI_DISCONNECT", c.m.Disconnect()))
			return nil
		},
	}
}

type scanFlags struct {
	bssid       string
	channel     uint8
	showHidden  bool
	passive     bool
	passiveTime uint32
	min, max    uint32
	dwell       uint8
	bitmap2G    uint16
	bitmap5G    uint32
	countOnly   bool
	ax          bool
	verbose     int
}

func (c *Console) staScanCmd(use, deprecated string) *cobra.Command {
	var fl scanFlags
	cmd := &cobra.Command{
		Use:        use + " [ssid]",
		Short:      "Start a station scan",
		Deprecated: deprecated,
		Args:       cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg wlan.ScanConfig
			if len(args) > 0 {
				cfg.SSID = args[0]
				if len(cfg.SSID) > 32 {
					cfg.SSID = cfg.SSID[:32]
				}
			}
			if fl.bssid != "" {
				mac, err := wlan.ParseMAC(fl.bssid)
				if err != nil {
					return fmt.Errorf("%w: can not parse bssid: %s", errArgs, fl.bssid)
				}
				cfg.BSSID = mac
			}
			cfg.Channel = fl.channel
			cfg.ShowHidden = fl.showHidden
			cfg.Passive = fl.passive || cmd.Flags().Changed("passive-time")
			cfg.Time = wlan.ScanTime{ActiveMin: fl.min, ActiveMax: fl.max, Passive: fl.passiveTime}
			if cfg.Passive && (cmd.Flags().Changed("min") || cmd.Flags().Changed("max")) {
				return wificmd.ErrScanTypeConflict
			}
			cfg.HomeChanDwell = fl.dwell
			cfg.Bitmap2G = fl.bitmap2G
			cfg.Bitmap5G = fl.bitmap5G
			level := wificmd.ScanLevel(fl.verbose, fl.countOnly, fl.ax)
			err := c.m.Scan(cfg, level)
			if errors.Is(err, wificmd.ErrScanTypeConflict) {
				return err
			}
			c.m.Printf("%s", wificmd.DoneLine("STA_SCAN_START", err))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&fl.bssid, "bssid", "b", "", "bssid of AP")
	f.Uint8VarP(&fl.channel, "channel", "n", 0, "channel of AP")
	f.BoolVar(&fl.showHidden, "show-hidden", false, "show hidden APs")
	f.BoolVar(&fl.passive, "passive", false, "set scan type to passive")
	f.Uint32Var(&fl.passiveTime, "passive-time", 0, "passive scan time, also sets scan type to passive")
	f.Uint32Var(&fl.min, "min", 0, "min active scan time")
	f.Uint32Var(&fl.max, "max", 0, "max active scan time")
	f.Uint8Var(&fl.dwell, "dwell", 0, "home channel dwell time (ms)")
	f.Uint16Var(&fl.bitmap2G, "bitmap-2g", 0, "scan bitmap 2ghz, eg: 0x842 (channel:1/6/11)")
	f.Uint32Var(&fl.bitmap5G, "bitmap-5g", 0, "scan bitmap 5ghz, eg: 0x6 (channel:36/40)")
	f.BoolVar(&fl.countOnly, "count-only", false, "do scan ap count only")
	f.BoolVar(&fl.ax, "ax", false, "show ax info")
	f.CountVarP(&fl.verbose, "verbose", "v", "scan result info level")
	return cmd
}
