// Command wificmd runs the wifi-cmd console against an ESP32 running the
// ESP-AT firmware over a serial port, or against a simulated driver.
//
//	wificmd -list
//	wificmd -port /dev/ttyUSB0 -mqtt broker.local:1883
//	wificmd -sim
//
// Console lines are read from stdin. Status lines go to stdout and,
// optionally, to an MQTT topic.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/embeddedgo/espat"
	"github.com/soypat/wificmd"
	"github.com/soypat/wificmd/atdriver"
	"github.com/soypat/wificmd/console"
	"github.com/soypat/wificmd/mqttpub"
	"github.com/soypat/wificmd/wlan"
	"github.com/soypat/wificmd/wlan/wlansim"
)

var (
	flagList       = flag.Bool("list", false, "list USB serial ports and exit")
	flagPort       = flag.String("port", "", "serial port of the ESP-AT module")
	flagBaud       = flag.Int("baud", 115200, "serial baud rate")
	flagReset      = flag.Bool("reset", true, "reset the module on first init")
	flagSim        = flag.Bool("sim", false, "use the simulated driver instead of a serial port")
	flagMQTT       = flag.String("mqtt", "", "MQTT broker host:port receiving status lines")
	flagTopic      = flag.String("topic", mqttpub.DefaultTopic, "MQTT topic for status lines")
	flagClientID   = flag.String("clientid", "wificmd", "MQTT client identifier")
	flagMaxRetries = flag.Uint("maxretries", wificmd.DefaultMaxRetries, "automatic reconnect budget")
	flagScanMax    = flag.Int("scanmax", 64, "maximum scan records printed")
	flagLogLevel   = flag.Int("loglevel", int(slog.LevelInfo), "log level, -5 traces driver events")
	flagPrompt     = flag.Bool("prompt", true, "print a prompt to stderr")
)

func main() {
	flag.Parse()
	if *flagList {
		if err := listPorts(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func listPorts() error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return err
	}
	for _, port := range ports {
		if port.IsUSB {
			fmt.Printf("%s (%s/%s:%s)\n", port.Name, port.VID, port.PID, port.SerialNumber)
		} else {
			fmt.Println(port.Name)
		}
	}
	return nil
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(*flagLogLevel),
	}))

	drv, closeDrv, err := openDriver(logger)
	if err != nil {
		return err
	}
	defer closeDrv()

	var out io.Writer = os.Stdout
	if *flagMQTT != "" {
		pub, err := mqttpub.Dial(ctx, *flagMQTT, *flagClientID, mqttpub.Config{
			Topic:  *flagTopic,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer pub.Close()
		out = io.MultiWriter(os.Stdout, pub)
	}

	cfg := wificmd.DefaultConfig()
	cfg.Logger = logger
	cfg.Output = out
	cfg.MaxRetries = uint32(*flagMaxRetries)
	cfg.MaxScanRecords = *flagScanMax
	m, err := wificmd.New(drv, cfg)
	if err != nil {
		return err
	}
	defer m.Wait()
	con := console.New(m, logger)
	return repl(ctx, con, os.Stdin)
}

// openDriver returns the driver selected by flags and its release function.
func openDriver(logger *slog.Logger) (wlan.Driver, func(), error) {
	if *flagSim {
		sim := wlansim.New(wlansim.Config{
			Logger:   logger,
			Features: wlan.FeatureIPv6 | wlan.FeatureHE,
			MAC:      wlan.MAC{0x02, 0x00, 0x5e, 0x10, 0x00, 0x01},
			APs:      simAPs,
		})
		return sim, func() { sim.Close() }, nil
	}
	if *flagPort == "" {
		return nil, nil, errors.New("no serial port given, use -port or -sim (-list shows ports)")
	}
	port, err := serial.Open(*flagPort, &serial.Mode{
		BaudRate: *flagBaud,
		InitialStatusBits: &serial.ModemOutputBits{
			RTS: true,
			DTR: true,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	dev := espat.NewDevice(*flagPort, port, port)
	drv := atdriver.New(dev, atdriver.Config{
		Logger:   logger,
		Reset:    *flagReset,
		Features: wlan.FeatureIPv6,
	})
	return drv, func() {
		drv.Close()
		port.Close()
	}, nil
}

var simAPs = []wlansim.AP{
	{
		Record: wlan.APRecord{
			BSSID:     wlan.MAC{0x02, 0x00, 0x5e, 0x00, 0x00, 0x01},
			SSID:      "sim-ap",
			RSSI:      -45,
			Auth:      wlan.AuthWPA2,
			Primary:   6,
			Phy:       wlan.PhySupport{B: true, G: true, N: true, AX: true},
			Bandwidth: wlan.BW20,
			HE:        wlan.HEInfo{BSSColor: 7},
		},
		Password: "simpass123",
		IP:       netip.MustParseAddr("192.168.4.2"),
		IP6:      netip.MustParseAddr("fe80::5eff:fe10:1"),
	},
	{
		Record: wlan.APRecord{
			BSSID:     wlan.MAC{0x02, 0x00, 0x5e, 0x00, 0x00, 0x02},
			SSID:      "sim-open",
			RSSI:      -78,
			Auth:      wlan.AuthOpen,
			Primary:   11,
			Phy:       wlan.PhySupport{B: true, G: true},
			Bandwidth: wlan.BW20,
		},
		IP: netip.MustParseAddr("10.0.0.7"),
	},
}

func repl(ctx context.Context, con *console.Console, in io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()
	for {
		if *flagPrompt {
			fmt.Fprint(os.Stderr, "wificmd> ")
		}
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			// Errors are logged by the console.
			con.Exec(line)
		}
	}
}
