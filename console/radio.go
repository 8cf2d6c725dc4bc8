package console

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soypat/wificmd"
	"github.com/soypat/wificmd/wlan"
)

func (c *Console) wifiModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wifi_mode <null|sta|ap|apsta>",
		Short: "Set the Wi-Fi operating mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := wlan.ParseMode(args[0])
			if err != nil {
				return fmt.Errorf("%w: unknown mode %q", errArgs, args[0])
			}
			c.m.Printf("mode: %s", mode)
			c.m.Printf("%s", wificmd.DoneLine("SET_WIFI_MODE", c.m.SetMode(mode)))
			return nil
		},
	}
}

func (c *Console) wifiCountryCmd() *cobra.Command {
	var (
		schan, nchan uint8
		policy       string
	)
	cmd := &cobra.Command{
		Use:   "wifi_country [code]",
		Short: "Set or query the Wi-Fi country",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := c.m
			if len(args) == 0 {
				cc, err := m.Country()
				if err != nil {
					return fmt.Errorf("get country: %w", err)
				}
				m.Printf("CUR_COUNTRY_CODE:%s,", cc.Code)
				m.Printf("GET_COUNTRY:%s,schan=%d,nchan=%d,policy=%s", cc.Code, cc.StartChan, cc.NumChan, cc.Policy())
				return nil
			}
			cc := wlan.Country{Code: args[0]}
			switch policy {
			case "auto":
			case "manual":
				cc.Manual = true
			default:
				return fmt.Errorf("%w: policy must be auto or manual, got %q", errArgs, policy)
			}
			if !cmd.Flags().Changed("schan") && !cmd.Flags().Changed("nchan") {
				m.Printf("%s", wificmd.DoneLine("SET_WIFI_COUNTRY_CODE", m.SetCountry(cc)))
				return nil
			}
			cc.StartChan, cc.NumChan = schan, nchan
			m.Printf("%s", wificmd.DoneLine("SET_WIFI_COUNTRY", m.SetCountry(cc)))
			return nil
		},
	}
	f := cmd.Flags()
	f.Uint8VarP(&schan, "schan", "s", wlan.DefaultStartChan, "start channel")
	f.Uint8VarP(&nchan, "nchan", "n", wlan.DefaultNumChan, "total channel number")
	f.StringVarP(&policy, "policy", "p", "auto", "policy, auto or manual")
	return cmd
}

func (c *Console) wifiProtocolCmd() *cobra.Command {
	var ghz2, ghz5, iface string
	cmd := &cobra.Command{
		Use:   "wifi_protocol [protocol]",
		Short: "Set or query the 802.11 protocols of an interface",
		Long: "Protocols are split with '/', eg: 'b/g/n' or 'lr/b/g'. A raw bitmap is\n" +
			"given in hex, eg: 0x40. The positional protocol and the per band flags\n" +
			"cannot be used together.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := c.m
			perBand := cmd.Flags().Changed("2g") || cmd.Flags().Changed("5g")
			if len(args) > 0 && perBand {
				return fmt.Errorf("%w: cannot set protocol and per band protocols at the same time", errArgs)
			}
			ifx, err := wlan.ParseInterface(iface)
			if err != nil {
				return fmt.Errorf("%w: unknown interface %q", errArgs, iface)
			}
			if len(args) == 0 && !perBand {
				p, err := m.Protocols(ifx)
				if err != nil {
					code := wificmd.ErrorCode(err)
					m.Printf("GET_WIFI_PROTO:FAIL,%d,%s", int32(code), code.Name())
					return nil
				}
				if m.Features().Has(wlan.Feature5G) {
					m.Printf("(%s)GET_WIFI_PROTO:%s, GET_WIFI_PROTO_5G:%s", ifx, p.GHz2, p.GHz5)
				} else {
					m.Printf("(%s)GET_WIFI_PROTO:%s", ifx, p.GHz2)
				}
				return nil
			}
			var p wlan.Protocols
			if len(args) > 0 {
				ghz2 = args[0]
			}
			for _, band := range []struct {
				s   string
				dst *wlan.Protocol
			}{{ghz2, &p.GHz2}, {ghz5, &p.GHz5}} {
				if band.s == "" {
					continue
				}
				*band.dst, err = wlan.ParseProtocol(band.s)
				if err != nil {
					return fmt.Errorf("%w: unknown protocol %q", errArgs, band.s)
				}
			}
			m.Printf("%s", wificmd.DoneLine("SET_WIFI_PROTOCOL", m.SetProtocols(ifx, p)))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&ghz2, "2g", "", "2.4GHz protocol, eg: 'lr', 'b/g/n', 'b/g/n/ax'")
	f.StringVar(&ghz5, "5g", "", "5GHz protocol, same format as --2g")
	f.StringVarP(&iface, "interface", "i", "sta", "interface, 'ap' or 'sta'")
	return cmd
}
