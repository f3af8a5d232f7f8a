package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/ozwpan/internal/config"
	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/source/afpacket"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Decode OZWPAN frames live from a network interface",
	Long: `Capture on an interface with an AF_PACKET ring (Linux only). A kernel
filter passes only EtherType 0x892E frames, optionally behind one 802.1Q tag.
Runs until interrupted or until COUNT frames were decoded.

Examples:
  ozwpan capture -i eth0
  ozwpan capture -i eth0 -o json -n 100
  ozwpan capture -c /etc/ozwpan/config.yml   # interface from capture.interface`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return runCapture(ctx, cfg, captureIface, &captureFlags, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var (
	captureIface string
	captureFlags outputFlags
)

func init() {
	captureCmd.Flags().StringVarP(&captureIface, "interface", "i", "", "interface to capture on (default: capture.interface)")
	captureFlags.register(captureCmd)
}

// captureConfig merges the capture section with the command line.
func captureConfig(c *config.GlobalConfig, iface string, o *outputFlags) (afpacket.Config, error) {
	if iface == "" {
		iface = c.Capture.Interface
	}
	if iface == "" {
		return afpacket.Config{}, fmt.Errorf("%w: no capture interface, use -i or capture.interface", core.ErrConfigInvalid)
	}
	return afpacket.Config{
		Device:       iface,
		SnapLen:      c.Capture.SnapLen,
		BufferSizeMB: c.Capture.BufferSizeMB,
		TimeoutMs:    c.Capture.TimeoutMS,
		FanoutID:     uint16(c.Capture.FanoutID),
		VLAN:         o.decoderConfig(c).VLAN,
	}, nil
}

func runCapture(ctx context.Context, c *config.GlobalConfig, iface string, o *outputFlags, stdout, stats io.Writer) error {
	ac, err := captureConfig(c, iface, o)
	if err != nil {
		return err
	}
	src, err := afpacket.NewSource(ac)
	if err != nil {
		return err
	}
	return runPipeline(ctx, c, src, o, stdout, stats)
}
