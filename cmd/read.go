package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/ozwpan/internal/config"
	"firestige.xyz/ozwpan/internal/source/file"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Decode OZWPAN frames from a capture file",
	Long: `Read a pcap or pcapng file with Ethernet link type and decode every
OZWPAN frame in it. Other frames are counted and skipped.

Examples:
  ozwpan read -r trace.pcapng                 # field tree on stdout
  ozwpan read -r trace.pcap -o json -n 10     # first 10 frames as JSON lines
  ozwpan read -r trace.pcap -o yaml -w out.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return runRead(ctx, cfg, readFile, &readFlags, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var (
	readFile  string
	readFlags outputFlags
)

func init() {
	readCmd.Flags().StringVarP(&readFile, "read", "r", "", "pcap or pcapng file to read (required)")
	readCmd.MarkFlagRequired("read")
	readFlags.register(readCmd)
}

func runRead(ctx context.Context, c *config.GlobalConfig, path string, o *outputFlags, stdout, stats io.Writer) error {
	src, err := file.NewSource(path)
	if err != nil {
		return err
	}
	return runPipeline(ctx, c, src, o, stdout, stats)
}
