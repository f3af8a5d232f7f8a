package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/ozwpan/internal/config"
	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/ozwpan"
	"firestige.xyz/ozwpan/internal/reporter"
)

var dissectCmd = &cobra.Command{
	Use:   "dissect HEX...",
	Short: "Decode one OZWPAN payload given as hex",
	Long: `Decode a single OZWPAN frame starting at the control byte (no Ethernet
header). The hex may be split over several arguments and may contain spaces,
colons or dashes.

Examples:
  ozwpan dissect 04000100000008000805
  ozwpan dissect "04 00 01 00 00 00" --offsets
  ozwpan dissect 04:00:01:00:00:00 -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDissect(cmd.Context(), strings.Join(args, ""), dissectFormat, dissectOffsets, cmd.OutOrStdout())
	},
}

var (
	dissectFormat  string
	dissectOffsets bool
)

func init() {
	dissectCmd.Flags().StringVarP(&dissectFormat, "output", "o", reporter.ConsoleName, "output format: console, json or yaml")
	dissectCmd.Flags().BoolVar(&dissectOffsets, "offsets", false, "prefix fields with [offset+length]")
}

// parseHex accepts hex digits with optional whitespace, ':' or '-' separators.
func parseHex(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', ':', '-':
			return -1
		}
		return r
	}, strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return data, nil
}

func runDissect(ctx context.Context, payload, format string, offsets bool, out io.Writer) error {
	data, err := parseHex(payload)
	if err != nil {
		return err
	}

	rec := ozwpan.NewRecorder()
	meta := ozwpan.FrameMeta{Number: 1, Timestamp: time.Now()}
	frame, err := ozwpan.NewDissector().Decode(data, meta, rec)
	if errors.Is(err, ozwpan.ErrNotOzwpan) {
		return fmt.Errorf("%d bytes: %w", len(data), err)
	}
	if err != nil {
		return err
	}

	if format == reporter.ConsoleName {
		fmt.Fprintf(out, "OZWPAN %s\n", frame.Summary)
		reporter.WriteTree(out, rec.Root, offsets)
		for _, d := range frame.Diagnostics {
			fmt.Fprintf(out, "    [%s]\n", d)
		}
		return nil
	}

	r, err := reporter.New(reporterConfig(format), out)
	if err != nil {
		return err
	}
	of := &core.OutputFrame{Number: meta.Number, Timestamp: meta.Timestamp, Frame: frame, Tree: rec.Root}
	if err := r.Report(ctx, of); err != nil {
		r.Close()
		return err
	}
	return r.Close()
}

func reporterConfig(format string) config.ReporterConfig {
	return config.ReporterConfig{Type: format, Options: map[string]any{}}
}
