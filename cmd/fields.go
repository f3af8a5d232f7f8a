package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/ozwpan/internal/ozwpan"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the fields the dissector emits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFields(cmd.OutOrStdout())
	},
}

func runFields(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ABBREV\tNAME\tBASE\tMASK")
	for _, fi := range ozwpan.Fields() {
		mask := ""
		if fi.Mask != 0 {
			mask = fmt.Sprintf("0x%x", fi.Mask)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", fi.Abbrev, fi.Name, baseName(fi.Base), mask)
	}
	return tw.Flush()
}

func baseName(b ozwpan.Base) string {
	switch b {
	case ozwpan.BaseDec:
		return "dec"
	case ozwpan.BaseHex:
		return "hex"
	case ozwpan.BaseBool:
		return "bool"
	default:
		return "none"
	}
}
