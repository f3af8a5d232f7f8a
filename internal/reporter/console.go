package reporter

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/ozwpan"
)

const ConsoleName = "console"

type ConsoleOptions struct {
	Path        string `mapstructure:"path"`         // Empty or "-" = stdout
	SummaryOnly bool   `mapstructure:"summary_only"` // One line per frame
	Offsets     bool   `mapstructure:"offsets"`      // Prefix fields with [offset+length]
}

// Console prints frames the way a packet analyzer shows packet details: a
// summary line followed by the indented field tree and the diagnostics.
type Console struct {
	mu   sync.Mutex
	out  *output
	opts ConsoleOptions
}

func init() {
	Register(ConsoleName, func(options map[string]any, stdout io.Writer) (core.Reporter, error) {
		var opts ConsoleOptions
		if err := decodeOptions(options, &opts); err != nil {
			return nil, err
		}
		return NewConsole(opts, stdout)
	})
}

func NewConsole(opts ConsoleOptions, stdout io.Writer) (*Console, error) {
	out, err := openOutput(opts.Path, stdout)
	if err != nil {
		return nil, err
	}
	return &Console{out: out, opts: opts}, nil
}

func (c *Console) Name() string { return ConsoleName }

func (c *Console) Report(ctx context.Context, f *core.OutputFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out, summaryLine(f))
	if c.opts.SummaryOnly {
		return nil
	}
	WriteTree(c.out, f.Tree, c.opts.Offsets)
	if f.Frame != nil {
		for _, d := range f.Frame.Diagnostics {
			fmt.Fprintf(c.out, "    [%s]\n", d)
		}
	}
	_, err := fmt.Fprintln(c.out)
	return err
}

// WriteTree prints nodes one per line, indented four spaces per level.
func WriteTree(w io.Writer, tree []*ozwpan.Node, offsets bool) {
	for _, n := range tree {
		writeNode(w, n, 0, offsets)
	}
}

func writeNode(w io.Writer, n *ozwpan.Node, depth int, offsets bool) {
	io.WriteString(w, strings.Repeat("    ", depth))
	if offsets {
		fmt.Fprintf(w, "[%d+%d] ", n.Offset, n.Length)
	}
	io.WriteString(w, n.Display)
	io.WriteString(w, "\n")
	for _, child := range n.Children {
		writeNode(w, child, depth+1, offsets)
	}
}

func summaryLine(f *core.OutputFrame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Frame %d: %s %s -> %s",
		f.Number, f.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		f.Ethernet.SrcMAC, f.Ethernet.DstMAC)
	if vlan, ok := f.Labels[core.LabelVLAN]; ok {
		fmt.Fprintf(&b, " vlan %s", vlan)
	}
	if f.Frame != nil {
		fmt.Fprintf(&b, " OZWPAN %s", f.Frame.Summary)
	}
	return b.String()
}

func (c *Console) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Flush()
}

func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Close()
}
