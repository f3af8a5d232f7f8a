package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/ozwpan/internal/config"
	"firestige.xyz/ozwpan/internal/metrics"
	"firestige.xyz/ozwpan/internal/ozwpan"
	"firestige.xyz/ozwpan/internal/pipeline"
	"firestige.xyz/ozwpan/internal/reporter"
)

// outputFlags are shared by the commands that decode a stream of frames.
type outputFlags struct {
	format  string // Replaces the configured reporters when set
	path    string
	count   int
	summary bool
	offsets bool
	noVLAN  bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "output", "o", "",
		"output format: console, json or yaml (default: configured reporters)")
	cmd.Flags().StringVarP(&o.path, "write", "w", "", "write output to file instead of stdout")
	cmd.Flags().IntVarP(&o.count, "count", "n", 0, "stop after COUNT OZWPAN frames (0 = decoder.max_frames)")
	cmd.Flags().BoolVar(&o.summary, "summary", false, "console: one line per frame")
	cmd.Flags().BoolVar(&o.offsets, "offsets", false, "console: prefix fields with [offset+length]")
	cmd.Flags().BoolVar(&o.noVLAN, "no-vlan", false, "do not look behind 802.1Q tags")
}

// reporterConfigs returns the reporters to run: the configured ones, or a
// single reporter of the requested format.
func (o *outputFlags) reporterConfigs(c *config.GlobalConfig) []config.ReporterConfig {
	if o.format == "" {
		if o.path == "" {
			return c.Reporters
		}
		// -w alone redirects the console reporter.
		o.format = reporter.ConsoleName
	}
	options := map[string]any{}
	if o.path != "" {
		options["path"] = o.path
	}
	if o.format == reporter.ConsoleName {
		options["summary_only"] = o.summary
		options["offsets"] = o.offsets
	}
	return []config.ReporterConfig{{Type: o.format, Options: options}}
}

func (o *outputFlags) decoderConfig(c *config.GlobalConfig) config.DecoderConfig {
	dc := c.Decoder
	if o.count > 0 {
		dc.MaxFrames = o.count
	}
	if o.noVLAN {
		dc.VLAN = false
	}
	return dc
}

// runPipeline decodes everything src yields until it is exhausted, the frame
// limit is hit or ctx is cancelled, then prints the counters to stats.
func runPipeline(ctx context.Context, c *config.GlobalConfig, src pipeline.Source, o *outputFlags, stdout, stats io.Writer) error {
	reporters, err := reporter.NewAll(o.reporterConfigs(c), stdout)
	if err != nil {
		return err
	}
	defer reporter.CloseAll(reporters)

	if c.Metrics.Enabled {
		srv := metrics.NewServer(c.Metrics.Listen, c.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Stop(context.Background())
	}

	p := pipeline.NewBuilder().
		FromConfig(o.decoderConfig(c)).
		WithSource(src).
		WithDissector(ozwpan.NewDissector()).
		WithReporters(reporters...).
		Build()

	runErr := p.Run(ctx)
	st := p.Stats()
	fmt.Fprintf(stats, "%d packets, %d decoded, %d partial, %d declined, %d skipped, %d link errors, %d reported, %d report errors",
		st.Received, st.Decoded, st.Partial, st.Declined, st.Skipped, st.LinkErrors, st.Reported, st.ReportErrors)
	if tr := st.Transactions; tr != nil {
		fmt.Fprintf(stats, ", %d/%d descriptor requests answered", tr.Matched, tr.Matched+tr.Expired+uint64(tr.Pending))
	}
	fmt.Fprintln(stats)
	return runErr
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
