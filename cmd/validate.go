package cmd

import (
	"fmt"
	"io"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/ozwpan/internal/config"
	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/reporter"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and print the effective settings",
	Long: `Load the configuration file given with --config (or the defaults and
OZWPAN_* environment variables), validate it, check that every reporter type
exists, and print the effective settings as YAML with secrets masked.

Examples:
  ozwpan validate -c config.yml
  OZWPAN_LOG_LEVEL=debug ozwpan validate`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cfg, cmd.OutOrStdout())
	},
}

func runValidate(c *config.GlobalConfig, out io.Writer) error {
	for _, rc := range c.Reporters {
		if !reporter.Known(rc.Type) {
			return fmt.Errorf("%w: %q, available: %v", core.ErrReporterNotFound, rc.Type, reporter.Types())
		}
	}

	fmt.Fprintf(out, "# VALID: %d reporter(s), metrics enabled: %t\n", len(c.Reporters), c.Metrics.Enabled)
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"ozwpan": effective(c)}); err != nil {
		return err
	}
	return enc.Close()
}

const redacted = "******"

// effective renders the configuration under its file keys, with secrets masked.
func effective(c *config.GlobalConfig) map[string]any {
	shown := *c
	shown.Kafka.SASL = redactSASL(c.Kafka.SASL)
	shown.Reporters = make([]config.ReporterConfig, len(c.Reporters))
	for i, rc := range c.Reporters {
		opts := make(map[string]any, len(rc.Options))
		for k, v := range rc.Options {
			opts[k] = v
		}
		for k, v := range opts {
			switch v := v.(type) {
			case config.SASLConfig:
				opts[k] = structMap(redactSASL(v))
			case config.TLSConfig:
				opts[k] = structMap(v)
			case map[string]any:
				if _, ok := v["password"]; ok {
					m := make(map[string]any, len(v))
					for mk, mv := range v {
						m[mk] = mv
					}
					m["password"] = redacted
					opts[k] = m
				}
			}
		}
		shown.Reporters[i] = config.ReporterConfig{Type: rc.Type, Options: opts}
	}

	out := structMap(shown)
	reporters := make([]map[string]any, len(shown.Reporters))
	for i, rc := range shown.Reporters {
		reporters[i] = map[string]any{"type": rc.Type, "options": rc.Options}
	}
	out["reporters"] = reporters
	return out
}

func redactSASL(s config.SASLConfig) config.SASLConfig {
	if s.Password != "" {
		s.Password = redacted
	}
	return s
}

// structMap converts a config struct to a map keyed by its mapstructure tags.
func structMap(v any) map[string]any {
	out := map[string]any{}
	if err := mapstructure.Decode(v, &out); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}
