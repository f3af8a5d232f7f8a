// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/ozwpan/internal/config"
	"firestige.xyz/ozwpan/internal/log"
)

var (
	// Global flags
	configFile string
	logLevel   string

	// cfg is loaded once per invocation by loadConfig.
	cfg *config.GlobalConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ozwpan",
	Short: "OZWPAN - Ozmo wireless USB over Ethernet dissector",
	Long: `ozwpan decodes Ozmo Devices wireless USB frames (EtherType 0x892E).

It reads pcap/pcapng captures or listens on an interface, decodes the control
header, the tagged element sequence and the USB application data carried in
them, and prints the result as a field tree, JSON or YAML, or sends it to Kafka.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Close()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and OZWPAN_* environment when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(dissectCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(fieldsCmd)
}

// loadConfig loads the global configuration and initializes logging before
// any subcommand runs.
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = strings.ToLower(logLevel)
		if err := c.ValidateAndApplyDefaults(); err != nil {
			return err
		}
	}
	if err := log.Init(c.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cfg = c
	log.GetLogger().WithFields(map[string]interface{}{
		"command": cmd.Name(),
		"config":  configFile,
	}).Debug("configuration loaded")
	return nil
}
