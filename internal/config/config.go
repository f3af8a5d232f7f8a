// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/ozwpan/internal/core"
)

const maxWorkers = 256

// GlobalConfig represents the top-level configuration.
// Maps to the `ozwpan:` root key in YAML.
type GlobalConfig struct {
	Log       LogConfig         `mapstructure:"log"`
	Decoder   DecoderConfig     `mapstructure:"decoder"`
	Capture   CaptureConfig     `mapstructure:"capture"`
	Kafka     GlobalKafkaConfig `mapstructure:"kafka"`
	Reporters []ReporterConfig  `mapstructure:"reporters"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
}

// ─── Decoder ───

// DecoderConfig controls the frame pipeline.
type DecoderConfig struct {
	VLAN            bool          `mapstructure:"vlan"`             // Accept 802.1Q tagged frames
	MaxFrames       int           `mapstructure:"max_frames"`       // 0 = unlimited
	ChannelCapacity int           `mapstructure:"channel_capacity"` // Capture -> decode channel, per worker
	Workers         int           `mapstructure:"workers"`          // Decode goroutines, frames sharded by MAC pair
	TransactionTTL  time.Duration `mapstructure:"transaction_ttl"`  // Pending GET_DESCRIPTOR lifetime, 0 = no pairing
}

// ─── Capture ───

// CaptureConfig contains live capture settings.
type CaptureConfig struct {
	Interface    string `mapstructure:"interface"`
	SnapLen      int    `mapstructure:"snap_len"`
	BufferSizeMB int    `mapstructure:"buffer_size_mb"`
	TimeoutMS    int    `mapstructure:"timeout_ms"`
	FanoutID     int    `mapstructure:"fanout_id"` // 0 = no fanout group
}

// ─── Kafka Global Default ───

// GlobalKafkaConfig provides shared Kafka connection defaults.
// Kafka reporters inherit brokers, SASL and TLS from here when their own options are empty.
type GlobalKafkaConfig struct {
	Brokers []string   `mapstructure:"brokers"`
	SASL    SASLConfig `mapstructure:"sasl"`
	TLS     TLSConfig  `mapstructure:"tls"`
}

// SASLConfig contains SASL authentication settings.
type SASLConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Mechanism string `mapstructure:"mechanism"` // PLAIN | SCRAM-SHA-256 | SCRAM-SHA-512
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// TLSConfig contains TLS settings.
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CACert             string `mapstructure:"ca_cert"`
	ClientCert         string `mapstructure:"client_cert"`
	ClientKey          string `mapstructure:"client_key"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// ─── Reporters ───

// ReporterConfig names a reporter and carries its type-specific options.
type ReporterConfig struct {
	Type    string         `mapstructure:"type"`
	Options map[string]any `mapstructure:"options"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains log output destinations besides stderr.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `ozwpan: ...`.
type configRoot struct {
	Ozwpan GlobalConfig `mapstructure:"ozwpan"`
}

// Load loads configuration from file. An empty path yields defaults plus env overrides.
// The YAML file uses `ozwpan:` as root key; env vars use the OZWPAN_ prefix (e.g., OZWPAN_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// key "ozwpan.log.level" → env "OZWPAN_LOG_LEVEL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Ozwpan

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "ozwpan." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("ozwpan.log.level", "info")
	v.SetDefault("ozwpan.log.format", "text")
	v.SetDefault("ozwpan.log.outputs.file.enabled", false)
	v.SetDefault("ozwpan.log.outputs.file.path", "/var/log/ozwpan/ozwpan.log")
	v.SetDefault("ozwpan.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("ozwpan.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("ozwpan.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("ozwpan.log.outputs.file.rotation.compress", true)

	// Decoder defaults
	v.SetDefault("ozwpan.decoder.vlan", true)
	v.SetDefault("ozwpan.decoder.max_frames", 0)
	v.SetDefault("ozwpan.decoder.channel_capacity", 4096)
	v.SetDefault("ozwpan.decoder.workers", 1)
	v.SetDefault("ozwpan.decoder.transaction_ttl", "30s")

	// Capture defaults
	v.SetDefault("ozwpan.capture.interface", "")
	v.SetDefault("ozwpan.capture.snap_len", 65535)
	v.SetDefault("ozwpan.capture.buffer_size_mb", 8)
	v.SetDefault("ozwpan.capture.timeout_ms", 100)
	v.SetDefault("ozwpan.capture.fanout_id", 0)

	// Metrics defaults
	v.SetDefault("ozwpan.metrics.enabled", false)
	v.SetDefault("ozwpan.metrics.listen", ":9892")
	v.SetDefault("ozwpan.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
// Failures wrap core.ErrConfigInvalid.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format: %s (must be json/text)", core.ErrConfigInvalid, cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("%w: log.outputs.file.path is required when file output is enabled", core.ErrConfigInvalid)
	}

	// ── Decoder / capture ──
	if cfg.Decoder.MaxFrames < 0 {
		return fmt.Errorf("%w: decoder.max_frames must be >= 0", core.ErrConfigInvalid)
	}
	if cfg.Decoder.TransactionTTL < 0 {
		return fmt.Errorf("%w: decoder.transaction_ttl must be >= 0", core.ErrConfigInvalid)
	}
	if cfg.Decoder.Workers <= 0 {
		cfg.Decoder.Workers = 1
	}
	if cfg.Decoder.Workers > maxWorkers {
		return fmt.Errorf("%w: decoder.workers must be <= %d", core.ErrConfigInvalid, maxWorkers)
	}
	if cfg.Decoder.ChannelCapacity <= 0 {
		cfg.Decoder.ChannelCapacity = 4096
	}
	if cfg.Capture.SnapLen <= 0 || cfg.Capture.SnapLen > 262144 {
		return fmt.Errorf("%w: capture.snap_len out of range: %d", core.ErrConfigInvalid, cfg.Capture.SnapLen)
	}
	if cfg.Capture.FanoutID < 0 || cfg.Capture.FanoutID > 0xffff {
		return fmt.Errorf("%w: capture.fanout_id out of range: %d", core.ErrConfigInvalid, cfg.Capture.FanoutID)
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("%w: metrics.path must start with '/': %s", core.ErrConfigInvalid, cfg.Metrics.Path)
	}

	// ── Reporters ──
	if len(cfg.Reporters) == 0 {
		cfg.Reporters = []ReporterConfig{{Type: "console"}}
	}
	for i := range cfg.Reporters {
		r := &cfg.Reporters[i]
		r.Type = strings.ToLower(strings.TrimSpace(r.Type))
		if r.Type == "" {
			return fmt.Errorf("%w: reporters[%d].type is required", core.ErrConfigInvalid, i)
		}
		if r.Options == nil {
			r.Options = map[string]any{}
		}
	}

	if cfg.Kafka.SASL.Enabled {
		switch cfg.Kafka.SASL.Mechanism {
		case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			return fmt.Errorf("%w: unsupported kafka.sasl.mechanism: %s", core.ErrConfigInvalid, cfg.Kafka.SASL.Mechanism)
		}
	}
	applyKafkaInheritance(cfg)

	return nil
}

// applyKafkaInheritance copies the global ozwpan.kafka connection settings into every
// kafka reporter whose options leave them unset.
func applyKafkaInheritance(cfg *GlobalConfig) {
	global := &cfg.Kafka
	for i := range cfg.Reporters {
		r := &cfg.Reporters[i]
		if r.Type != "kafka" {
			continue
		}
		if _, ok := r.Options["brokers"]; !ok && len(global.Brokers) > 0 {
			r.Options["brokers"] = append([]string(nil), global.Brokers...)
		}
		if _, ok := r.Options["sasl"]; !ok && global.SASL.Enabled {
			r.Options["sasl"] = global.SASL
		}
		if _, ok := r.Options["tls"]; !ok && global.TLS.Enabled {
			r.Options["tls"] = global.TLS
		}
	}
}
