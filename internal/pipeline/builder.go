package pipeline

import (
	"time"

	"firestige.xyz/ozwpan/internal/config"
	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/ozwpan"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{
		config: Config{
			BufferSize: 1024,
			VLAN:       true,
		},
	}
}

// FromConfig applies the decoder section of the global configuration.
func (b *Builder) FromConfig(cfg config.DecoderConfig) *Builder {
	b.config.VLAN = cfg.VLAN
	b.config.MaxFrames = cfg.MaxFrames
	b.config.BufferSize = cfg.ChannelCapacity
	b.config.Workers = cfg.Workers
	b.config.TransactionTTL = cfg.TransactionTTL
	return b
}

// WithSource sets the frame source.
func (b *Builder) WithSource(s Source) *Builder {
	b.config.Source = s
	return b
}

// WithDissector sets the OZWPAN dissector.
func (b *Builder) WithDissector(d *ozwpan.Dissector) *Builder {
	b.config.Dissector = d
	return b
}

// WithReporters sets the reporter chain.
func (b *Builder) WithReporters(reporters ...core.Reporter) *Builder {
	b.config.Reporters = reporters
	return b
}

// WithVLAN enables or disables 802.1Q decoding.
func (b *Builder) WithVLAN(enabled bool) *Builder {
	b.config.VLAN = enabled
	return b
}

// WithMaxFrames limits the number of OZWPAN frames reported.
func (b *Builder) WithMaxFrames(n int) *Builder {
	b.config.MaxFrames = n
	return b
}

// WithBufferSize sets the raw packet channel buffer size.
func (b *Builder) WithBufferSize(size int) *Builder {
	b.config.BufferSize = size
	return b
}

// WithWorkers sets the number of decode workers.
func (b *Builder) WithWorkers(n int) *Builder {
	b.config.Workers = n
	return b
}

// WithTransactionTTL enables GET_DESCRIPTOR pairing with the given lifetime.
func (b *Builder) WithTransactionTTL(ttl time.Duration) *Builder {
	b.config.TransactionTTL = ttl
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
