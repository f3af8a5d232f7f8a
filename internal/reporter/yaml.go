package reporter

import (
	"context"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"firestige.xyz/ozwpan/internal/core"
)

const YAMLName = "yaml"

type YAMLOptions struct {
	Path   string `mapstructure:"path"`
	Tree   bool   `mapstructure:"tree"`
	Indent int    `mapstructure:"indent"`
}

// YAML writes a "---" separated stream with one document per frame.
type YAML struct {
	mu   sync.Mutex
	out  *output
	enc  *yaml.Encoder
	opts YAMLOptions
}

func init() {
	Register(YAMLName, func(options map[string]any, stdout io.Writer) (core.Reporter, error) {
		opts := YAMLOptions{Tree: true, Indent: 2}
		if err := decodeOptions(options, &opts); err != nil {
			return nil, err
		}
		return NewYAML(opts, stdout)
	})
}

func NewYAML(opts YAMLOptions, stdout io.Writer) (*YAML, error) {
	out, err := openOutput(opts.Path, stdout)
	if err != nil {
		return nil, err
	}
	enc := yaml.NewEncoder(out)
	if opts.Indent > 0 {
		enc.SetIndent(opts.Indent)
	}
	return &YAML{out: out, enc: enc, opts: opts}, nil
}

func (y *YAML) Name() string { return YAMLName }

func (y *YAML) Report(ctx context.Context, f *core.OutputFrame) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.enc.Encode(NewDocument(f, y.opts.Tree))
}

func (y *YAML) Flush(ctx context.Context) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.out.Flush()
}

func (y *YAML) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if err := y.enc.Close(); err != nil {
		return err
	}
	return y.out.Close()
}
