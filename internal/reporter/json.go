package reporter

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"firestige.xyz/ozwpan/internal/core"
)

const JSONName = "json"

type JSONOptions struct {
	Path   string `mapstructure:"path"`
	Tree   bool   `mapstructure:"tree"`   // Include the field tree
	Pretty bool   `mapstructure:"pretty"` // Indent; output is no longer one line per frame
}

// JSON writes one JSON document per frame, newline separated.
type JSON struct {
	mu   sync.Mutex
	out  *output
	enc  *json.Encoder
	opts JSONOptions
}

func init() {
	Register(JSONName, func(options map[string]any, stdout io.Writer) (core.Reporter, error) {
		opts := JSONOptions{Tree: true}
		if err := decodeOptions(options, &opts); err != nil {
			return nil, err
		}
		return NewJSON(opts, stdout)
	})
}

func NewJSON(opts JSONOptions, stdout io.Writer) (*JSON, error) {
	out, err := openOutput(opts.Path, stdout)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(out)
	if opts.Pretty {
		enc.SetIndent("", "  ")
	}
	return &JSON{out: out, enc: enc, opts: opts}, nil
}

func (j *JSON) Name() string { return JSONName }

func (j *JSON) Report(ctx context.Context, f *core.OutputFrame) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(NewDocument(f, j.opts.Tree))
}

func (j *JSON) Flush(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.out.Flush()
}

func (j *JSON) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.out.Close()
}
