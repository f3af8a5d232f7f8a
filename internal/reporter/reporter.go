// Package reporter renders decoded OZWPAN frames: a console tree, JSON lines,
// YAML documents, or Kafka messages.
package reporter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/ozwpan/internal/config"
	"firestige.xyz/ozwpan/internal/core"
)

// Factory builds a reporter from its options. stdout is the writer used when
// the options name no output file.
type Factory func(options map[string]any, stdout io.Writer) (core.Reporter, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a reporter type available to New. Registering a name twice panics.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[name]; dup {
		panic("reporter: Register called twice for " + name)
	}
	factories[name] = f
}

// Types lists the registered reporter types in order.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether a reporter type is registered.
func Known(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[name]
	return ok
}

// New builds the reporter described by cfg.
func New(cfg config.ReporterConfig, stdout io.Writer) (core.Reporter, error) {
	mu.RLock()
	f, ok := factories[cfg.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrReporterNotFound, cfg.Type)
	}
	r, err := f(cfg.Options, stdout)
	if err != nil {
		return nil, fmt.Errorf("reporter %s: %w", cfg.Type, err)
	}
	return r, nil
}

// NewAll builds every configured reporter, closing the ones already built on failure.
func NewAll(cfgs []config.ReporterConfig, stdout io.Writer) ([]core.Reporter, error) {
	reporters := make([]core.Reporter, 0, len(cfgs))
	for _, cfg := range cfgs {
		r, err := New(cfg, stdout)
		if err != nil {
			CloseAll(reporters)
			return nil, err
		}
		reporters = append(reporters, r)
	}
	return reporters, nil
}

// CloseAll closes every reporter and returns the first error.
func CloseAll(reporters []core.Reporter) error {
	var first error
	for _, r := range reporters {
		if err := r.Close(); err != nil && first == nil {
			first = fmt.Errorf("close reporter %s: %w", r.Name(), err)
		}
	}
	return first
}

// decodeOptions fills out from a loosely typed option map. Numbers may arrive
// as strings from env overrides and durations as "100ms".
func decodeOptions(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(options); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// output is a buffered destination: stdout, or a file when path is set.
type output struct {
	*bufio.Writer
	file *os.File
}

func openOutput(path string, stdout io.Writer) (*output, error) {
	if path == "" || path == "-" {
		if stdout == nil {
			stdout = os.Stdout
		}
		return &output{Writer: bufio.NewWriter(stdout)}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	return &output{Writer: bufio.NewWriter(f), file: f}, nil
}

func (o *output) Close() error {
	err := o.Flush()
	if o.file != nil {
		if cerr := o.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
