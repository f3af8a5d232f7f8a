package core

import "context"

// Reporter receives every decoded frame of a pipeline.
type Reporter interface {
	Name() string
	Report(ctx context.Context, frame *OutputFrame) error
	// Flush writes out anything buffered; called when the pipeline stops.
	Flush(ctx context.Context) error
	Close() error
}
