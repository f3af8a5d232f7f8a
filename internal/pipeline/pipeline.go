// Package pipeline reads link-layer frames from a source, decodes the OZWPAN
// ones and hands the results to reporters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/ozwpan/internal/conversation"
	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/log"
	"firestige.xyz/ozwpan/internal/metrics"
	"firestige.xyz/ozwpan/internal/ozwpan"
)

// Source yields link-layer frames. ReadPacket returns io.EOF at the end of a
// finite source and an error wrapping core.ErrCaptureTimeout when a live
// source polled without result.
type Source interface {
	Name() string
	Start(ctx context.Context) error
	ReadPacket() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
	Stop() error
}

// statsSource is implemented by live sources that expose kernel drop counters.
type statsSource interface {
	Stats() (packets, drops uint, err error)
}

// Pipeline is a two-stage chain: a capture goroutine feeding decode and report
// workers through bounded per-worker channels.
type Pipeline struct {
	source     Source
	reporters  []core.Reporter
	decoders   []*frameDecoder
	partitions *partitioner
	tracker    *conversation.Tracker
	maxFrames  uint64
	metrics    *Metrics

	// admitted counts frames cleared for reporting against maxFrames.
	admitted atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	errMu      sync.Mutex
	captureErr error
}

// Config contains pipeline configuration.
type Config struct {
	Source     Source
	Reporters  []core.Reporter
	Dissector  *ozwpan.Dissector
	VLAN       bool // Decode 802.1Q/802.1ad tags in front of OZWPAN
	MaxFrames  int  // Stop after this many OZWPAN frames; 0 = unlimited
	BufferSize int  // Raw packet channel buffer size, per worker
	Workers    int  // Decode workers; 1 keeps global frame order

	// TransactionTTL enables GET_DESCRIPTOR request/response pairing when positive.
	TransactionTTL time.Duration
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	maxFrames := uint64(0)
	if cfg.MaxFrames > 0 {
		maxFrames = uint64(cfg.MaxFrames)
	}
	name := ""
	if cfg.Source != nil {
		name = cfg.Source.Name()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	dissector := cfg.Dissector
	if dissector == nil {
		dissector = ozwpan.NewDissector()
	}
	decoders := make([]*frameDecoder, cfg.Workers)
	for i := range decoders {
		decoders[i] = newFrameDecoder(dissector, cfg.VLAN)
	}
	p := &Pipeline{
		source:     cfg.Source,
		reporters:  cfg.Reporters,
		decoders:   decoders,
		partitions: newPartitioner(cfg.Workers, cfg.BufferSize),
		maxFrames:  maxFrames,
		metrics:    NewMetrics(name),
	}
	if cfg.TransactionTTL > 0 {
		p.tracker = conversation.NewTracker(cfg.TransactionTTL)
	}
	return p
}

// Start opens the source and starts the capture and process goroutines.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.source == nil {
		return fmt.Errorf("pipeline has no source")
	}
	if err := p.source.Start(ctx); err != nil {
		return err
	}
	if lt := p.source.LinkType(); lt != layers.LinkTypeEthernet {
		if err := p.source.Stop(); err != nil {
			log.GetLogger().WithError(err).Warn("source stop failed")
		}
		return fmt.Errorf("%w: %s", core.ErrUnsupportedLinkType, lt)
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	log.GetLogger().WithFields(map[string]interface{}{
		"source":  p.source.Name(),
		"workers": len(p.decoders),
	}).Info("pipeline starting")

	p.wg.Add(1 + len(p.decoders))
	go p.captureLoop()
	for i := range p.decoders {
		go p.processLoop(i)
	}
	return nil
}

// Run starts the pipeline and blocks until the source is exhausted, the frame
// limit is reached or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	return p.Wait()
}

// Wait blocks until all goroutines end, then flushes reporters and stops the source.
func (p *Pipeline) Wait() error {
	p.wg.Wait()
	p.once.Do(p.finish)

	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.captureErr
}

// Stop stops the pipeline gracefully.
func (p *Pipeline) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	return p.Wait()
}

func (p *Pipeline) finish() {
	if p.cancel == nil {
		// Never started.
		return
	}
	p.cancel()
	logger := log.GetLogger().WithField("source", p.source.Name())

	for _, reporter := range p.reporters {
		if err := reporter.Flush(context.Background()); err != nil {
			logger.WithError(err).WithField("reporter", reporter.Name()).Error("reporter flush failed")
		}
	}

	if ss, ok := p.source.(statsSource); ok {
		if packets, drops, err := ss.Stats(); err == nil {
			metrics.CaptureDropsTotal.WithLabelValues(p.source.Name(), "kernel").Add(float64(drops))
			logger.WithFields(map[string]interface{}{"packets": packets, "drops": drops}).Info("capture statistics")
		}
	}
	if err := p.source.Stop(); err != nil {
		logger.WithError(err).Warn("source stop failed")
	}

	s := p.Stats()
	fields := map[string]interface{}{
		"received": s.Received, "decoded": s.Decoded, "partial": s.Partial,
		"declined": s.Declined, "skipped": s.Skipped, "link_errors": s.LinkErrors,
	}
	if s.Transactions != nil {
		fields["usb_matched"] = s.Transactions.Matched
		fields["usb_unmatched"] = s.Transactions.Unmatched
	}
	logger.WithFields(fields).Info("pipeline stopped")
}

// captureLoop reads frames from the source and sends each to its partition.
func (p *Pipeline) captureLoop() {
	defer p.wg.Done()
	defer p.partitions.close()

	var number uint64
	for {
		if p.ctx.Err() != nil {
			return
		}
		data, ci, err := p.source.ReadPacket()
		if err != nil {
			if errors.Is(err, core.ErrCaptureTimeout) {
				continue
			}
			if !errors.Is(err, io.EOF) && p.ctx.Err() == nil {
				log.GetLogger().WithError(err).WithField("source", p.source.Name()).Error("capture failed")
				p.setErr(err)
			}
			return
		}

		number++
		raw := core.RawPacket{
			Data:       data,
			Timestamp:  ci.Timestamp,
			Number:     number,
			CaptureLen: uint32(ci.CaptureLength),
			OrigLen:    uint32(ci.Length),
		}
		select {
		case p.partitions.queue(data) <- raw:
		case <-p.ctx.Done():
			return
		}
		if number%1024 == 0 {
			p.partitions.observe()
		}
	}
}

// processLoop decodes and reports the frames of one partition.
func (p *Pipeline) processLoop(worker int) {
	defer p.wg.Done()
	decoder := p.decoders[worker]
	queue := p.partitions.queues[worker]

	for {
		select {
		case <-p.ctx.Done():
			return

		case raw, ok := <-queue:
			if !ok {
				return
			}
			p.metrics.received()
			if !p.processPacket(decoder, raw) {
				p.cancel()
				return
			}
		}
	}
}

// processPacket decodes one frame and reports it to every reporter. It returns
// false once the frame limit is reached.
func (p *Pipeline) processPacket(decoder *frameDecoder, raw core.RawPacket) bool {
	start := time.Now()
	out, result, err := decoder.decode(raw)
	metrics.DecodeLatencySeconds.Observe(time.Since(start).Seconds())

	var frame *ozwpan.Frame
	if out != nil {
		frame = out.Frame
	}
	p.metrics.result(result, frame)

	if err != nil {
		logger := log.GetLogger()
		if logger.IsDebugEnabled() {
			logger.WithError(err).WithFields(map[string]interface{}{"frame": raw.Number, "result": result}).
				Debug("frame not decoded")
		}
		return true
	}
	if out == nil {
		return true
	}
	more := true
	if p.maxFrames > 0 {
		n := p.admitted.Add(1)
		if n > p.maxFrames {
			// Another worker reported the last frame.
			return false
		}
		more = n < p.maxFrames
	}
	if p.tracker != nil {
		p.tracker.Observe(out)
	}

	for _, reporter := range p.reporters {
		err := reporter.Report(p.ctx, out)
		p.metrics.reported(reporter.Name(), err)
		if err != nil {
			log.GetLogger().WithError(err).WithField("reporter", reporter.Name()).Error("reporter failed")
		}
	}
	p.metrics.Reported.Add(1)
	return more
}

func (p *Pipeline) setErr(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.captureErr == nil {
		p.captureErr = err
	}
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	s := p.metrics.snapshot()
	if p.tracker != nil {
		ts := p.tracker.Stats()
		s.Transactions = &ts
	}
	return s
}
