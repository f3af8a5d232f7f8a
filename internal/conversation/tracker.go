// Package conversation follows USB control transactions across OZWPAN frames
// exchanged between one host and one device.
package conversation

import (
	"bytes"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/metrics"
	"firestige.xyz/ozwpan/internal/ozwpan"
)

// Key identifies the conversation between two stations regardless of direction.
func Key(a, b net.HardwareAddr) string {
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	return string(a) + string(b)
}

// pending is a GET_DESCRIPTOR request waiting for its response.
type pending struct {
	frame     uint64
	timestamp time.Time
	matched   atomic.Bool
}

// Stats counts pairing outcomes.
type Stats struct {
	Matched   uint64 `json:"matched" yaml:"matched"`
	Unmatched uint64 `json:"unmatched" yaml:"unmatched"`
	Expired   uint64 `json:"expired" yaml:"expired"`
	Pending   int    `json:"pending" yaml:"pending"`
}

// Tracker pairs GET_DESCRIPTOR responses with their requests by conversation
// and request id. A request is forgotten after ttl, measured both in wall time
// and in capture time, so offline traces pair the same way live captures do.
// Tracker is safe for concurrent use.
type Tracker struct {
	ttl     time.Duration
	pending *cache.Cache

	matched   atomic.Uint64
	unmatched atomic.Uint64
	expired   atomic.Uint64
}

// NewTracker returns a tracker keeping unanswered requests for ttl.
func NewTracker(ttl time.Duration) *Tracker {
	t := &Tracker{ttl: ttl, pending: cache.New(ttl, cleanupInterval(ttl))}
	t.pending.OnEvicted(func(_ string, v interface{}) {
		if p, ok := v.(*pending); ok && !p.matched.Load() {
			t.expired.Add(1)
			metrics.TransactionsTotal.WithLabelValues(metrics.TransactionExpired).Inc()
		}
	})
	return t
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

// Observe records the requests carried by out and labels out with the request
// a response answers.
func (t *Tracker) Observe(out *core.OutputFrame) {
	if out == nil || out.Frame == nil {
		return
	}
	conv := Key(out.Ethernet.SrcMAC, out.Ethernet.DstMAC)
	for _, e := range out.Frame.Elements {
		ad, ok := e.Decoded.(*ozwpan.AppData)
		if !ok || ad.USB == nil {
			continue
		}
		switch {
		case ad.USB.GetDescriptorRequest != nil:
			req := ad.USB.GetDescriptorRequest
			if req.Incomplete {
				continue
			}
			t.pending.SetDefault(requestKey(conv, req.ReqID), &pending{frame: out.Number, timestamp: out.Timestamp})
		case ad.USB.GetDescriptorResponse != nil:
			rsp := ad.USB.GetDescriptorResponse
			t.answer(out, rsp, requestKey(conv, rsp.ReqID))
		}
	}
}

// answer pairs rsp with its pending request and points the response's
// transaction context at the request frame.
func (t *Tracker) answer(out *core.OutputFrame, rsp *ozwpan.GetDescriptorResponse, key string) {
	v, found := t.pending.Get(key)
	if !found {
		t.unmatched.Add(1)
		metrics.TransactionsTotal.WithLabelValues(metrics.TransactionUnmatched).Inc()
		return
	}
	p := v.(*pending)
	elapsed := out.Timestamp.Sub(p.timestamp)
	if elapsed > t.ttl {
		// Delete reports it as expired.
		t.pending.Delete(key)
		t.unmatched.Add(1)
		metrics.TransactionsTotal.WithLabelValues(metrics.TransactionUnmatched).Inc()
		return
	}
	p.matched.Store(true)
	t.pending.Delete(key)
	t.matched.Add(1)
	metrics.TransactionsTotal.WithLabelValues(metrics.TransactionMatched).Inc()

	rsp.Transaction.RequestIn = p.frame
	rsp.Transaction.RequestTime = p.timestamp
	if rsp.Descriptor != nil {
		// The decoder rendered the per-call context; point the tree at the request.
		f := rsp.Descriptor.SetRequestIn(p.frame)
		ozwpan.ReplaceField(out.Tree, ozwpan.Field(f))
	}

	if out.Labels == nil {
		out.Labels = core.Labels{}
	}
	out.Labels[core.LabelUSBRequestIn] = strconv.FormatUint(p.frame, 10)
	out.Labels[core.LabelUSBResponseTime] = elapsed.String()
}

func requestKey(conv string, reqID uint8) string {
	return conv + strconv.Itoa(int(reqID))
}

// Stats returns the pairing counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Matched:   t.matched.Load(),
		Unmatched: t.unmatched.Load(),
		Expired:   t.expired.Load(),
		Pending:   t.pending.ItemCount(),
	}
}
