// Package ozwpan decodes the Ozmo Wireless Personal Area Network protocol, a
// USB-over-Wi-Fi link layer carried directly in Ethernet frames (ethertype
// 0x892E).
//
// A frame starts with a 6-byte control header. Frames longer than the header
// carry either one large isochronous unit (ISOC flag set) or a sequence of
// tagged elements. The application data element nests a USB sub-protocol made
// of chapter 9 request/response pairs and endpoint data units.
//
// Decoding is a single pass over one frame. Every decoded value is reported to a
// Sink as a Field; problems are reported as Diagnostics and never abort the pass.
package ozwpan

import (
	"errors"
	"fmt"
	"time"

	"firestige.xyz/ozwpan/internal/usb"
)

// ErrNotOzwpan is returned when a frame is too short or carries another
// protocol version. It signals "not mine", so callers can hand the bytes to
// another decoder.
var ErrNotOzwpan = errors.New("ozwpan: not an OZWPAN frame")

// FrameMeta carries capture metadata of the frame being decoded.
type FrameMeta struct {
	Number    uint64
	Timestamp time.Time
}

// Frame is the typed result of decoding one frame.
type Frame struct {
	Length      int           `json:"length" yaml:"length"`
	Header      ControlHeader `json:"header" yaml:"header"`
	Flags       Flags         `json:"flags" yaml:"flags"`
	Kind        FrameKind     `json:"kind" yaml:"kind"`
	Isoc        *IsocHeader   `json:"isoc,omitempty" yaml:"isoc,omitempty"`
	Elements    []Element     `json:"elements,omitempty" yaml:"elements,omitempty"`
	Summary     string        `json:"summary" yaml:"summary"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Dissector decodes frames. The zero value is ready to use and decodes USB
// descriptors with usb.NewDecoder. A Dissector holds no per-frame state and may
// be shared between goroutines as long as each call gets its own Sink.
type Dissector struct {
	Descriptors usb.Bridge
}

// NewDissector returns a dissector using the built-in USB descriptor decoder.
func NewDissector() *Dissector {
	return &Dissector{Descriptors: usb.NewDecoder()}
}

// Decode decodes one frame. It returns ErrNotOzwpan, wrapped, when the frame is
// declined; every other problem is reported as a Diagnostic on the frame and
// the sink. A nil sink discards the field records.
func (ds *Dissector) Decode(data []byte, meta FrameMeta, sink Sink) (*Frame, error) {
	if sink == nil {
		sink = Discard
	}
	c := NewCursor(data)
	h, err := parseHeader(c)
	if err != nil {
		return nil, err
	}

	bridge := ds.Descriptors
	if bridge == nil {
		bridge = usb.NewDecoder()
	}
	frame := &Frame{
		Length: c.Len(),
		Header: h,
		Flags:  h.Flags(),
		Kind:   classify(h, c.Len()),
	}
	d := &decoder{sink: sink, frame: frame, bridge: bridge, meta: meta}

	sink.Begin(hfProtocol.Text(0, c.Len(), hfProtocol.Name))
	d.summary("Control Frame")
	d.emitHeader(c, h)
	switch frame.Kind {
	case KindIsoc:
		frame.Isoc = d.isoc(c)
	case KindElements:
		body, _ := c.Tail(headerLen)
		d.walkElements(body)
	}
	sink.End()
	return frame, nil
}

// decoder is the state of one Decode call.
type decoder struct {
	sink   Sink
	frame  *Frame
	bridge usb.Bridge
	meta   FrameMeta
}

func (d *decoder) summary(s string) {
	d.frame.Summary = s
	d.sink.SetSummary(s)
}

func (d *decoder) diagnose(diag Diagnostic) {
	d.frame.Diagnostics = append(d.frame.Diagnostics, diag)
	d.sink.AddDiagnostic(diag)
}

// truncated reports a layout that ran out of bytes at window offset off.
func (d *decoder) truncated(c Cursor, off int, what string, err error) {
	d.diagnose(Diagnostic{
		Kind:     DiagTruncated,
		Severity: SeverityWarning,
		Offset:   c.Abs(off),
		Length:   c.Remaining(off),
		Message:  fmt.Sprintf("%s truncated: %v", what, err),
	})
}

func (d *decoder) u8(c Cursor, off int, fi *FieldInfo) (uint8, error) {
	v, err := c.Uint8(off)
	if err != nil {
		return 0, err
	}
	d.sink.AddField(fi.Uint(c.Abs(off), 1, uint64(v)))
	return v, nil
}

func (d *decoder) u16(c Cursor, off int, fi *FieldInfo) (uint16, error) {
	v, err := c.Uint16(off)
	if err != nil {
		return 0, err
	}
	d.sink.AddField(fi.Uint(c.Abs(off), 2, uint64(v)))
	return v, nil
}

func (d *decoder) bytes(c Cursor, off, n int, fi *FieldInfo) (Range, error) {
	b, err := c.Bytes(off, n)
	if err != nil {
		return Range{}, err
	}
	d.sink.AddField(fi.Bytes(c.Abs(off), b))
	return Range{Offset: c.Abs(off), Length: n}, nil
}

// tail emits the bytes from off to the end of the window.
func (d *decoder) tail(c Cursor, off int, fi *FieldInfo) (Range, error) {
	return d.bytes(c, off, c.Len()-off, fi)
}

// fieldReader reads the consecutive fields of one fixed layout and keeps the
// first failure, so a decoder reads its whole layout and checks once. Reads
// after a failure are skipped and return zero values.
type fieldReader struct {
	d   *decoder
	c   Cursor
	err error
}

func (d *decoder) reader(c Cursor) *fieldReader {
	return &fieldReader{d: d, c: c}
}

func (r *fieldReader) u8(off int, fi *FieldInfo) uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.u8(r.c, off, fi)
	r.err = err
	return v
}

func (r *fieldReader) u16(off int, fi *FieldInfo) uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.u16(r.c, off, fi)
	r.err = err
	return v
}

func (r *fieldReader) bytes(off, n int, fi *FieldInfo) Range {
	if r.err != nil {
		return Range{}
	}
	rg, err := r.d.bytes(r.c, off, n, fi)
	r.err = err
	return rg
}

func (r *fieldReader) tail(off int, fi *FieldInfo) Range {
	if r.err != nil {
		return Range{}
	}
	rg, err := r.d.tail(r.c, off, fi)
	r.err = err
	return rg
}

// bitfield emits a byte as a subtree holding one field per bit group.
func (d *decoder) bitfield(c Cursor, off int, parent *FieldInfo, parts ...*FieldInfo) (uint8, error) {
	v, err := c.Uint8(off)
	if err != nil {
		return 0, err
	}
	d.sink.Begin(parent.Uint(c.Abs(off), 1, uint64(v)))
	for _, fi := range parts {
		d.sink.AddField(fi.Uint(c.Abs(off), 1, uint64(v)))
	}
	d.sink.End()
	return v, nil
}

func (r *fieldReader) bitfield(off int, parent *FieldInfo, parts ...*FieldInfo) uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.bitfield(r.c, off, parent, parts...)
	r.err = err
	return v
}
