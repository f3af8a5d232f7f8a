package ozwpan

import (
	"fmt"
	"strings"
)

// Control byte layout.
const (
	headerLen       = 6 // smallest valid frame
	protocolVersion = 0x1
	versionMask     = 0x0c
	versionShift    = 2
	flagMask        = 0xf0

	isocHeaderLen = 4
)

// Flags are the top four bits of the control byte.
type Flags uint8

const (
	FlagAck          Flags = 0x10
	FlagIsoc         Flags = 0x20
	FlagMoreData     Flags = 0x40
	FlagAckRequested Flags = 0x80
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagAck, "ACK"},
	{FlagIsoc, "ISOC"},
	{FlagMoreData, "MORE"},
	{FlagAckRequested, "RACK"},
}

// Has reports whether every bit of f2 is set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// String joins the set flag names with ", ", or returns "<None>".
func (f Flags) String() string {
	var names []string
	for _, def := range flagNames {
		if f.Has(def.flag) {
			names = append(names, def.name)
		}
	}
	if len(names) == 0 {
		return "<None>"
	}
	return strings.Join(names, ", ")
}

// MarshalText renders the flag set by name.
func (f Flags) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// ControlHeader is the fixed 6-byte frame header.
type ControlHeader struct {
	Control       uint8  `json:"control" yaml:"control"`
	LastPacketNum uint8  `json:"last_packet_num" yaml:"last_packet_num"`
	PacketNum     uint32 `json:"packet_num" yaml:"packet_num"`
}

// Version returns the protocol version carried in bits 2-3.
func (h ControlHeader) Version() uint8 { return (h.Control & versionMask) >> versionShift }

// Flags returns the flag bits of the control byte.
func (h ControlHeader) Flags() Flags { return Flags(h.Control & flagMask) }

// FrameKind classifies a frame by what follows the header.
type FrameKind uint8

const (
	KindControl  FrameKind = iota // header only
	KindIsoc                      // large isochronous frame
	KindElements                  // tagged element sequence
)

func (k FrameKind) String() string {
	switch k {
	case KindControl:
		return "control"
	case KindIsoc:
		return "isoc"
	case KindElements:
		return "elements"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText renders the kind by name.
func (k FrameKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// IsocHeader is the 4-byte sub-header of a large isoc frame.
type IsocHeader struct {
	EPNum    uint8 `json:"ep_num" yaml:"ep_num"`
	Format   uint8 `json:"format" yaml:"format"`
	MsData   uint8 `json:"ms_data" yaml:"ms_data"`
	FrameNum uint8 `json:"frame_num" yaml:"frame_num"`
	Payload  Range `json:"payload" yaml:"payload"`
}

// parseHeader reads the control header, declining frames that are too short or
// carry another protocol version.
func parseHeader(c Cursor) (ControlHeader, error) {
	if c.Len() < headerLen {
		return ControlHeader{}, fmt.Errorf("%w: %d bytes", ErrNotOzwpan, c.Len())
	}
	control, _ := c.Uint8(0)
	if control&versionMask != protocolVersion<<versionShift {
		return ControlHeader{}, fmt.Errorf("%w: version %d", ErrNotOzwpan, (control&versionMask)>>versionShift)
	}
	last, _ := c.Uint8(1)
	num, _ := c.Uint32(2)
	return ControlHeader{Control: control, LastPacketNum: last, PacketNum: num}, nil
}

func classify(h ControlHeader, length int) FrameKind {
	switch {
	case length == headerLen:
		return KindControl
	case h.Flags().Has(FlagIsoc):
		return KindIsoc
	default:
		return KindElements
	}
}

func (d *decoder) emitHeader(c Cursor, h ControlHeader) {
	ctl := uint64(h.Control)
	d.sink.Begin(hfControl.Uint(c.Abs(0), 1, ctl))
	d.sink.AddField(hfVersion.Uint(c.Abs(0), 1, ctl))

	flags := hfFlags.Uint(c.Abs(0), 1, ctl)
	flags.Display = fmt.Sprintf("Flags: 0x%x (%s)", h.Control&flagMask, h.Flags())
	d.sink.Begin(flags)
	d.sink.AddField(hfFlagAck.Uint(c.Abs(0), 1, ctl))
	d.sink.AddField(hfFlagIsoc.Uint(c.Abs(0), 1, ctl))
	d.sink.AddField(hfFlagMoreData.Uint(c.Abs(0), 1, ctl))
	d.sink.AddField(hfFlagRequestAk.Uint(c.Abs(0), 1, ctl))
	d.sink.End()
	d.sink.End()

	d.sink.AddField(hfLastPktNum.Uint(c.Abs(1), 1, uint64(h.LastPacketNum)))
	d.sink.AddField(hfPktNum.Uint(c.Abs(2), 4, uint64(h.PacketNum)))
}

// isoc decodes the sub-header and trailing application data of a large isoc frame.
func (d *decoder) isoc(c Cursor) *IsocHeader {
	d.summary("Large ISOC Frame")
	body, _ := c.Tail(headerLen)
	r := d.reader(body)
	ih := &IsocHeader{}
	ih.EPNum = r.u8(0, hfEPNum)
	ih.Format = r.u8(1, hfUSBFormat)
	ih.MsData = r.u8(2, hfMsData)
	ih.FrameNum = r.u8(3, hfFrameNum)
	ih.Payload = r.tail(isocHeaderLen, hfAppData)
	if r.err != nil {
		d.truncated(body, 0, "Large ISOC header", r.err)
	}
	return ih
}
