package ozwpan

import (
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// EtherType is the ethertype OZWPAN frames are carried under.
const EtherType layers.EthernetType = 0x892e

// LayerTypeOZWPAN is the gopacket layer type of decoded OZWPAN frames.
var LayerTypeOZWPAN = gopacket.RegisterLayerType(1892, gopacket.LayerTypeMetadata{
	Name:    "OZWPAN",
	Decoder: gopacket.DecodeFunc(decodeOZWPAN),
})

func init() {
	layers.EthernetTypeMetadata[EtherType] = layers.EnumMetadata{
		DecodeWith: gopacket.DecodeFunc(decodeOZWPAN),
		Name:       "OZWPAN",
		LayerType:  LayerTypeOZWPAN,
	}
}

// Layer is an OZWPAN frame as a gopacket layer. It implements
// gopacket.DecodingLayer, so one Layer can be reused across frames in a
// DecodingLayerParser: set Meta before each DecodeLayers call.
type Layer struct {
	layers.BaseLayer

	// Meta is the capture metadata of the frame about to be decoded.
	Meta FrameMeta
	// Dissector decodes the frame; nil uses NewDissector.
	Dissector *Dissector
	// Recorder, when set, is reset and filled with the field tree of each frame.
	Recorder *Recorder

	Frame *Frame
}

// NewLayer returns a layer that records field trees.
func NewLayer() *Layer {
	return &Layer{Dissector: NewDissector(), Recorder: NewRecorder()}
}

func (l *Layer) LayerType() gopacket.LayerType     { return LayerTypeOZWPAN }
func (l *Layer) CanDecode() gopacket.LayerClass    { return LayerTypeOZWPAN }
func (l *Layer) NextLayerType() gopacket.LayerType { return gopacket.LayerTypeZero }

// DecodeFromBytes decodes data as one OZWPAN frame. A declined frame returns an
// error wrapping ErrNotOzwpan; decode problems mark the packet truncated.
func (l *Layer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if l.Dissector == nil {
		l.Dissector = NewDissector()
	}
	var sink Sink = Discard
	if l.Recorder != nil {
		l.Recorder.Reset()
		sink = l.Recorder
	}

	l.Frame = nil
	f, err := l.Dissector.Decode(data, l.Meta, sink)
	if err != nil {
		return err
	}
	l.Frame = f
	l.BaseLayer = layers.BaseLayer{Contents: data}

	for _, diag := range f.Diagnostics {
		if diag.Kind != DiagUnsupportedElement {
			df.SetTruncated()
			break
		}
	}
	return nil
}

// Tree returns the field tree of the last decoded frame, nil without a Recorder.
func (l *Layer) Tree() []*Node {
	if l.Recorder == nil {
		return nil
	}
	return l.Recorder.Root
}

func decodeOZWPAN(data []byte, p gopacket.PacketBuilder) error {
	l := NewLayer()
	if err := l.DecodeFromBytes(data, p); err != nil {
		if errors.Is(err, ErrNotOzwpan) {
			return p.NextDecoder(gopacket.LayerTypePayload)
		}
		return err
	}
	p.AddLayer(l)
	return nil
}
