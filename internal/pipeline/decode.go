package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/metrics"
	"firestige.xyz/ozwpan/internal/ozwpan"
)

// frameDecoder runs Ethernet, optional 802.1Q and OZWPAN over one link-layer
// frame. It reuses its layers and is not safe for concurrent use.
type frameDecoder struct {
	eth     layers.Ethernet
	dot1q   layers.Dot1Q
	oz      *ozwpan.Layer
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

func newFrameDecoder(d *ozwpan.Dissector, vlan bool) *frameDecoder {
	if d == nil {
		d = ozwpan.NewDissector()
	}
	fd := &frameDecoder{
		oz:      &ozwpan.Layer{Dissector: d, Recorder: ozwpan.NewRecorder()},
		decoded: make([]gopacket.LayerType, 0, 4),
	}
	decoders := []gopacket.DecodingLayer{&fd.eth, fd.oz}
	if vlan {
		decoders = append(decoders, &fd.dot1q)
	}
	fd.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, decoders...)
	fd.parser.IgnoreUnsupported = true
	return fd
}

// decode returns the output frame and its metrics result. The frame is nil
// unless the result is decoded or partial.
func (fd *frameDecoder) decode(raw core.RawPacket) (*core.OutputFrame, string, error) {
	fd.oz.Meta = ozwpan.FrameMeta{Number: raw.Number, Timestamp: raw.Timestamp}

	err := fd.parser.DecodeLayers(raw.Data, &fd.decoded)
	if err != nil {
		if errors.Is(err, ozwpan.ErrNotOzwpan) {
			return nil, metrics.ResultDeclined, err
		}
		if len(raw.Data) < 14 {
			err = fmt.Errorf("%w: %d bytes", core.ErrPacketTooShort, len(raw.Data))
		}
		return nil, metrics.ResultLinkError, err
	}

	var haveOz bool
	inner := fd.eth.EthernetType
	for _, t := range fd.decoded {
		switch t {
		case layers.LayerTypeDot1Q:
			inner = fd.dot1q.Type
		case ozwpan.LayerTypeOZWPAN:
			haveOz = true
		}
	}
	if !haveOz || fd.oz.Frame == nil {
		if inner == ozwpan.EtherType {
			// Empty payload never reaches the OZWPAN layer.
			return nil, metrics.ResultDeclined, ozwpan.ErrNotOzwpan
		}
		return nil, metrics.ResultSkipped, nil
	}

	frame := fd.oz.Frame
	out := &core.OutputFrame{
		Number:    raw.Number,
		Timestamp: raw.Timestamp,
		Ethernet: core.EthernetHeader{
			SrcMAC:    append([]byte(nil), fd.eth.SrcMAC...),
			DstMAC:    append([]byte(nil), fd.eth.DstMAC...),
			EtherType: uint16(ozwpan.EtherType),
			VLANs:     vlanIDs(&fd.eth),
		},
		Frame: frame,
		Tree:  fd.oz.Tree(),
	}
	out.Labels = frameLabels(out)

	result := metrics.ResultDecoded
	for _, diag := range frame.Diagnostics {
		if diag.Kind != ozwpan.DiagUnsupportedElement {
			result = metrics.ResultPartial
			break
		}
	}
	return out, result, nil
}

// vlanIDs lists the 802.1Q/802.1ad tags between the MAC addresses and the
// OZWPAN payload, outermost first.
func vlanIDs(eth *layers.Ethernet) []uint16 {
	t := eth.EthernetType
	rest := eth.Payload
	var ids []uint16
	for (t == layers.EthernetTypeDot1Q || t == layers.EthernetTypeQinQ) && len(rest) >= 4 {
		ids = append(ids, binary.BigEndian.Uint16(rest[0:2])&0x0fff)
		t = layers.EthernetType(binary.BigEndian.Uint16(rest[2:4]))
		rest = rest[4:]
	}
	return ids
}

func frameLabels(out *core.OutputFrame) core.Labels {
	f := out.Frame
	labels := core.Labels{
		core.LabelEthSrc:            out.Ethernet.SrcMAC.String(),
		core.LabelEthDst:            out.Ethernet.DstMAC.String(),
		core.LabelOzwpanKind:        f.Kind.String(),
		core.LabelOzwpanSummary:     f.Summary,
		core.LabelOzwpanPacketNum:   strconv.FormatUint(uint64(f.Header.PacketNum), 10),
		core.LabelOzwpanFlags:       f.Flags.String(),
		core.LabelOzwpanElements:    strconv.Itoa(len(f.Elements)),
		core.LabelOzwpanDiagnostics: strconv.Itoa(len(f.Diagnostics)),
	}
	if len(out.Ethernet.VLANs) > 0 {
		ids := make([]string, len(out.Ethernet.VLANs))
		for i, id := range out.Ethernet.VLANs {
			ids[i] = strconv.Itoa(int(id))
		}
		labels[core.LabelVLAN] = strings.Join(ids, ",")
	}
	return labels
}
