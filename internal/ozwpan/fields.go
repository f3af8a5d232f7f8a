package ozwpan

import (
	"encoding/hex"
	"fmt"
	"math/bits"
	"sort"
)

// Base selects how a numeric field value is rendered.
type Base uint8

const (
	BaseNone Base = iota
	BaseDec
	BaseHex
	BaseBool
)

// FieldInfo is the static description of a field: its filter abbreviation,
// display name and rendering rules. Decoding never depends on it.
type FieldInfo struct {
	Abbrev string
	Name   string
	Base   Base
	// Mask selects the bits of the raw value that belong to the field; the
	// value is shifted down by the mask's trailing zeros.
	Mask uint64
	// Lookup maps a value to a human readable string.
	Lookup func(v uint64) (string, bool)
}

func (fi *FieldInfo) value(raw uint64) uint64 {
	if fi.Mask == 0 {
		return raw
	}
	return (raw & fi.Mask) >> bits.TrailingZeros64(fi.Mask)
}

func (fi *FieldInfo) render(v uint64) string {
	var s string
	switch fi.Base {
	case BaseHex:
		s = fmt.Sprintf("0x%02x", v)
	case BaseBool:
		if v != 0 {
			s = "Set"
		} else {
			s = "Not set"
		}
	default:
		s = fmt.Sprintf("%d", v)
	}
	if fi.Lookup != nil {
		if name, ok := fi.Lookup(v); ok {
			return fmt.Sprintf("%s: %s (%s)", fi.Name, name, s)
		}
	}
	return fmt.Sprintf("%s: %s", fi.Name, s)
}

// Uint builds a field for a numeric value read from the frame.
func (fi *FieldInfo) Uint(offset, length int, raw uint64) Field {
	v := fi.value(raw)
	var value any = v
	if fi.Base == BaseBool {
		value = v != 0
	}
	return Field{
		Abbrev:  fi.Abbrev,
		Name:    fi.Name,
		Offset:  offset,
		Length:  length,
		Value:   value,
		Display: fi.render(v),
	}
}

const maxDisplayBytes = 24

// Bytes builds a field for an opaque byte run.
func (fi *FieldInfo) Bytes(offset int, b []byte) Field {
	shown := b
	suffix := ""
	if len(shown) > maxDisplayBytes {
		shown = shown[:maxDisplayBytes]
		suffix = "..."
	}
	display := fmt.Sprintf("%s: %s%s", fi.Name, hex.EncodeToString(shown), suffix)
	if len(b) == 0 {
		display = fmt.Sprintf("%s: <MISSING>", fi.Name)
	}
	return Field{
		Abbrev:  fi.Abbrev,
		Name:    fi.Name,
		Offset:  offset,
		Length:  len(b),
		Value:   hex.EncodeToString(b),
		Display: display,
	}
}

// Text builds a field whose display is supplied by the caller.
func (fi *FieldInfo) Text(offset, length int, display string) Field {
	return Field{
		Abbrev:  fi.Abbrev,
		Name:    fi.Name,
		Offset:  offset,
		Length:  length,
		Display: display,
	}
}

func lookupIn[K ~uint8](m map[K]string) func(uint64) (string, bool) {
	return func(v uint64) (string, bool) {
		if v > 0xff {
			return "", false
		}
		s, ok := m[K(v)]
		return s, ok
	}
}

var (
	hfProtocol = &FieldInfo{Abbrev: "ozwpan", Name: "Ozmo Wireless Personal Area Network"}

	hfControl       = &FieldInfo{Abbrev: "ozwpan.control", Name: "Control", Base: BaseHex}
	hfVersion       = &FieldInfo{Abbrev: "ozwpan.version", Name: "Protocol Version", Base: BaseDec, Mask: versionMask}
	hfFlags         = &FieldInfo{Abbrev: "ozwpan.flags", Name: "Flags", Base: BaseHex, Mask: flagMask}
	hfFlagAck       = &FieldInfo{Abbrev: "ozwpan.flags.ack", Name: "ACK", Base: BaseBool, Mask: uint64(FlagAck)}
	hfFlagIsoc      = &FieldInfo{Abbrev: "ozwpan.flags.isoc", Name: "ISOC", Base: BaseBool, Mask: uint64(FlagIsoc)}
	hfFlagMoreData  = &FieldInfo{Abbrev: "ozwpan.flags.more_data", Name: "MORE DATA", Base: BaseBool, Mask: uint64(FlagMoreData)}
	hfFlagRequestAk = &FieldInfo{Abbrev: "ozwpan.flags.rack", Name: "REQUEST ACK", Base: BaseBool, Mask: uint64(FlagAckRequested)}
	hfLastPktNum    = &FieldInfo{Abbrev: "ozwpan.last_packet_num", Name: "Last Packet Number", Base: BaseDec}
	hfPktNum        = &FieldInfo{Abbrev: "ozwpan.packet_number", Name: "Packet Number", Base: BaseDec}
	hfMsData        = &FieldInfo{Abbrev: "ozwpan.ms_data", Name: "MS Data", Base: BaseDec}

	hfElements      = &FieldInfo{Abbrev: "ozwpan.elements", Name: "Elements"}
	hfElement       = &FieldInfo{Abbrev: "ozwpan.element", Name: "Element"}
	hfElementType   = &FieldInfo{Abbrev: "ozwpan.element.type", Name: "Element Type", Base: BaseDec, Lookup: lookupIn(elementTypeNames)}
	hfElementLength = &FieldInfo{Abbrev: "ozwpan.element.length", Name: "Element Length", Base: BaseDec}
	hfElementData   = &FieldInfo{Abbrev: "ozwpan.element.data", Name: "Element Data"}

	hfMode        = &FieldInfo{Abbrev: "ozwpan.mode", Name: "Connection Mode", Base: BaseDec, Mask: modeMask, Lookup: lookupIn(connectModeNames)}
	hfModeNoElts  = &FieldInfo{Abbrev: "ozwpan.mode.isoc_no_elts", Name: "ISOC No Elements", Base: BaseBool, Mask: ModeIsocNoElts}
	hfModeAnytime = &FieldInfo{Abbrev: "ozwpan.mode.isoc_anytime", Name: "ISOC Anytime", Base: BaseBool, Mask: ModeIsocAnytime}
	hfStatus      = &FieldInfo{Abbrev: "ozwpan.status", Name: "Status Code", Base: BaseDec, Lookup: lookupIn(statusNames)}
	hfPDInfo      = &FieldInfo{Abbrev: "ozwpan.pd_info", Name: "PD Info", Base: BaseDec}
	hfSessionID   = &FieldInfo{Abbrev: "ozwpan.session_id", Name: "Session ID", Base: BaseDec}
	hfPresleep    = &FieldInfo{Abbrev: "ozwpan.presleep", Name: "Presleep", Base: BaseDec}
	hfIsocLatency = &FieldInfo{Abbrev: "ozwpan.ms_isoc_latency", Name: "ISOC Latency", Base: BaseDec}
	hfHostVendor  = &FieldInfo{Abbrev: "ozwpan.host_vendor", Name: "Host Vendor", Base: BaseHex}
	hfKeepAlive   = &FieldInfo{
		Abbrev: "ozwpan.keep_alive", Name: "Keep Alive", Base: BaseDec,
		Lookup: func(v uint64) (string, bool) { return keepAliveString(uint8(v)), true },
	}
	hfApps        = &FieldInfo{Abbrev: "ozwpan.apps", Name: "Supported Apps", Base: BaseHex}
	hfMaxLenDiv16 = &FieldInfo{Abbrev: "ozwpan.max_len_div16", Name: "Max Length in 16 Byte Units", Base: BaseDec}
	hfMsPerIsoc   = &FieldInfo{Abbrev: "ozwpan.ms_per_isoc", Name: "MS per ISOC", Base: BaseDec}
	hfReserved    = &FieldInfo{Abbrev: "ozwpan.reserved", Name: "Reserved"}

	hfEPNum     = &FieldInfo{Abbrev: "ozwpan.ep_num", Name: "Endpoint Number", Base: BaseHex}
	hfIndex     = &FieldInfo{Abbrev: "ozwpan.index", Name: "Index", Base: BaseHex}
	hfReport    = &FieldInfo{Abbrev: "ozwpan.report", Name: "Report"}
	hfAppID     = &FieldInfo{Abbrev: "ozwpan.app_id", Name: "Application ID", Base: BaseDec, Lookup: lookupIn(appNames)}
	hfSeqNum    = &FieldInfo{Abbrev: "ozwpan.seq_num", Name: "Sequence Number", Base: BaseHex}
	hfUSBType   = &FieldInfo{Abbrev: "ozwpan.usb_type", Name: "USB Type", Base: BaseDec, Lookup: lookupIn(usbOpNames)}
	hfUSBFormat = &FieldInfo{
		Abbrev: "ozwpan.usb_format", Name: "USB Format", Base: BaseDec,
		Lookup: func(v uint64) (string, bool) {
			s, ok := dataFormatNames[DataFormat(v&dataFormatMask)]
			return s, ok
		},
	}
	hfUnitSize = &FieldInfo{Abbrev: "ozwpan.unit_size", Name: "Unit Size", Base: BaseDec}
	hfFrameNum = &FieldInfo{Abbrev: "ozwpan.frame_number", Name: "Frame Number", Base: BaseDec}
	hfAppData  = &FieldInfo{Abbrev: "ozwpan.data", Name: "Application Data"}

	hfReqID       = &FieldInfo{Abbrev: "ozwpan.req_id", Name: "Request ID", Base: BaseDec}
	hfOffset      = &FieldInfo{Abbrev: "ozwpan.offset", Name: "Offset", Base: BaseHex}
	hfSize        = &FieldInfo{Abbrev: "ozwpan.size", Name: "Size", Base: BaseHex}
	hfRcode       = &FieldInfo{Abbrev: "ozwpan.rcode", Name: "Return Code", Base: BaseHex}
	hfReqType     = &FieldInfo{Abbrev: "ozwpan.req_type", Name: "Request Type", Base: BaseHex}
	hfRecipient   = &FieldInfo{Abbrev: "ozwpan.recp", Name: "Recipient", Base: BaseDec, Mask: recipientMask, Lookup: lookupIn(recipientNames)}
	hfRequestKind = &FieldInfo{Abbrev: "ozwpan.reqt", Name: "Type", Base: BaseDec, Mask: requestKindMask, Lookup: lookupIn(requestKindNames)}
	hfDirection   = &FieldInfo{Abbrev: "ozwpan.dptd", Name: "Data Phase Transfer Direction", Base: BaseDec, Mask: directionMask, Lookup: lookupIn(directionNames)}
	hfDescType    = &FieldInfo{Abbrev: "ozwpan.desc_type", Name: "Descriptor Type", Base: BaseDec, Lookup: lookupIn(descTypeNames)}
	hfWIndex      = &FieldInfo{Abbrev: "ozwpan.w_index", Name: "wIndex", Base: BaseHex}
	hfLength      = &FieldInfo{Abbrev: "ozwpan.length", Name: "Length", Base: BaseDec}
	hfDescriptor  = &FieldInfo{Abbrev: "ozwpan.descriptor", Name: "USB Descriptor"}
)

var fieldTable = []*FieldInfo{
	hfProtocol, hfControl, hfVersion, hfFlags, hfFlagAck, hfFlagIsoc, hfFlagMoreData,
	hfFlagRequestAk, hfLastPktNum, hfPktNum, hfMsData, hfElements, hfElement,
	hfElementType, hfElementLength, hfElementData, hfMode, hfModeNoElts, hfModeAnytime,
	hfStatus, hfPDInfo, hfSessionID, hfPresleep, hfIsocLatency, hfHostVendor,
	hfKeepAlive, hfApps, hfMaxLenDiv16, hfMsPerIsoc, hfReserved, hfEPNum, hfIndex,
	hfReport, hfAppID, hfSeqNum, hfUSBType, hfUSBFormat, hfUnitSize, hfFrameNum,
	hfAppData, hfReqID, hfOffset, hfSize, hfRcode, hfReqType, hfRecipient,
	hfRequestKind, hfDirection, hfDescType, hfWIndex, hfLength, hfDescriptor,
}

// Fields lists every field the dissector can emit, sorted by abbreviation.
func Fields() []FieldInfo {
	out := make([]FieldInfo, 0, len(fieldTable))
	for _, fi := range fieldTable {
		out = append(out, *fi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Abbrev < out[j].Abbrev })
	return out
}
