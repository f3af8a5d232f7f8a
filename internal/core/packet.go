// Package core defines the data structures passed between sources, the
// pipeline and reporters.
package core

import (
	"net"
	"time"

	"firestige.xyz/ozwpan/internal/ozwpan"
)

// RawPacket is one captured link-layer frame, zero-copy reference to the source buffer.
type RawPacket struct {
	Data       []byte    // Raw frame data
	Timestamp  time.Time // Capture timestamp
	Number     uint64    // 1-based frame number within the capture
	CaptureLen uint32    // Actual captured length
	OrigLen    uint32    // Original frame length
}

// EthernetHeader represents the L2 header in front of the OZWPAN payload.
type EthernetHeader struct {
	SrcMAC    net.HardwareAddr
	DstMAC    net.HardwareAddr
	EtherType uint16   // Innermost EtherType, 0x892E for OZWPAN
	VLANs     []uint16 // 0~2 VLAN IDs (QinQ scenarios have 2)
}

// OutputFrame is the final output sent to reporters.
type OutputFrame struct {
	Number    uint64
	Timestamp time.Time
	Ethernet  EthernetHeader

	// Labels carry the frame-level summary values.
	Labels Labels

	// Frame is the typed decode result, Tree the field records emitted while decoding.
	Frame *ozwpan.Frame
	Tree  []*ozwpan.Node
}
