// Package core defines core types.
package core

// Labels represents key-value metadata attached to an output frame.
type Labels map[string]string

// Label naming constants following {protocol}.{field} convention.
const (
	LabelEthSrc = "eth.src"
	LabelEthDst = "eth.dst"
	LabelVLAN   = "eth.vlan" // Comma-separated list of VLAN IDs, outermost first

	LabelOzwpanKind        = "ozwpan.kind"          // control | isoc | elements
	LabelOzwpanSummary     = "ozwpan.summary"       // Summary line of the frame
	LabelOzwpanPacketNum   = "ozwpan.packet_number" // Packet number (decimal)
	LabelOzwpanFlags       = "ozwpan.flags"         // Comma-joined flag names or <None>
	LabelOzwpanElements    = "ozwpan.elements"      // Number of decoded elements
	LabelOzwpanDiagnostics = "ozwpan.diagnostics"   // Number of diagnostics raised

	LabelUSBRequestIn    = "ozwpan.usb.request_in"    // Frame number of the matching GET_DESCRIPTOR request
	LabelUSBResponseTime = "ozwpan.usb.response_time" // Capture time between request and response
)
