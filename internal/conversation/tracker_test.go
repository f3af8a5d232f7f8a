package conversation

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/ozwpan"
)

var (
	host, _   = net.ParseMAC("00:11:22:33:44:55")
	device, _ = net.ParseMAC("66:77:88:99:aa:bb")
	t0        = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

// usbFrame wraps one USB application data unit in an elements frame.
func usbFrame(op byte, body ...byte) []byte {
	unit := append([]byte{0x01, 0x00, op}, body...)
	return append([]byte{0x04, 0x00, 0x01, 0x00, 0x00, 0x00, 0x31, byte(len(unit))}, unit...)
}

func getDescriptorRequest(reqID byte) []byte {
	return usbFrame(0x01, reqID, 0x00, 0x00, 0x12, 0x00, 0x80, 0x01, 0x00, 0x00, 0x12)
}

func getDescriptorResponse(reqID byte) []byte {
	// Header only: size 0 needs no descriptor bytes.
	return usbFrame(0x02, reqID, 0x00, 0x00, 0x00, 0x00, 0x00)
}

// deviceDescriptorResponse answers reqID with a complete device descriptor.
func deviceDescriptorResponse(reqID byte) []byte {
	return usbFrame(0x02, reqID, 0x00, 0x00, 0x12, 0x00, 0x00,
		0x12, 0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0x40,
		0x34, 0x12, 0x78, 0x56, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01)
}

func requestInFields(nodes []*ozwpan.Node) []ozwpan.Field {
	var out []ozwpan.Field
	for _, n := range nodes {
		if n.Abbrev == "usb.request_in" {
			out = append(out, n.Field)
		}
		out = append(out, requestInFields(n.Children)...)
	}
	return out
}

func output(t *testing.T, number uint64, ts time.Time, src, dst net.HardwareAddr, data []byte) *core.OutputFrame {
	t.Helper()
	f, err := ozwpan.NewDissector().Decode(data, ozwpan.FrameMeta{Number: number, Timestamp: ts}, nil)
	require.NoError(t, err)
	return &core.OutputFrame{
		Number:    number,
		Timestamp: ts,
		Ethernet:  core.EthernetHeader{SrcMAC: src, DstMAC: dst, EtherType: uint16(ozwpan.EtherType)},
		Labels:    core.Labels{},
		Frame:     f,
	}
}

func response(t *testing.T, out *core.OutputFrame) *ozwpan.GetDescriptorResponse {
	t.Helper()
	require.Len(t, out.Frame.Elements, 1)
	ad, ok := out.Frame.Elements[0].Decoded.(*ozwpan.AppData)
	require.True(t, ok)
	require.NotNil(t, ad.USB.GetDescriptorResponse)
	return ad.USB.GetDescriptorResponse
}

func TestKeyIgnoresDirection(t *testing.T) {
	assert.Equal(t, Key(host, device), Key(device, host))
	other, _ := net.ParseMAC("66:77:88:99:aa:bc")
	assert.NotEqual(t, Key(host, device), Key(host, other))
}

func TestTrackerPairsResponse(t *testing.T) {
	tr := NewTracker(time.Minute)

	tr.Observe(output(t, 1, t0, host, device, getDescriptorRequest(5)))
	rsp := output(t, 2, t0.Add(1500*time.Microsecond), device, host, getDescriptorResponse(5))
	tr.Observe(rsp)

	assert.Equal(t, "1", rsp.Labels[core.LabelUSBRequestIn])
	assert.Equal(t, "1.5ms", rsp.Labels[core.LabelUSBResponseTime])
	tc := response(t, rsp).Transaction
	assert.Equal(t, uint64(1), tc.RequestIn)
	assert.Equal(t, t0, tc.RequestTime)

	assert.Equal(t, Stats{Matched: 1}, tr.Stats())
}

func TestTrackerUnmatched(t *testing.T) {
	tr := NewTracker(time.Minute)

	tr.Observe(output(t, 1, t0, host, device, getDescriptorRequest(5)))

	// Different request id.
	rsp := output(t, 2, t0, device, host, getDescriptorResponse(6))
	tr.Observe(rsp)
	assert.NotContains(t, rsp.Labels, core.LabelUSBRequestIn)

	// Same request id, other conversation.
	other, _ := net.ParseMAC("02:00:00:00:00:01")
	tr.Observe(output(t, 3, t0, other, host, getDescriptorResponse(5)))

	st := tr.Stats()
	assert.Equal(t, uint64(0), st.Matched)
	assert.Equal(t, uint64(2), st.Unmatched)
	assert.Equal(t, 1, st.Pending)
}

func TestTrackerCaptureTimeTTL(t *testing.T) {
	tr := NewTracker(time.Second)

	tr.Observe(output(t, 1, t0, host, device, getDescriptorRequest(9)))
	rsp := output(t, 2, t0.Add(2*time.Second), device, host, getDescriptorResponse(9))
	tr.Observe(rsp)

	assert.NotContains(t, rsp.Labels, core.LabelUSBRequestIn)
	st := tr.Stats()
	assert.Equal(t, uint64(1), st.Unmatched)
	assert.Equal(t, uint64(1), st.Expired)
	assert.Equal(t, 0, st.Pending)
}

func TestTrackerAnswersOnce(t *testing.T) {
	tr := NewTracker(time.Minute)

	tr.Observe(output(t, 1, t0, host, device, getDescriptorRequest(1)))
	tr.Observe(output(t, 2, t0, device, host, getDescriptorResponse(1)))
	again := output(t, 3, t0, device, host, getDescriptorResponse(1))
	tr.Observe(again)

	assert.NotContains(t, again.Labels, core.LabelUSBRequestIn)
	assert.Equal(t, Stats{Matched: 1, Unmatched: 1}, tr.Stats())
}

func TestTrackerIgnoresIncompleteRequestsAndOtherFrames(t *testing.T) {
	tr := NewTracker(time.Minute)

	tr.Observe(nil)
	tr.Observe(&core.OutputFrame{})
	tr.Observe(output(t, 1, t0, host, device, usbFrame(0x01, 0x05, 0x00)))
	tr.Observe(output(t, 2, t0, host, device, []byte{0x04, 0x00, 0x01, 0x00, 0x00, 0x00}))

	assert.Equal(t, Stats{}, tr.Stats())
}

func TestTrackerNilLabels(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.Observe(output(t, 1, t0, host, device, getDescriptorRequest(2)))
	rsp := output(t, 2, t0, device, host, getDescriptorResponse(2))
	rsp.Labels = nil
	tr.Observe(rsp)
	assert.Equal(t, "1", rsp.Labels[core.LabelUSBRequestIn])
}

func TestTrackerRewritesRenderedRequestIn(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.Observe(output(t, 3, t0, host, device, getDescriptorRequest(4)))

	rec := ozwpan.NewRecorder()
	data := deviceDescriptorResponse(4)
	f, err := ozwpan.NewDissector().Decode(data, ozwpan.FrameMeta{Number: 8, Timestamp: t0}, rec)
	require.NoError(t, err)
	rsp := &core.OutputFrame{
		Number:    8,
		Timestamp: t0,
		Ethernet:  core.EthernetHeader{SrcMAC: device, DstMAC: host, EtherType: uint16(ozwpan.EtherType)},
		Frame:     f,
		Tree:      rec.Root,
	}

	// Before pairing the tree carries the per-call context of frame 8.
	before := requestInFields(rsp.Tree)
	require.Len(t, before, 1)
	assert.Equal(t, uint64(8), before[0].Value)

	tr.Observe(rsp)

	after := requestInFields(rsp.Tree)
	require.Len(t, after, 1)
	assert.Equal(t, uint64(3), after[0].Value)
	assert.Equal(t, "[Request in: 3]", after[0].Display)
	assert.Equal(t, before[0].Offset, after[0].Offset)
	assert.Equal(t, "3", rsp.Labels[core.LabelUSBRequestIn])

	desc := response(t, rsp).Descriptor
	require.NotNil(t, desc)
	assert.Equal(t, uint64(3), desc.Fields[0].Value)
}
