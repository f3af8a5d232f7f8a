package ozwpan

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ctlV1 = 0x04 // version 1, no flags

// frame builds a frame with packet number 1 from the control byte and bodies.
func frame(control byte, parts ...[]byte) []byte {
	b := []byte{control, 0x00, 0x01, 0x00, 0x00, 0x00}
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

// elem builds an element whose declared length matches the body.
func elem(tag byte, body ...byte) []byte {
	return append([]byte{tag, byte(len(body))}, body...)
}

func decode(t *testing.T, data []byte) (*Frame, *Recorder) {
	t.Helper()
	rec := NewRecorder()
	f, err := NewDissector().Decode(data, FrameMeta{Number: 42, Timestamp: time.Unix(1700000000, 0)}, rec)
	require.NoError(t, err)
	require.NotNil(t, f)
	return f, rec
}

func displays(rec *Recorder, abbrev string) []string {
	var out []string
	for _, f := range rec.Find(abbrev) {
		out = append(out, f.Display)
	}
	return out
}

func TestDecodeDeclinesShortFrames(t *testing.T) {
	for n := 0; n < headerLen; n++ {
		data := make([]byte, n)
		if n > 0 {
			data[0] = ctlV1
		}
		f, err := NewDissector().Decode(data, FrameMeta{}, nil)
		assert.ErrorIs(t, err, ErrNotOzwpan, "len %d", n)
		assert.Nil(t, f)
	}
}

func TestDecodeDeclinesOtherVersions(t *testing.T) {
	for c := 0; c < 256; c++ {
		if c&versionMask == 0x04 {
			continue
		}
		rec := NewRecorder()
		_, err := NewDissector().Decode(frame(byte(c), elem(0x08)), FrameMeta{}, rec)
		assert.ErrorIs(t, err, ErrNotOzwpan, "control 0x%02x", c)
		assert.Empty(t, rec.Root)
	}
}

func TestDecodeControlOnly(t *testing.T) {
	f, rec := decode(t, []byte{0x94, 0x07, 0x78, 0x56, 0x34, 0x12})

	assert.Equal(t, KindControl, f.Kind)
	assert.Empty(t, f.Elements)
	assert.Empty(t, f.Diagnostics)
	assert.Equal(t, "Control Frame", f.Summary)
	assert.Equal(t, "Control Frame", rec.Summary)
	assert.Equal(t, uint8(1), f.Header.Version())
	assert.Equal(t, uint8(7), f.Header.LastPacketNum)
	assert.Equal(t, uint32(0x12345678), f.Header.PacketNum)
	assert.Equal(t, "ACK, RACK", f.Flags.String())

	require.Len(t, rec.Root, 1)
	assert.Equal(t, "ozwpan", rec.Root[0].Abbrev)
	assert.Equal(t, []string{"Flags: 0x90 (ACK, RACK)"}, displays(rec, "ozwpan.flags"))
	assert.Equal(t, []string{"ACK: Set"}, displays(rec, "ozwpan.flags.ack"))
	assert.Equal(t, []string{"ISOC: Not set"}, displays(rec, "ozwpan.flags.isoc"))
	assert.Equal(t, []string{"Protocol Version: 1"}, displays(rec, "ozwpan.version"))

	pn, ok := rec.First("ozwpan.packet_number")
	require.True(t, ok)
	assert.Equal(t, uint64(0x12345678), pn.Value)
	assert.Equal(t, 2, pn.Offset)
	assert.Equal(t, 4, pn.Length)
	assert.Empty(t, rec.Find("ozwpan.element"))
}

func TestFlagsString(t *testing.T) {
	assert.Equal(t, "<None>", Flags(0).String())
	assert.Equal(t, "ACK, ISOC, MORE, RACK", Flags(0xf0).String())
	assert.Equal(t, "MORE", Flags(FlagMoreData).String())
}

func TestDecodeDisconnect(t *testing.T) {
	data := []byte{0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x08, 0x00}
	f, rec := decode(t, data)

	assert.Equal(t, KindElements, f.Kind)
	assert.Equal(t, "<None>", f.Flags.String())
	require.Len(t, f.Elements, 1)
	e := f.Elements[0]
	assert.Equal(t, ElementDisconnect, e.Type)
	assert.Equal(t, Range{Offset: 8, Length: 0}, e.Body)
	assert.IsType(t, &Disconnect{}, e.Decoded)
	assert.Equal(t, "Disconnect", f.Summary)
	assert.Equal(t, []string{"Element: Disconnect"}, displays(rec, "ozwpan.element"))
	assert.Equal(t, []string{"Elements (2 bytes)"}, displays(rec, "ozwpan.elements"))
	assert.Empty(t, f.Diagnostics)
}

func connectRequestBody() []byte {
	body := []byte{0x41}
	body = append(body, make([]byte, 16)...)
	body = append(body, 0x02, 0x03, 0x04, 0x05, 0x06, 0x45, 0x02, 0x01, 0x08, 0x09, 0x00, 0x00)
	return body
}

func TestConnectRequestRoundTrip(t *testing.T) {
	body := connectRequestBody()
	require.Len(t, body, 29)

	f, rec := decode(t, frame(ctlV1, elem(0x06, body...)))
	require.Len(t, f.Elements, 1)
	cr, ok := f.Elements[0].Decoded.(*ConnectRequest)
	require.True(t, ok)

	assert.Equal(t, &ConnectRequest{
		Mode:        0x41,
		PDInfo:      0x02,
		SessionID:   0x03,
		Presleep:    0x04,
		IsocLatency: 0x05,
		HostVendor:  0x06,
		KeepAlive:   0x45,
		Apps:        0x0102,
		MaxLenDiv16: 0x08,
		MsPerIsoc:   0x09,
	}, cr)
	assert.Equal(t, "Connect Request", f.Summary)
	assert.Empty(t, f.Diagnostics)

	assert.Equal(t, []string{"Connection Mode: Triggered Mode (1)"}, displays(rec, "ozwpan.mode"))
	assert.Equal(t, []string{"ISOC No Elements: Set"}, displays(rec, "ozwpan.mode.isoc_no_elts"))
	assert.Equal(t, []string{"Keep Alive: 5 Seconds (69)"}, displays(rec, "ozwpan.keep_alive"))
	apps, ok := rec.First("ozwpan.apps")
	require.True(t, ok)
	assert.Equal(t, 6+2+23, apps.Offset)
	assert.Equal(t, uint64(0x0102), apps.Value)
	assert.Len(t, rec.Find("ozwpan.reserved"), 2)
}

func TestConnectRequestShortBodyContinuesWalk(t *testing.T) {
	short := connectRequestBody()[:10]
	f, rec := decode(t, frame(ctlV1, elem(0x06, short...), elem(0x08)))

	require.Len(t, f.Elements, 2)
	cr := f.Elements[0].Decoded.(*ConnectRequest)
	assert.True(t, cr.Partial)
	assert.Equal(t, uint8(0x41), cr.Mode)
	assert.Zero(t, cr.PDInfo)
	assert.IsType(t, &Disconnect{}, f.Elements[1].Decoded)
	assert.Equal(t, "Disconnect", f.Summary)

	require.Len(t, f.Diagnostics, 1)
	assert.Equal(t, DiagTruncated, f.Diagnostics[0].Kind)
	assert.Empty(t, rec.Find("ozwpan.pd_info"))
}

func TestConnectResponse(t *testing.T) {
	body := []byte{0x00, 0x05, 0, 0, 0, 0x21, 0x01, 0x00, 0, 0, 0, 0}
	f, rec := decode(t, frame(ctlV1, elem(0x07, body...)))

	rsp := f.Elements[0].Decoded.(*ConnectResponse)
	assert.Equal(t, StatusSessionMismatch, rsp.Status)
	assert.Equal(t, uint8(0x21), rsp.SessionID)
	assert.Equal(t, uint16(1), rsp.Apps)
	assert.False(t, rsp.Partial)
	assert.Equal(t, "Connect Response", f.Summary)
	assert.Equal(t, []string{"Status Code: Session Mismatch (5)"}, displays(rec, "ozwpan.status"))
}

func TestUpdateParamRequest(t *testing.T) {
	body := append(make([]byte, 16), 0x0a, 0x00, 0x0b, 0x82)
	f, rec := decode(t, frame(ctlV1, elem(0x11, body...)))

	up := f.Elements[0].Decoded.(*UpdateParamRequest)
	assert.Equal(t, &UpdateParamRequest{Presleep: 0x0a, HostVendor: 0x0b, KeepAlive: 0x82}, up)
	assert.Equal(t, "Parameter Update Request", f.Summary)
	assert.Equal(t, []string{"Keep Alive: 2 Minutes (130)"}, displays(rec, "ozwpan.keep_alive"))
}

func TestFarewellRequest(t *testing.T) {
	f, rec := decode(t, frame(ctlV1, elem(0x12, 0x81, 0x02, 0xde, 0xad)))

	fw := f.Elements[0].Decoded.(*FarewellRequest)
	assert.Equal(t, uint8(0x81), fw.EPNum)
	assert.Equal(t, uint8(0x02), fw.Index)
	assert.Equal(t, Range{Offset: 10, Length: 2}, fw.Report)
	assert.Equal(t, "Farewell Request", f.Summary)
	report, ok := rec.First("ozwpan.report")
	require.True(t, ok)
	assert.Equal(t, "dead", report.Value)
}

func TestMalformedLengthOnLastElement(t *testing.T) {
	data := frame(ctlV1, elem(0x08), []byte{0x12, 0x10, 0x01, 0x02})
	f, rec := decode(t, data)

	require.Len(t, f.Elements, 2)
	last := f.Elements[1]
	assert.True(t, last.Malformed())
	assert.Equal(t, uint8(0x10), last.DeclaredLen)
	assert.Equal(t, Range{Offset: 10, Length: 2}, last.Body)

	require.NotEmpty(t, f.Diagnostics)
	d := f.Diagnostics[0]
	assert.Equal(t, DiagMalformedLength, d.Kind)
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, uint8(0x12), d.Tag)
	assert.Equal(t, 8, d.Offset)
	assert.Equal(t, 4, d.Length)

	fw := last.Decoded.(*FarewellRequest)
	assert.Equal(t, uint8(1), fw.EPNum)
	assert.Equal(t, Range{Offset: 12, Length: 0}, fw.Report)
	assertWithinFrame(t, rec.Root, len(data))
}

func TestUnsupportedElement(t *testing.T) {
	f, rec := decode(t, frame(ctlV1, elem(0x99, 0xaa, 0xbb, 0xcc), elem(0x08)))

	require.Len(t, f.Elements, 2)
	op, ok := f.Elements[0].Decoded.(*OpaqueElement)
	require.True(t, ok)
	assert.Equal(t, Range{Offset: 8, Length: 3}, op.Data)

	require.Len(t, f.Diagnostics, 1)
	d := f.Diagnostics[0]
	assert.Equal(t, DiagUnsupportedElement, d.Kind)
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, uint8(0x99), d.Tag)
	assert.Contains(t, d.Message, "Unknown (153)")

	assert.Equal(t, []string{"Element: Unknown (153): Undecoded", "Element: Disconnect"}, displays(rec, "ozwpan.element"))
	data, ok := rec.First("ozwpan.element.data")
	require.True(t, ok)
	assert.Equal(t, "aabbcc", data.Value)
	assert.Equal(t, "Disconnect", f.Summary)
}

func TestDanglingElementPrefix(t *testing.T) {
	f, _ := decode(t, frame(ctlV1, elem(0x08), []byte{0x31}))

	require.Len(t, f.Elements, 1)
	require.Len(t, f.Diagnostics, 1)
	assert.Equal(t, DiagTruncated, f.Diagnostics[0].Kind)
	assert.Equal(t, 8, f.Diagnostics[0].Offset)
	assert.Equal(t, 1, f.Diagnostics[0].Length)
}

func TestLargeIsocFrame(t *testing.T) {
	data := frame(0x24, []byte{0x81, 0x03, 0x02, 0x07, 0x10, 0x11, 0x12})
	f, rec := decode(t, data)

	assert.Equal(t, KindIsoc, f.Kind)
	assert.Equal(t, "Large ISOC Frame", f.Summary)
	assert.Empty(t, f.Elements)
	require.NotNil(t, f.Isoc)
	assert.Equal(t, &IsocHeader{
		EPNum:    0x81,
		Format:   0x03,
		MsData:   0x02,
		FrameNum: 0x07,
		Payload:  Range{Offset: 10, Length: 3},
	}, f.Isoc)
	assert.Equal(t, []string{"USB Format: ISOC Fixed Data (3)"}, displays(rec, "ozwpan.usb_format"))
	assert.Empty(t, f.Diagnostics)
}

func TestLargeIsocFrameTruncated(t *testing.T) {
	f, rec := decode(t, frame(0x24, []byte{0x81, 0x03}))

	assert.Equal(t, KindIsoc, f.Kind)
	require.Len(t, f.Diagnostics, 1)
	assert.Equal(t, DiagTruncated, f.Diagnostics[0].Kind)
	assert.Len(t, rec.Find("ozwpan.ep_num"), 1)
	assert.Empty(t, rec.Find("ozwpan.ms_data"))
}

func assertWithinFrame(t *testing.T, nodes []*Node, n int) {
	t.Helper()
	for _, node := range nodes {
		assert.GreaterOrEqual(t, node.Offset, 0, node.Abbrev)
		assert.LessOrEqual(t, node.Offset+node.Length, n, node.Abbrev)
		assertWithinFrame(t, node.Children, n)
	}
}

func TestWalkerProgressOnRandomInput(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tags := []byte{0x06, 0x07, 0x08, 0x11, 0x12, 0x31, 0x99}
	for i := 0; i < 2000; i++ {
		body := make([]byte, rng.Intn(96))
		rng.Read(body)
		for j := 0; j+1 < len(body); j += 1 + rng.Intn(8) {
			body[j] = tags[rng.Intn(len(tags))]
		}
		data := frame(ctlV1, body)

		f, rec := decode(t, data)
		available := len(data) - headerLen
		consumed := 0
		for _, e := range f.Elements {
			consumed += elementPrefixLen + e.Body.Length
			assert.LessOrEqual(t, e.Body.End(), len(data))
		}
		assert.LessOrEqual(t, consumed, available)
		assert.LessOrEqual(t, len(f.Elements), available/elementPrefixLen)
		assertWithinFrame(t, rec.Root, len(data))
	}
}

func TestDecodeWithNilSink(t *testing.T) {
	f, err := (&Dissector{}).Decode(frame(ctlV1, elem(0x08)), FrameMeta{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Disconnect", f.Summary)
}

func TestFieldsSorted(t *testing.T) {
	fs := Fields()
	require.Len(t, fs, len(fieldTable))
	for i := 1; i < len(fs); i++ {
		assert.Less(t, fs[i-1].Abbrev, fs[i].Abbrev)
	}
}
