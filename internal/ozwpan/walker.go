package ozwpan

import "fmt"

const elementPrefixLen = 2

// Element is one tagged element of a frame.
type Element struct {
	Type ElementType `json:"type" yaml:"type"`
	// DeclaredLen is the length byte as found on the wire.
	DeclaredLen uint8 `json:"declared_len" yaml:"declared_len"`
	// Offset is the frame offset of the tag byte.
	Offset int `json:"offset" yaml:"offset"`
	// Body is the part of the declared body that was actually present.
	Body    Range       `json:"body" yaml:"body"`
	Decoded ElementBody `json:"decoded,omitempty" yaml:"decoded,omitempty"`
}

// Malformed reports whether the declared length ran past the end of the frame.
func (e Element) Malformed() bool { return int(e.DeclaredLen) > e.Body.Length }

// walkElements decodes the tagged element sequence filling c. Every iteration
// consumes at least the 2-byte prefix and never more than what is left, so the
// loop ends after at most c.Len()/2 elements.
func (d *decoder) walkElements(c Cursor) {
	d.sink.Begin(hfElements.Text(c.Abs(0), c.Len(), fmt.Sprintf("Elements (%d bytes)", c.Len())))
	defer d.sink.End()

	off := 0
	for c.Remaining(off) > 0 {
		if _, err := c.Uint8(off + 1); err != nil {
			d.truncated(c, off, "element prefix", err)
			return
		}
		off += elementPrefixLen + d.element(c, off)
	}
}

// element decodes the element whose tag sits at off and returns the number of
// body bytes consumed.
func (d *decoder) element(c Cursor, off int) int {
	tag, _ := c.Uint8(off)
	declared, _ := c.Uint8(off + 1)
	t := ElementType(tag)

	length := int(declared)
	available := c.Remaining(off + elementPrefixLen)
	if length > available {
		length = available
	}
	body, _ := c.Window(off+elementPrefixLen, length)

	_, known := elementTypeNames[t]
	label := "Element: " + t.String()
	if !known {
		label += ": Undecoded"
	}
	d.sink.Begin(hfElement.Text(c.Abs(off), elementPrefixLen+length, label))
	defer d.sink.End()

	d.sink.AddField(hfElementType.Uint(c.Abs(off), 1, uint64(tag)))
	d.sink.AddField(hfElementLength.Uint(c.Abs(off+1), 1, uint64(declared)))
	if int(declared) > available {
		d.diagnose(Diagnostic{
			Kind:     DiagMalformedLength,
			Severity: SeverityError,
			Tag:      tag,
			Offset:   c.Abs(off),
			Length:   elementPrefixLen + available,
			Message: fmt.Sprintf("element %s declares %d bytes but only %d remain",
				t, declared, available),
		})
	}

	e := Element{
		Type:        t,
		DeclaredLen: declared,
		Offset:      c.Abs(off),
		Body:        Range{Offset: body.Abs(0), Length: body.Len()},
	}
	switch t {
	case ElementConnectRequest:
		e.Decoded = d.connectRequest(body)
	case ElementConnectResponse:
		e.Decoded = d.connectResponse(body)
	case ElementDisconnect:
		e.Decoded = d.disconnect()
	case ElementUpdateParamRequest:
		e.Decoded = d.updateParamRequest(body)
	case ElementFarewellRequest:
		e.Decoded = d.farewellRequest(body)
	case ElementAppData:
		e.Decoded = d.appData(body)
	default:
		e.Decoded = d.unsupported(t, body)
	}
	d.frame.Elements = append(d.frame.Elements, e)
	return length
}
