package ozwpan

// EndpointData is a USB endpoint data unit. Which of UnitSize, FrameNum and
// Payload are meaningful depends on Format; formats without a known layout
// leave all three unset.
type EndpointData struct {
	EPNum     uint8      `json:"ep_num" yaml:"ep_num"`
	RawFormat uint8      `json:"raw_format" yaml:"raw_format"`
	Format    DataFormat `json:"format" yaml:"format"`
	UnitSize  uint8      `json:"unit_size,omitempty" yaml:"unit_size,omitempty"`
	FrameNum  uint8      `json:"frame_num,omitempty" yaml:"frame_num,omitempty"`
	Payload   *Range     `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Minimum unit sizes, counted from the usb_op byte.
const (
	endpointMinLen      = 4
	endpointFragmentLen = 5
	endpointIsocLen     = 5
	endpointMultipleLen = 4
)

// endpointData decodes an endpoint data unit. c starts at the usb_op byte:
// ep_num is at 1 and the format byte at 2. Units too short for their format
// are skipped without a diagnostic.
func (d *decoder) endpointData(c Cursor) *EndpointData {
	if c.Len() < endpointMinLen {
		return nil
	}
	d.summary("USB Data")
	ep := &EndpointData{}
	ep.EPNum, _ = d.u8(c, 1, hfEPNum)
	ep.RawFormat, _ = d.u8(c, 2, hfUSBFormat)
	ep.Format = DataFormat(ep.RawFormat & dataFormatMask)

	switch ep.Format {
	case FormatFragmented:
		if c.Len() < endpointFragmentLen {
			return ep
		}
		ep.Payload = d.payload(c, endpointFragmentLen)
	case FormatIsocFixed:
		if c.Len() < endpointIsocLen {
			return ep
		}
		ep.UnitSize, _ = d.u8(c, 3, hfUnitSize)
		ep.FrameNum, _ = d.u8(c, 4, hfFrameNum)
		ep.Payload = d.payload(c, endpointIsocLen)
	case FormatMultipleFixed:
		if c.Len() < endpointMultipleLen {
			return ep
		}
		ep.UnitSize, _ = d.u8(c, 3, hfUnitSize)
		ep.Payload = d.payload(c, endpointMultipleLen)
	case FormatMultipleVar, FormatIsocVar, FormatIsocLarge:
		// No payload layout is defined for these formats.
	}
	return ep
}

func (d *decoder) payload(c Cursor, off int) *Range {
	rg, err := d.tail(c, off, hfAppData)
	if err != nil {
		return nil
	}
	return &rg
}
