package usb

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// TransactionContext is the request state a GET_DESCRIPTOR response is decoded
// against. It is built for each response and never stored.
type TransactionContext struct {
	// RequestIn is the number of the frame holding the request.
	RequestIn   uint64    `json:"request_in" yaml:"request_in"`
	RequestTime time.Time `json:"request_time" yaml:"request_time"`
	// Index is the string descriptor index requested; 0 asks for the LANGID list.
	Index uint8 `json:"index" yaml:"index"`
	// Length is the wLength of the request, 0 when unknown.
	Length uint16 `json:"length" yaml:"length"`
}

// Field is one decoded descriptor member. Offsets are frame offsets.
type Field struct {
	Abbrev  string `json:"abbrev" yaml:"abbrev"`
	Name    string `json:"name" yaml:"name"`
	Offset  int    `json:"offset" yaml:"offset"`
	Length  int    `json:"length" yaml:"length"`
	Value   any    `json:"value,omitempty" yaml:"value,omitempty"`
	Display string `json:"display" yaml:"display"`
}

// Descriptor is a decoded descriptor with its fields in wire order. A
// configuration descriptor lists its interface and endpoint descriptors as
// Children.
type Descriptor struct {
	Type     DescriptorType `json:"type" yaml:"type"`
	Offset   int            `json:"offset" yaml:"offset"`
	Length   int            `json:"length" yaml:"length"`
	Fields   []Field        `json:"fields" yaml:"fields"`
	Children []*Descriptor  `json:"children,omitempty" yaml:"children,omitempty"`

	Device        *DeviceDescriptor        `json:"device,omitempty" yaml:"device,omitempty"`
	Configuration *ConfigurationDescriptor `json:"configuration,omitempty" yaml:"configuration,omitempty"`
	Interface     *InterfaceDescriptor     `json:"interface,omitempty" yaml:"interface,omitempty"`
	Endpoint      *EndpointDescriptor      `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	String        *StringDescriptor        `json:"string,omitempty" yaml:"string,omitempty"`
}

// Label is the display line of the descriptor subtree.
func (d *Descriptor) Label() string {
	return fmt.Sprintf("%s DESCRIPTOR", d.Type)
}

// Bridge decodes the descriptor found at offset of frame. Implementations must
// not read past len(frame).
type Bridge interface {
	Decode(frame []byte, offset int, ctx TransactionContext) (*Descriptor, error)
}

// Decoder is the standard Bridge.
type Decoder struct{}

// NewDecoder returns a descriptor decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode implements Bridge for device, configuration and string descriptors.
func (dec *Decoder) Decode(frame []byte, offset int, ctx TransactionContext) (*Descriptor, error) {
	if offset < 0 || offset+2 > len(frame) {
		return nil, fmt.Errorf("%w: need 2 bytes at %d, have %d", ErrDescriptorTooShort, offset, len(frame))
	}
	data := frame[offset:]

	var (
		desc *Descriptor
		err  error
	)
	switch t := DescriptorType(data[1]); t {
	case DescriptorTypeDevice:
		desc, err = decodeDevice(data, offset)
	case DescriptorTypeConfiguration:
		desc, err = decodeConfiguration(data, offset)
	case DescriptorTypeString:
		desc = decodeString(data, offset, ctx)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDescriptor, t)
	}
	if err != nil {
		return nil, err
	}
	if ctx.RequestIn != 0 {
		desc.SetRequestIn(ctx.RequestIn)
	}
	return desc, nil
}

// RequestInField is the zero-length field pointing a descriptor at the frame
// holding its request.
func RequestInField(offset int, frame uint64) Field {
	return Field{
		Abbrev:  "usb.request_in",
		Name:    "Request in",
		Offset:  offset,
		Value:   frame,
		Display: fmt.Sprintf("[Request in: %d]", frame),
	}
}

// SetRequestIn sets or replaces the descriptor's request_in field and returns it.
func (d *Descriptor) SetRequestIn(frame uint64) Field {
	f := RequestInField(d.Offset, frame)
	for i := range d.Fields {
		if d.Fields[i].Abbrev == f.Abbrev {
			d.Fields[i] = f
			return f
		}
	}
	d.Fields = append([]Field{f}, d.Fields...)
	return f
}

// member describes one fixed-offset descriptor field.
type member struct {
	off, width int
	abbrev     string
	name       string
	hex        bool
	names      map[uint8]string
	format     func(v uint64) string
}

var headerMembers = []member{
	{off: 0, width: 1, abbrev: "usb.bLength", name: "bLength"},
	{off: 1, width: 1, abbrev: "usb.bDescriptorType", name: "bDescriptorType", hex: true, names: descriptorTypeNames},
}

var deviceMembers = append(headerMembers[:2:2],
	member{off: 2, width: 2, abbrev: "usb.bcdUSB", name: "bcdUSB", hex: true},
	member{off: 4, width: 1, abbrev: "usb.bDeviceClass", name: "bDeviceClass", hex: true, names: classNames},
	member{off: 5, width: 1, abbrev: "usb.bDeviceSubClass", name: "bDeviceSubClass"},
	member{off: 6, width: 1, abbrev: "usb.bDeviceProtocol", name: "bDeviceProtocol"},
	member{off: 7, width: 1, abbrev: "usb.bMaxPacketSize0", name: "bMaxPacketSize0"},
	member{off: 8, width: 2, abbrev: "usb.idVendor", name: "idVendor", hex: true},
	member{off: 10, width: 2, abbrev: "usb.idProduct", name: "idProduct", hex: true},
	member{off: 12, width: 2, abbrev: "usb.bcdDevice", name: "bcdDevice", hex: true},
	member{off: 14, width: 1, abbrev: "usb.iManufacturer", name: "iManufacturer"},
	member{off: 15, width: 1, abbrev: "usb.iProduct", name: "iProduct"},
	member{off: 16, width: 1, abbrev: "usb.iSerialNumber", name: "iSerialNumber"},
	member{off: 17, width: 1, abbrev: "usb.bNumConfigurations", name: "bNumConfigurations"},
)

var configurationMembers = append(headerMembers[:2:2],
	member{off: 2, width: 2, abbrev: "usb.wTotalLength", name: "wTotalLength"},
	member{off: 4, width: 1, abbrev: "usb.bNumInterfaces", name: "bNumInterfaces"},
	member{off: 5, width: 1, abbrev: "usb.bConfigurationValue", name: "bConfigurationValue"},
	member{off: 6, width: 1, abbrev: "usb.iConfiguration", name: "iConfiguration"},
	member{off: 7, width: 1, abbrev: "usb.bmAttributes", name: "Configuration bmAttributes", format: configAttributes},
	member{off: 8, width: 1, abbrev: "usb.bMaxPower", name: "bMaxPower", format: func(v uint64) string {
		return fmt.Sprintf("%d  (%dmA)", v, v*2)
	}},
)

var interfaceMembers = append(headerMembers[:2:2],
	member{off: 2, width: 1, abbrev: "usb.bInterfaceNumber", name: "bInterfaceNumber"},
	member{off: 3, width: 1, abbrev: "usb.bAlternateSetting", name: "bAlternateSetting"},
	member{off: 4, width: 1, abbrev: "usb.bNumEndpoints", name: "bNumEndpoints"},
	member{off: 5, width: 1, abbrev: "usb.bInterfaceClass", name: "bInterfaceClass", hex: true, names: classNames},
	member{off: 6, width: 1, abbrev: "usb.bInterfaceSubClass", name: "bInterfaceSubClass", hex: true},
	member{off: 7, width: 1, abbrev: "usb.bInterfaceProtocol", name: "bInterfaceProtocol", hex: true},
	member{off: 8, width: 1, abbrev: "usb.iInterface", name: "iInterface"},
)

var endpointMembers = append(headerMembers[:2:2],
	member{off: 2, width: 1, abbrev: "usb.bEndpointAddress", name: "bEndpointAddress", format: endpointAddress},
	member{off: 3, width: 1, abbrev: "usb.bmAttributes", name: "bmAttributes", format: func(v uint64) string {
		return fmt.Sprintf("0x%02x (%s)", v, transferTypeNames[uint8(v)&0x3])
	}},
	member{off: 4, width: 2, abbrev: "usb.wMaxPacketSize", name: "wMaxPacketSize"},
	member{off: 6, width: 1, abbrev: "usb.bInterval", name: "bInterval"},
)

func configAttributes(v uint64) string {
	s := fmt.Sprintf("0x%02x", v)
	if v&ConfigAttrSelfPowered != 0 {
		s += " SELF-POWERED"
	}
	if v&ConfigAttrRemoteWakeup != 0 {
		s += " REMOTE-WAKEUP"
	}
	return s
}

func endpointAddress(v uint64) string {
	dir := "OUT"
	if v&0x80 != 0 {
		dir = "IN"
	}
	return fmt.Sprintf("0x%02x  %s  Endpoint:%d", v, dir, v&0x0f)
}

// fields renders members from data, whose first byte sits at frame offset base.
// data must hold every member.
func fields(data []byte, base int, members []member) []Field {
	out := make([]Field, 0, len(members))
	for _, m := range members {
		var v uint64
		if m.width == 2 {
			v = uint64(binary.LittleEndian.Uint16(data[m.off:]))
		} else {
			v = uint64(data[m.off])
		}
		out = append(out, Field{
			Abbrev:  m.abbrev,
			Name:    m.name,
			Offset:  base + m.off,
			Length:  m.width,
			Value:   v,
			Display: fmt.Sprintf("%s: %s", m.name, m.render(v)),
		})
	}
	return out
}

func (m member) render(v uint64) string {
	if m.format != nil {
		return m.format(v)
	}
	s := fmt.Sprintf("%d", v)
	if m.hex {
		s = fmt.Sprintf("0x%0*x", m.width*2, v)
	}
	if m.names != nil {
		if name, ok := m.names[uint8(v)]; ok {
			return fmt.Sprintf("%s (%s)", name, s)
		}
	}
	return s
}

func bytesField(abbrev, name string, base int, b []byte) Field {
	return Field{
		Abbrev:  abbrev,
		Name:    name,
		Offset:  base,
		Length:  len(b),
		Value:   hex.EncodeToString(b),
		Display: fmt.Sprintf("%s: %s", name, hex.EncodeToString(b)),
	}
}

func decodeDevice(data []byte, base int) (*Descriptor, error) {
	dev := &DeviceDescriptor{}
	if err := ParseDeviceDescriptor(data, dev); err != nil {
		return nil, fmt.Errorf("device descriptor at %d: %w", base, err)
	}
	return &Descriptor{
		Type:   DescriptorTypeDevice,
		Offset: base,
		Length: DeviceDescriptorSize,
		Fields: fields(data, base, deviceMembers),
		Device: dev,
	}, nil
}

// decodeConfiguration decodes the configuration descriptor and the interface
// and endpoint descriptors following it, within min(wTotalLength, len(data)).
func decodeConfiguration(data []byte, base int) (*Descriptor, error) {
	cfg := &ConfigurationDescriptor{}
	if err := ParseConfigurationDescriptor(data, cfg); err != nil {
		return nil, fmt.Errorf("configuration descriptor at %d: %w", base, err)
	}
	total := min(int(cfg.TotalLength), len(data))
	desc := &Descriptor{
		Type:          DescriptorTypeConfiguration,
		Offset:        base,
		Length:        max(total, ConfigurationDescriptorSize),
		Fields:        fields(data, base, configurationMembers),
		Configuration: cfg,
	}

	off := max(int(cfg.Length), ConfigurationDescriptorSize)
	for off+2 <= total {
		l := int(data[off])
		if l < 2 {
			break
		}
		end := min(off+l, total)
		desc.Children = append(desc.Children, decodeSubordinate(data[off:end], base+off))
		off = end
	}
	return desc, nil
}

func decodeSubordinate(data []byte, base int) *Descriptor {
	t := DescriptorType(data[1])
	switch t {
	case DescriptorTypeInterface:
		intf := &InterfaceDescriptor{}
		if ParseInterfaceDescriptor(data, intf) == nil {
			return &Descriptor{
				Type:      t,
				Offset:    base,
				Length:    len(data),
				Fields:    fields(data, base, interfaceMembers),
				Interface: intf,
			}
		}
	case DescriptorTypeEndpoint:
		ep := &EndpointDescriptor{}
		if ParseEndpointDescriptor(data, ep) == nil {
			return &Descriptor{
				Type:     t,
				Offset:   base,
				Length:   len(data),
				Fields:   fields(data, base, endpointMembers),
				Endpoint: ep,
			}
		}
	}
	fs := fields(data, base, headerMembers)
	if len(data) > 2 {
		fs = append(fs, bytesField("usb.descriptor.data", "Descriptor data", base+2, data[2:]))
	}
	return &Descriptor{Type: t, Offset: base, Length: len(data), Fields: fs}
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeString decodes a string descriptor limited to the smallest of bLength,
// the requested length and the bytes present.
func decodeString(data []byte, base int, ctx TransactionContext) *Descriptor {
	limit := int(data[0])
	if ctx.Length > 0 {
		limit = min(limit, int(ctx.Length))
	}
	limit = max(min(limit, len(data)), 2)

	sd := &StringDescriptor{Length: data[0], DescriptorType: data[1]}
	desc := &Descriptor{
		Type:   DescriptorTypeString,
		Offset: base,
		Length: limit,
		Fields: fields(data, base, headerMembers),
		String: sd,
	}

	body := data[2:limit]
	if ctx.Index == 0 {
		for i := 0; i+2 <= len(body); i += 2 {
			id := binary.LittleEndian.Uint16(body[i:])
			sd.LangIDs = append(sd.LangIDs, id)
			desc.Fields = append(desc.Fields, Field{
				Abbrev:  "usb.wLANGID",
				Name:    "wLANGID",
				Offset:  base + 2 + i,
				Length:  2,
				Value:   uint64(id),
				Display: fmt.Sprintf("wLANGID: 0x%04x", id),
			})
		}
		return desc
	}

	body = body[:len(body)&^1]
	text, err := utf16le.NewDecoder().Bytes(body)
	if err != nil {
		desc.Fields = append(desc.Fields, bytesField("usb.bString", "bString", base+2, body))
		return desc
	}
	sd.Text = string(text)
	desc.Fields = append(desc.Fields, Field{
		Abbrev:  "usb.bString",
		Name:    "bString",
		Offset:  base + 2,
		Length:  len(body),
		Value:   sd.Text,
		Display: fmt.Sprintf("bString: %s", sd.Text),
	})
	return desc
}
