// Package usb decodes the standard USB chapter 9 descriptors carried by
// GET_DESCRIPTOR responses: device, configuration (with its interface and
// endpoint descriptors) and string descriptors.
package usb

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrDescriptorTooShort indicates the descriptor data is too short.
	ErrDescriptorTooShort = errors.New("usb: descriptor too short")
	// ErrDescriptorTypeMismatch indicates the descriptor type does not match expected.
	ErrDescriptorTypeMismatch = errors.New("usb: descriptor type mismatch")
	// ErrUnknownDescriptor indicates a descriptor type this package cannot decode.
	ErrUnknownDescriptor = errors.New("usb: unknown descriptor type")
)

// DescriptorType is the bDescriptorType byte (USB 2.0 table 9-5).
type DescriptorType uint8

const (
	DescriptorTypeDevice        DescriptorType = 0x01
	DescriptorTypeConfiguration DescriptorType = 0x02
	DescriptorTypeString        DescriptorType = 0x03
	DescriptorTypeInterface     DescriptorType = 0x04
	DescriptorTypeEndpoint      DescriptorType = 0x05
)

var descriptorTypeNames = map[uint8]string{
	0x01: "DEVICE",
	0x02: "CONFIGURATION",
	0x03: "STRING",
	0x04: "INTERFACE",
	0x05: "ENDPOINT",
	0x06: "DEVICE QUALIFIER",
	0x07: "OTHER SPEED CONFIG",
	0x08: "INTERFACE POWER",
	0x0b: "INTERFACE ASSOCIATION",
	0x21: "HID",
	0x24: "CLASS-SPECIFIC INTERFACE",
	0x25: "CLASS-SPECIFIC ENDPOINT",
}

func (t DescriptorType) String() string {
	if s, ok := descriptorTypeNames[uint8(t)]; ok {
		return s
	}
	return fmt.Sprintf("Unknown (0x%02x)", uint8(t))
}

// MarshalText renders the type by name.
func (t DescriptorType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

var classNames = map[uint8]string{
	0x00: "Device",
	0x01: "Audio",
	0x02: "Communications and CDC Control",
	0x03: "HID",
	0x05: "Physical",
	0x06: "Imaging",
	0x07: "Printer",
	0x08: "Mass Storage",
	0x09: "Hub",
	0x0a: "CDC-Data",
	0x0b: "Smart Card",
	0x0d: "Content Security",
	0x0e: "Video",
	0x0f: "Personal Healthcare",
	0x10: "Audio/Video Devices",
	0x11: "Billboard Device",
	0xdc: "Diagnostic Device",
	0xe0: "Wireless Controller",
	0xef: "Miscellaneous",
	0xfe: "Application Specific",
	0xff: "Vendor Specific",
}

var transferTypeNames = map[uint8]string{
	0x0: "Control",
	0x1: "Isochronous",
	0x2: "Bulk",
	0x3: "Interrupt",
}

// DeviceDescriptor represents a USB device descriptor (18 bytes).
type DeviceDescriptor struct {
	Length            uint8  `json:"bLength" yaml:"bLength"`
	DescriptorType    uint8  `json:"bDescriptorType" yaml:"bDescriptorType"`
	USBVersion        uint16 `json:"bcdUSB" yaml:"bcdUSB"`
	DeviceClass       uint8  `json:"bDeviceClass" yaml:"bDeviceClass"`
	DeviceSubClass    uint8  `json:"bDeviceSubClass" yaml:"bDeviceSubClass"`
	DeviceProtocol    uint8  `json:"bDeviceProtocol" yaml:"bDeviceProtocol"`
	MaxPacketSize0    uint8  `json:"bMaxPacketSize0" yaml:"bMaxPacketSize0"`
	VendorID          uint16 `json:"idVendor" yaml:"idVendor"`
	ProductID         uint16 `json:"idProduct" yaml:"idProduct"`
	DeviceVersion     uint16 `json:"bcdDevice" yaml:"bcdDevice"`
	ManufacturerIndex uint8  `json:"iManufacturer" yaml:"iManufacturer"`
	ProductIndex      uint8  `json:"iProduct" yaml:"iProduct"`
	SerialNumberIndex uint8  `json:"iSerialNumber" yaml:"iSerialNumber"`
	NumConfigurations uint8  `json:"bNumConfigurations" yaml:"bNumConfigurations"`
}

// DeviceDescriptorSize is the size of a device descriptor in bytes.
const DeviceDescriptorSize = 18

// ParseDeviceDescriptor parses a device descriptor from bytes into out.
func ParseDeviceDescriptor(data []byte, out *DeviceDescriptor) error {
	if len(data) < DeviceDescriptorSize {
		return ErrDescriptorTooShort
	}
	if data[1] != uint8(DescriptorTypeDevice) {
		return ErrDescriptorTypeMismatch
	}
	out.Length = data[0]
	out.DescriptorType = data[1]
	out.USBVersion = binary.LittleEndian.Uint16(data[2:4])
	out.DeviceClass = data[4]
	out.DeviceSubClass = data[5]
	out.DeviceProtocol = data[6]
	out.MaxPacketSize0 = data[7]
	out.VendorID = binary.LittleEndian.Uint16(data[8:10])
	out.ProductID = binary.LittleEndian.Uint16(data[10:12])
	out.DeviceVersion = binary.LittleEndian.Uint16(data[12:14])
	out.ManufacturerIndex = data[14]
	out.ProductIndex = data[15]
	out.SerialNumberIndex = data[16]
	out.NumConfigurations = data[17]
	return nil
}

// ConfigurationDescriptor represents a USB configuration descriptor (9 bytes).
type ConfigurationDescriptor struct {
	Length             uint8  `json:"bLength" yaml:"bLength"`
	DescriptorType     uint8  `json:"bDescriptorType" yaml:"bDescriptorType"`
	TotalLength        uint16 `json:"wTotalLength" yaml:"wTotalLength"`
	NumInterfaces      uint8  `json:"bNumInterfaces" yaml:"bNumInterfaces"`
	ConfigurationValue uint8  `json:"bConfigurationValue" yaml:"bConfigurationValue"`
	ConfigurationIndex uint8  `json:"iConfiguration" yaml:"iConfiguration"`
	Attributes         uint8  `json:"bmAttributes" yaml:"bmAttributes"`
	MaxPower           uint8  `json:"bMaxPower" yaml:"bMaxPower"`
}

// Configuration attribute bits.
const (
	ConfigAttrBusPowered   = 0x80
	ConfigAttrSelfPowered  = 0x40
	ConfigAttrRemoteWakeup = 0x20
)

// ConfigurationDescriptorSize is the size of a configuration descriptor in bytes.
const ConfigurationDescriptorSize = 9

// ParseConfigurationDescriptor parses a configuration descriptor from bytes into out.
func ParseConfigurationDescriptor(data []byte, out *ConfigurationDescriptor) error {
	if len(data) < ConfigurationDescriptorSize {
		return ErrDescriptorTooShort
	}
	if data[1] != uint8(DescriptorTypeConfiguration) {
		return ErrDescriptorTypeMismatch
	}
	out.Length = data[0]
	out.DescriptorType = data[1]
	out.TotalLength = binary.LittleEndian.Uint16(data[2:4])
	out.NumInterfaces = data[4]
	out.ConfigurationValue = data[5]
	out.ConfigurationIndex = data[6]
	out.Attributes = data[7]
	out.MaxPower = data[8]
	return nil
}

// InterfaceDescriptor represents a USB interface descriptor (9 bytes).
type InterfaceDescriptor struct {
	Length            uint8 `json:"bLength" yaml:"bLength"`
	DescriptorType    uint8 `json:"bDescriptorType" yaml:"bDescriptorType"`
	InterfaceNumber   uint8 `json:"bInterfaceNumber" yaml:"bInterfaceNumber"`
	AlternateSetting  uint8 `json:"bAlternateSetting" yaml:"bAlternateSetting"`
	NumEndpoints      uint8 `json:"bNumEndpoints" yaml:"bNumEndpoints"`
	InterfaceClass    uint8 `json:"bInterfaceClass" yaml:"bInterfaceClass"`
	InterfaceSubClass uint8 `json:"bInterfaceSubClass" yaml:"bInterfaceSubClass"`
	InterfaceProtocol uint8 `json:"bInterfaceProtocol" yaml:"bInterfaceProtocol"`
	InterfaceIndex    uint8 `json:"iInterface" yaml:"iInterface"`
}

// InterfaceDescriptorSize is the size of an interface descriptor in bytes.
const InterfaceDescriptorSize = 9

// ParseInterfaceDescriptor parses an interface descriptor from bytes into out.
func ParseInterfaceDescriptor(data []byte, out *InterfaceDescriptor) error {
	if len(data) < InterfaceDescriptorSize {
		return ErrDescriptorTooShort
	}
	if data[1] != uint8(DescriptorTypeInterface) {
		return ErrDescriptorTypeMismatch
	}
	out.Length = data[0]
	out.DescriptorType = data[1]
	out.InterfaceNumber = data[2]
	out.AlternateSetting = data[3]
	out.NumEndpoints = data[4]
	out.InterfaceClass = data[5]
	out.InterfaceSubClass = data[6]
	out.InterfaceProtocol = data[7]
	out.InterfaceIndex = data[8]
	return nil
}

// EndpointDescriptor represents a USB endpoint descriptor (7 bytes).
type EndpointDescriptor struct {
	Length          uint8  `json:"bLength" yaml:"bLength"`
	DescriptorType  uint8  `json:"bDescriptorType" yaml:"bDescriptorType"`
	EndpointAddress uint8  `json:"bEndpointAddress" yaml:"bEndpointAddress"`
	Attributes      uint8  `json:"bmAttributes" yaml:"bmAttributes"`
	MaxPacketSize   uint16 `json:"wMaxPacketSize" yaml:"wMaxPacketSize"`
	Interval        uint8  `json:"bInterval" yaml:"bInterval"`
}

// EndpointDescriptorSize is the size of an endpoint descriptor in bytes.
const EndpointDescriptorSize = 7

// ParseEndpointDescriptor parses an endpoint descriptor from bytes into out.
func ParseEndpointDescriptor(data []byte, out *EndpointDescriptor) error {
	if len(data) < EndpointDescriptorSize {
		return ErrDescriptorTooShort
	}
	if data[1] != uint8(DescriptorTypeEndpoint) {
		return ErrDescriptorTypeMismatch
	}
	out.Length = data[0]
	out.DescriptorType = data[1]
	out.EndpointAddress = data[2]
	out.Attributes = data[3]
	out.MaxPacketSize = binary.LittleEndian.Uint16(data[4:6])
	out.Interval = data[6]
	return nil
}

// StringDescriptor is a decoded string descriptor: either the LANGID list
// (index 0) or a UTF-16LE string.
type StringDescriptor struct {
	Length         uint8    `json:"bLength" yaml:"bLength"`
	DescriptorType uint8    `json:"bDescriptorType" yaml:"bDescriptorType"`
	LangIDs        []uint16 `json:"wLANGID,omitempty" yaml:"wLANGID,omitempty"`
	Text           string   `json:"bString,omitempty" yaml:"bString,omitempty"`
}
