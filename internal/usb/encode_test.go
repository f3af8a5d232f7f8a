package usb

import (
	"encoding/binary"
	"unicode/utf16"
)

// Wire-format builders for descriptor fixtures.

const langUSEnglish = 0x0409

func encodeDevice(d DeviceDescriptor) []byte {
	b := []byte{DeviceDescriptorSize, byte(DescriptorTypeDevice)}
	b = binary.LittleEndian.AppendUint16(b, d.USBVersion)
	b = append(b, d.DeviceClass, d.DeviceSubClass, d.DeviceProtocol, d.MaxPacketSize0)
	b = binary.LittleEndian.AppendUint16(b, d.VendorID)
	b = binary.LittleEndian.AppendUint16(b, d.ProductID)
	b = binary.LittleEndian.AppendUint16(b, d.DeviceVersion)
	return append(b, d.ManufacturerIndex, d.ProductIndex, d.SerialNumberIndex, d.NumConfigurations)
}

func encodeConfiguration(c ConfigurationDescriptor) []byte {
	b := []byte{ConfigurationDescriptorSize, byte(DescriptorTypeConfiguration)}
	b = binary.LittleEndian.AppendUint16(b, c.TotalLength)
	return append(b, c.NumInterfaces, c.ConfigurationValue, c.ConfigurationIndex, c.Attributes, c.MaxPower)
}

func encodeInterface(i InterfaceDescriptor) []byte {
	return []byte{
		InterfaceDescriptorSize, byte(DescriptorTypeInterface),
		i.InterfaceNumber, i.AlternateSetting, i.NumEndpoints,
		i.InterfaceClass, i.InterfaceSubClass, i.InterfaceProtocol, i.InterfaceIndex,
	}
}

func encodeEndpoint(e EndpointDescriptor) []byte {
	b := []byte{EndpointDescriptorSize, byte(DescriptorTypeEndpoint), e.EndpointAddress, e.Attributes}
	b = binary.LittleEndian.AppendUint16(b, e.MaxPacketSize)
	return append(b, e.Interval)
}

func encodeString(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := []byte{byte(2 + 2*len(units)), byte(DescriptorTypeString)}
	for _, u := range units {
		b = binary.LittleEndian.AppendUint16(b, u)
	}
	return b
}

func encodeLangIDs(ids ...uint16) []byte {
	b := []byte{byte(2 + 2*len(ids)), byte(DescriptorTypeString)}
	for _, id := range ids {
		b = binary.LittleEndian.AppendUint16(b, id)
	}
	return b
}
