package ozwpan

import "fmt"

// ElementType is the tag of a tagged element.
type ElementType uint8

const (
	ElementConnectRequest     ElementType = 0x06
	ElementConnectResponse    ElementType = 0x07
	ElementDisconnect         ElementType = 0x08
	ElementUpdateParamRequest ElementType = 0x11
	ElementFarewellRequest    ElementType = 0x12
	ElementAppData            ElementType = 0x31
)

var elementTypeNames = map[ElementType]string{
	ElementConnectRequest:     "Connection Request",
	ElementConnectResponse:    "Connection Response",
	ElementDisconnect:         "Disconnect",
	ElementUpdateParamRequest: "Update Parameter Request",
	ElementFarewellRequest:    "Farewell Request",
	ElementAppData:            "Application Data",
}

func (t ElementType) String() string {
	if s, ok := elementTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown (%d)", uint8(t))
}

// StatusCode is the status of a connect response.
type StatusCode uint8

const (
	StatusSuccess         StatusCode = 0
	StatusInvalidParam    StatusCode = 1
	StatusTooManyPDs      StatusCode = 2
	StatusNotAllowed      StatusCode = 4
	StatusSessionMismatch StatusCode = 5
	StatusSessionTeardown StatusCode = 6
)

var statusNames = map[StatusCode]string{
	StatusSuccess:         "Success",
	StatusInvalidParam:    "Invalid Parameter",
	StatusTooManyPDs:      "Too many PDs",
	StatusNotAllowed:      "Not Allowed",
	StatusSessionMismatch: "Session Mismatch",
	StatusSessionTeardown: "Session Teardown",
}

func (s StatusCode) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Unknown (%d)", uint8(s))
}

// Connect mode field: low nibble selects the mode, the top bits carry isoc options.
const (
	modeMask        = 0x0f
	ModePolled      = 0x0
	ModeTriggered   = 0x1
	ModeIsocNoElts  = 0x40
	ModeIsocAnytime = 0x80
)

var connectModeNames = map[uint8]string{
	ModePolled:    "Polled Mode",
	ModeTriggered: "Triggered Mode",
}

// Keep-alive field: type in the top two bits, value in the low six.
const (
	keepAliveTypeMask  = 0xc0
	keepAliveValueMask = 0x3f
	KeepAliveSpecial   = 0x00
	KeepAliveSeconds   = 0x40
	KeepAliveMinutes   = 0x80
	KeepAliveHours     = 0xc0
)

func keepAliveString(v uint8) string {
	n := v & keepAliveValueMask
	switch v & keepAliveTypeMask {
	case KeepAliveSeconds:
		return fmt.Sprintf("%d Seconds", n)
	case KeepAliveMinutes:
		return fmt.Sprintf("%d Minutes", n)
	case KeepAliveHours:
		return fmt.Sprintf("%d Hours", n)
	default:
		return fmt.Sprintf("Special (%d)", n)
	}
}

// AppID selects the application carried by an application data element.
type AppID uint8

const (
	AppUSB    AppID = 0x1
	AppSerial AppID = 0x4
)

var appNames = map[AppID]string{
	AppUSB:    "USB",
	AppSerial: "Serial",
}

func (a AppID) String() string {
	if s, ok := appNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Unknown (%d)", uint8(a))
}

// USBOp is the operation code of a USB application data unit.
type USBOp uint8

const (
	OpGetDescriptorRequest     USBOp = 1
	OpGetDescriptorResponse    USBOp = 2
	OpSetConfigRequest         USBOp = 3
	OpSetConfigResponse        USBOp = 4
	OpSetInterfaceRequest      USBOp = 5
	OpSetInterfaceResponse     USBOp = 6
	OpVendorClassRequest       USBOp = 7
	OpVendorClassResponse      USBOp = 8
	OpGetStatusRequest         USBOp = 9
	OpGetStatusResponse        USBOp = 10
	OpClearFeatureRequest      USBOp = 11
	OpClearFeatureResponse     USBOp = 12
	OpSetFeatureRequest        USBOp = 13
	OpSetFeatureResponse       USBOp = 14
	OpGetConfigurationRequest  USBOp = 15
	OpGetConfigurationResponse USBOp = 16
	OpGetInterfaceRequest      USBOp = 17
	OpGetInterfaceResponse     USBOp = 18
	OpSynchFrameRequest        USBOp = 19
	OpSynchFrameResponse       USBOp = 20
	OpEndpointData             USBOp = 23
)

var usbOpNames = map[USBOp]string{
	OpGetDescriptorRequest:     "GET DESCRIPTOR Request",
	OpGetDescriptorResponse:    "GET DESCRIPTOR Response",
	OpSetConfigRequest:         "SET CONFIGURATION Request",
	OpSetConfigResponse:        "SET CONFIGURATION Response",
	OpSetInterfaceRequest:      "SET INTERFACE Request",
	OpSetInterfaceResponse:     "SET INTERFACE Response",
	OpVendorClassRequest:       "Vendor Class Request",
	OpVendorClassResponse:      "Vendor Class Response",
	OpGetStatusRequest:         "GET STATUS Request",
	OpGetStatusResponse:        "GET STATUS Response",
	OpClearFeatureRequest:      "CLEAR FEATURE Request",
	OpClearFeatureResponse:     "CLEAR FEATURE Response",
	OpSetFeatureRequest:        "SET FEATURE Request",
	OpSetFeatureResponse:       "SET FEATURE Response",
	OpGetConfigurationRequest:  "GET CONFIGURATION Request",
	OpGetConfigurationResponse: "GET CONFIGURATION Response",
	OpGetInterfaceRequest:      "GET INTERFACE Request",
	OpGetInterfaceResponse:     "GET INTERFACE Response",
	OpSynchFrameRequest:        "Synch Frame Request",
	OpSynchFrameResponse:       "Synch Frame Response",
	OpEndpointData:             "ENDPOINT DATA",
}

// Name returns the operation name and whether the code is defined.
func (o USBOp) Name() (string, bool) {
	s, ok := usbOpNames[o]
	return s, ok
}

func (o USBOp) String() string {
	if s, ok := usbOpNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Unknown (%d)", uint8(o))
}

// DataFormat is the low nibble of the endpoint data format byte.
type DataFormat uint8

const (
	dataFormatMask = 0x0f

	FormatMultipleFixed DataFormat = 0x1
	FormatMultipleVar   DataFormat = 0x2
	FormatIsocFixed     DataFormat = 0x3
	FormatIsocVar       DataFormat = 0x4
	FormatFragmented    DataFormat = 0x5
	FormatIsocLarge     DataFormat = 0x7
)

var dataFormatNames = map[DataFormat]string{
	FormatMultipleFixed: "Multiple Fixed Data",
	FormatMultipleVar:   "Multiple Variable Data",
	FormatIsocFixed:     "ISOC Fixed Data",
	FormatIsocVar:       "ISOC Variable Data",
	FormatFragmented:    "Fragmented Data",
	FormatIsocLarge:     "ISOC Large Data",
}

func (f DataFormat) String() string {
	if s, ok := dataFormatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Unknown (%d)", uint8(f))
}

// Request type byte of a GET_DESCRIPTOR request.
const (
	recipientMask   = 0x1f
	requestKindMask = 0x60
	directionMask   = 0x80
)

var recipientNames = map[uint8]string{
	0x00: "Device",
	0x01: "Interface",
	0x02: "Endpoint",
}

var requestKindNames = map[uint8]string{
	0x00: "Standard",
	0x01: "Class",
	0x02: "Vendor",
}

var directionNames = map[uint8]string{
	0x0: "Host to Device",
	0x1: "Device to Host",
}

// Descriptor types carried in GET_DESCRIPTOR exchanges.
const (
	DescDevice        = 0x01
	DescConfiguration = 0x02
	DescString        = 0x03
)

var descTypeNames = map[uint8]string{
	DescDevice:        "Device descriptor",
	DescConfiguration: "Configuration descriptor",
	DescString:        "String descriptor",
}
