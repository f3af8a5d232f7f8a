package ozwpan

import "fmt"

// ElementBody is the decoded body of an element. The set of implementations is
// closed: ConnectRequest, ConnectResponse, Disconnect, UpdateParamRequest,
// FarewellRequest, AppData and OpaqueElement.
type ElementBody interface {
	elementBody()
}

// ConnectRequest is sent by a host to open a session with a peripheral.
type ConnectRequest struct {
	Mode        uint8  `json:"mode" yaml:"mode"`
	PDInfo      uint8  `json:"pd_info" yaml:"pd_info"`
	SessionID   uint8  `json:"session_id" yaml:"session_id"`
	Presleep    uint8  `json:"presleep" yaml:"presleep"`
	IsocLatency uint8  `json:"ms_isoc_latency" yaml:"ms_isoc_latency"`
	HostVendor  uint8  `json:"host_vendor" yaml:"host_vendor"`
	KeepAlive   uint8  `json:"keep_alive" yaml:"keep_alive"`
	Apps        uint16 `json:"apps" yaml:"apps"`
	MaxLenDiv16 uint8  `json:"max_len_div16" yaml:"max_len_div16"`
	MsPerIsoc   uint8  `json:"ms_per_isoc" yaml:"ms_per_isoc"`
	// Partial is set when the body ended before the fixed layout did.
	Partial bool `json:"partial,omitempty" yaml:"partial,omitempty"`
}

// ConnectResponse answers a ConnectRequest.
type ConnectResponse struct {
	Mode      uint8      `json:"mode" yaml:"mode"`
	Status    StatusCode `json:"status" yaml:"status"`
	SessionID uint8      `json:"session_id" yaml:"session_id"`
	Apps      uint16     `json:"apps" yaml:"apps"`
	Partial   bool       `json:"partial,omitempty" yaml:"partial,omitempty"`
}

// Disconnect carries no fields.
type Disconnect struct{}

// UpdateParamRequest changes the sleep and keep-alive parameters of a session.
type UpdateParamRequest struct {
	Presleep   uint8 `json:"presleep" yaml:"presleep"`
	HostVendor uint8 `json:"host_vendor" yaml:"host_vendor"`
	KeepAlive  uint8 `json:"keep_alive" yaml:"keep_alive"`
	Partial    bool  `json:"partial,omitempty" yaml:"partial,omitempty"`
}

// FarewellRequest carries a final report for an endpoint.
type FarewellRequest struct {
	EPNum   uint8 `json:"ep_num" yaml:"ep_num"`
	Index   uint8 `json:"index" yaml:"index"`
	Report  Range `json:"report" yaml:"report"`
	Partial bool  `json:"partial,omitempty" yaml:"partial,omitempty"`
}

// OpaqueElement is an element with no decoder; Data covers its body.
type OpaqueElement struct {
	Data Range `json:"data" yaml:"data"`
}

func (*ConnectRequest) elementBody()     {}
func (*ConnectResponse) elementBody()    {}
func (*Disconnect) elementBody()         {}
func (*UpdateParamRequest) elementBody() {}
func (*FarewellRequest) elementBody()    {}
func (*AppData) elementBody()            {}
func (*OpaqueElement) elementBody()      {}

func (d *decoder) connectRequest(c Cursor) *ConnectRequest {
	d.summary("Connect Request")
	r := d.reader(c)
	e := &ConnectRequest{}
	e.Mode = r.bitfield(0, hfMode, hfModeNoElts, hfModeAnytime)
	r.bytes(1, 16, hfReserved)
	e.PDInfo = r.u8(17, hfPDInfo)
	e.SessionID = r.u8(18, hfSessionID)
	e.Presleep = r.u8(19, hfPresleep)
	e.IsocLatency = r.u8(20, hfIsocLatency)
	e.HostVendor = r.u8(21, hfHostVendor)
	e.KeepAlive = r.u8(22, hfKeepAlive)
	e.Apps = r.u16(23, hfApps)
	e.MaxLenDiv16 = r.u8(25, hfMaxLenDiv16)
	e.MsPerIsoc = r.u8(26, hfMsPerIsoc)
	r.bytes(27, 2, hfReserved)
	if r.err != nil {
		e.Partial = true
		d.truncated(c, 0, ElementConnectRequest.String(), r.err)
	}
	return e
}

func (d *decoder) connectResponse(c Cursor) *ConnectResponse {
	d.summary("Connect Response")
	r := d.reader(c)
	e := &ConnectResponse{}
	e.Mode = r.bitfield(0, hfMode, hfModeNoElts, hfModeAnytime)
	e.Status = StatusCode(r.u8(1, hfStatus))
	r.bytes(2, 3, hfReserved)
	e.SessionID = r.u8(5, hfSessionID)
	e.Apps = r.u16(6, hfApps)
	r.bytes(8, 4, hfReserved)
	if r.err != nil {
		e.Partial = true
		d.truncated(c, 0, ElementConnectResponse.String(), r.err)
	}
	return e
}

func (d *decoder) disconnect() *Disconnect {
	d.summary("Disconnect")
	return &Disconnect{}
}

func (d *decoder) updateParamRequest(c Cursor) *UpdateParamRequest {
	d.summary("Parameter Update Request")
	r := d.reader(c)
	e := &UpdateParamRequest{}
	r.bytes(0, 16, hfReserved)
	e.Presleep = r.u8(16, hfPresleep)
	r.bytes(17, 1, hfReserved)
	e.HostVendor = r.u8(18, hfHostVendor)
	e.KeepAlive = r.u8(19, hfKeepAlive)
	if r.err != nil {
		e.Partial = true
		d.truncated(c, 0, ElementUpdateParamRequest.String(), r.err)
	}
	return e
}

func (d *decoder) farewellRequest(c Cursor) *FarewellRequest {
	d.summary("Farewell Request")
	r := d.reader(c)
	e := &FarewellRequest{}
	e.EPNum = r.u8(0, hfEPNum)
	e.Index = r.u8(1, hfIndex)
	e.Report = r.tail(2, hfReport)
	if r.err != nil {
		e.Partial = true
		d.truncated(c, 0, ElementFarewellRequest.String(), r.err)
	}
	return e
}

func (d *decoder) unsupported(t ElementType, c Cursor) *OpaqueElement {
	d.diagnose(Diagnostic{
		Kind:     DiagUnsupportedElement,
		Severity: SeverityError,
		Tag:      uint8(t),
		Offset:   c.Abs(0) - elementPrefixLen,
		Length:   elementPrefixLen + c.Len(),
		Message:  fmt.Sprintf("no decoder for element type %s", t),
	})
	rg, _ := d.tail(c, 0, hfElementData)
	return &OpaqueElement{Data: rg}
}
