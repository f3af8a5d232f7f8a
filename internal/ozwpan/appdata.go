package ozwpan

import (
	"fmt"

	"firestige.xyz/ozwpan/internal/usb"
)

// AppData is an application data element. USB is set for the USB application,
// Payload for the serial application.
type AppData struct {
	AppID   AppID    `json:"app_id" yaml:"app_id"`
	SeqNum  uint8    `json:"seq_num" yaml:"seq_num"`
	USB     *USBUnit `json:"usb,omitempty" yaml:"usb,omitempty"`
	Payload *Range   `json:"payload,omitempty" yaml:"payload,omitempty"`
	Partial bool     `json:"partial,omitempty" yaml:"partial,omitempty"`
}

// USBUnit is one USB request, response or endpoint data unit. At most one of
// the op-specific members is set.
type USBUnit struct {
	Op                    USBOp                  `json:"op" yaml:"op"`
	GetDescriptorRequest  *GetDescriptorRequest  `json:"get_descriptor_request,omitempty" yaml:"get_descriptor_request,omitempty"`
	GetDescriptorResponse *GetDescriptorResponse `json:"get_descriptor_response,omitempty" yaml:"get_descriptor_response,omitempty"`
	SetConfigRequest      *SetConfigRequest      `json:"set_config_request,omitempty" yaml:"set_config_request,omitempty"`
	Endpoint              *EndpointData          `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Payload               *Range                 `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// GetDescriptorRequest mirrors a chapter 9 GET_DESCRIPTOR setup packet.
type GetDescriptorRequest struct {
	ReqID      uint8  `json:"req_id" yaml:"req_id"`
	Offset     uint16 `json:"offset" yaml:"offset"`
	Size       uint16 `json:"size" yaml:"size"`
	ReqType    uint8  `json:"req_type" yaml:"req_type"`
	DescType   uint8  `json:"desc_type" yaml:"desc_type"`
	WIndex     uint16 `json:"w_index" yaml:"w_index"`
	Length     uint8  `json:"length" yaml:"length"`
	Incomplete bool   `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
}

// GetDescriptorResponse carries (part of) a descriptor. Descriptor is set when
// the descriptor bytes were complete and of a known type.
type GetDescriptorResponse struct {
	ReqID       uint8                  `json:"req_id" yaml:"req_id"`
	Offset      uint16                 `json:"offset" yaml:"offset"`
	Size        uint16                 `json:"size" yaml:"size"`
	Rcode       uint8                  `json:"rcode" yaml:"rcode"`
	Incomplete  bool                   `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
	Transaction usb.TransactionContext `json:"transaction" yaml:"transaction"`
	Descriptor  *usb.Descriptor        `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
}

// SetConfigRequest selects a configuration.
type SetConfigRequest struct {
	ReqID   uint8 `json:"req_id" yaml:"req_id"`
	Index   uint8 `json:"index" yaml:"index"`
	Partial bool  `json:"partial,omitempty" yaml:"partial,omitempty"`
}

const (
	appHeaderLen      = 3 // app_id, seq_num, usb_op
	getDescRequestLen = 10
	getDescRspHdrLen  = 6
)

func (d *decoder) appData(c Cursor) *AppData {
	e := &AppData{}
	r := d.reader(c)
	e.AppID = AppID(r.u8(0, hfAppID))
	e.SeqNum = r.u8(1, hfSeqNum)
	if r.err != nil {
		e.Partial = true
		d.truncated(c, 0, ElementAppData.String(), r.err)
		return e
	}

	switch e.AppID {
	case AppUSB:
		op, err := d.u8(c, 2, hfUSBType)
		if err != nil {
			e.Partial = true
			d.truncated(c, 0, "USB application data", err)
			return e
		}
		e.USB = d.usbUnit(c, USBOp(op))
	case AppSerial:
		d.summary("Serial Frame")
		rg, err := d.tail(c, appHeaderLen, hfAppData)
		if err != nil {
			e.Partial = true
			d.truncated(c, 0, "Serial application data", err)
			return e
		}
		e.Payload = &rg
	}
	return e
}

func (d *decoder) usbUnit(c Cursor, op USBOp) *USBUnit {
	u := &USBUnit{Op: op}
	if op != OpEndpointData {
		name, ok := op.Name()
		if !ok {
			name = "Unknown"
		}
		d.summary(fmt.Sprintf("USB Control (%s)", name))
	}

	body, _ := c.Tail(min(appHeaderLen, c.Len()))
	switch op {
	case OpGetDescriptorRequest:
		u.GetDescriptorRequest = d.getDescriptorRequest(body)
	case OpGetDescriptorResponse:
		u.GetDescriptorResponse = d.getDescriptorResponse(body)
	case OpSetConfigRequest:
		u.SetConfigRequest = d.setConfigRequest(body)
	case OpSynchFrameResponse:
		rg, _ := d.tail(body, 0, hfAppData)
		u.Payload = &rg
	case OpEndpointData:
		ep, _ := c.Tail(2)
		u.Endpoint = d.endpointData(ep)
	}
	return u
}

func (d *decoder) getDescriptorRequest(c Cursor) *GetDescriptorRequest {
	req := &GetDescriptorRequest{}
	if c.Len() < getDescRequestLen {
		d.summary("USB get descriptor request (Incomplete)")
		req.Incomplete = true
		return req
	}
	d.summary("USB get descriptor request")
	r := d.reader(c)
	req.ReqID = r.u8(0, hfReqID)
	req.Offset = r.u16(1, hfOffset)
	req.Size = r.u16(3, hfSize)
	req.ReqType = r.bitfield(5, hfReqType, hfRecipient, hfRequestKind, hfDirection)
	req.DescType = r.u8(6, hfDescType)
	req.WIndex = r.u16(7, hfWIndex)
	req.Length = r.u8(9, hfLength)
	return req
}

func (d *decoder) getDescriptorResponse(c Cursor) *GetDescriptorResponse {
	d.summary("USB get descriptor response")
	rsp := &GetDescriptorResponse{
		Transaction: usb.TransactionContext{
			RequestIn:   d.meta.Number,
			RequestTime: d.meta.Timestamp,
		},
	}
	r := d.reader(c)
	rsp.ReqID = r.u8(0, hfReqID)
	rsp.Offset = r.u16(1, hfOffset)
	rsp.Size = r.u16(3, hfSize)
	rsp.Rcode = r.u8(5, hfRcode)
	if r.err != nil {
		d.summary("USB get descriptor response (Incomplete)")
		rsp.Incomplete = true
		d.truncated(c, 0, "GET_DESCRIPTOR response", r.err)
		return rsp
	}

	needed := int(rsp.Size) - int(rsp.Offset)
	if c.Remaining(getDescRspHdrLen) < needed {
		d.summary("USB get descriptor response (Incomplete)")
		rsp.Incomplete = true
		return rsp
	}

	descType, err := c.Uint8(getDescRspHdrLen + 1)
	if err != nil {
		return rsp
	}
	switch descType {
	case DescDevice, DescConfiguration:
	case DescString:
		rsp.Transaction.Index = 1
		rsp.Transaction.Length = rsp.Size
	default:
		return rsp
	}

	desc, err := d.bridge.Decode(c.Frame(), c.Abs(getDescRspHdrLen), rsp.Transaction)
	if err != nil {
		d.truncated(c, getDescRspHdrLen, "USB descriptor", err)
		return rsp
	}
	rsp.Descriptor = desc
	d.descriptor(desc)
	return rsp
}

// descriptor emits a decoded descriptor and its subordinates as a subtree.
func (d *decoder) descriptor(desc *usb.Descriptor) {
	d.sink.Begin(hfDescriptor.Text(desc.Offset, desc.Length, desc.Label()))
	for _, f := range desc.Fields {
		d.sink.AddField(Field(f))
	}
	for _, child := range desc.Children {
		d.descriptor(child)
	}
	d.sink.End()
}

func (d *decoder) setConfigRequest(c Cursor) *SetConfigRequest {
	d.summary("USB set configuration request")
	req := &SetConfigRequest{}
	r := d.reader(c)
	req.ReqID = r.u8(0, hfReqID)
	req.Index = r.u8(1, hfIndex)
	if r.err != nil {
		req.Partial = true
		d.truncated(c, 0, "SET_CONFIGURATION request", r.err)
	}
	return req
}
