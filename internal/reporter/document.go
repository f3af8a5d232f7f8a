package reporter

import (
	"time"

	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/ozwpan"
)

// Document is the serialized form of one output frame.
type Document struct {
	Number    uint64         `json:"number" yaml:"number"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Ethernet  EthernetDoc    `json:"ethernet" yaml:"ethernet"`
	Labels    core.Labels    `json:"labels,omitempty" yaml:"labels,omitempty"`
	Frame     *ozwpan.Frame  `json:"frame" yaml:"frame"`
	Tree      []*ozwpan.Node `json:"tree,omitempty" yaml:"tree,omitempty"`
}

type EthernetDoc struct {
	Src   string   `json:"src" yaml:"src"`
	Dst   string   `json:"dst" yaml:"dst"`
	VLANs []uint16 `json:"vlans,omitempty" yaml:"vlans,omitempty"`
}

// NewDocument converts f; the field tree is kept only when withTree is set.
func NewDocument(f *core.OutputFrame, withTree bool) Document {
	doc := Document{
		Number:    f.Number,
		Timestamp: f.Timestamp.UTC(),
		Ethernet: EthernetDoc{
			Src:   f.Ethernet.SrcMAC.String(),
			Dst:   f.Ethernet.DstMAC.String(),
			VLANs: f.Ethernet.VLANs,
		},
		Labels: f.Labels,
		Frame:  f.Frame,
	}
	if withTree {
		doc.Tree = f.Tree
	}
	return doc
}
