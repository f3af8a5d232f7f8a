// Package afpacket captures OZWPAN frames live from a Linux interface.
package afpacket

import (
	"fmt"

	"golang.org/x/net/bpf"

	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/ozwpan"
)

const Name = "afpacket"

// ErrTimeout is returned by ReadPacket when the poll timeout expires without a frame.
var ErrTimeout = fmt.Errorf("afpacket: %w", core.ErrCaptureTimeout)

var errNotStarted = fmt.Errorf("afpacket: %w", core.ErrSourceNotStarted)

// Config holds the ring and socket settings of a live source.
type Config struct {
	Device       string
	SnapLen      int
	BufferSizeMB int
	TimeoutMs    int
	FanoutID     uint16
	VLAN         bool // Also accept frames with one 802.1Q tag
}

const (
	etherTypeOffset = 12
	vlanTagLen      = 4
	etherTypeDot1Q  = 0x8100
)

// EtherTypeFilter assembles a classic BPF program equivalent to
// "ether proto 0x892e" (or "... or (vlan and ether proto 0x892e)" when vlan is set).
// Accepted frames are truncated to snapLen.
func EtherTypeFilter(snapLen int, vlan bool) ([]bpf.RawInstruction, error) {
	if snapLen <= 0 {
		return nil, fmt.Errorf("snapLen must be positive, got %d", snapLen)
	}
	proto := uint32(ozwpan.EtherType)
	accept := bpf.RetConstant{Val: uint32(snapLen)}
	drop := bpf.RetConstant{Val: 0}

	var prog []bpf.Instruction
	if vlan {
		prog = []bpf.Instruction{
			bpf.LoadAbsolute{Off: etherTypeOffset, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: proto, SkipTrue: 3},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeDot1Q, SkipFalse: 3},
			bpf.LoadAbsolute{Off: etherTypeOffset + vlanTagLen, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: proto, SkipFalse: 1},
			accept,
			drop,
		}
	} else {
		prog = []bpf.Instruction{
			bpf.LoadAbsolute{Off: etherTypeOffset, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: proto, SkipFalse: 1},
			accept,
			drop,
		}
	}

	raw, err := bpf.Assemble(prog)
	if err != nil {
		return nil, fmt.Errorf("assemble bpf filter: %w", err)
	}
	return raw, nil
}

// recomputeSize picks TPACKET_V3 ring geometry for a memory budget of bufferSizeMB.
// Frames are aligned to TPACKET_ALIGNMENT, or to whole pages once larger than a page,
// so that a block can be a multiple of both the page and the frame size.
func recomputeSize(bufferSizeMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	const tpacketAlignment = 16
	const tpacketHdrLen = 52

	if bufferSizeMB <= 0 {
		return 0, 0, 0, fmt.Errorf("bufferSizeMB must be positive, got %d", bufferSizeMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snapLen must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("pageSize must be positive and multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)
	if frameSize > pageSize {
		frameSize = alignUp(frameSize, pageSize)
	}
	blockSize = lcm(pageSize, frameSize)

	numBlocks = (bufferSizeMB << 20) / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
