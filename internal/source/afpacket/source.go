//go:build linux

package afpacket

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
)

type Source struct {
	handle *afpacket.TPacket

	device    string
	snapLen   int
	frameSize int
	blockSize int
	numBlocks int
	timeoutMs int
	fanoutID  uint16
	vlan      bool
}

func NewSource(cfg Config) (*Source, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("capture interface is required")
	}
	pageSize := os.Getpagesize()
	frameSize, blockSize, numBlocks, err := recomputeSize(cfg.BufferSizeMB, cfg.SnapLen, pageSize)
	if err != nil {
		return nil, err
	}
	return &Source{
		device:    cfg.Device,
		snapLen:   cfg.SnapLen,
		frameSize: frameSize,
		blockSize: blockSize,
		numBlocks: numBlocks,
		timeoutMs: cfg.TimeoutMs,
		fanoutID:  cfg.FanoutID,
		vlan:      cfg.VLAN,
	}, nil
}

func (s *Source) Name() string { return Name + ":" + s.device }

// Start opens the TPACKET_V3 ring and attaches the OZWPAN ethertype filter.
func (s *Source) Start(ctx context.Context) error {
	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(s.device),
		afpacket.OptFrameSize(s.frameSize),
		afpacket.OptBlockSize(s.blockSize),
		afpacket.OptNumBlocks(s.numBlocks),
		afpacket.OptPollTimeout(time.Duration(s.timeoutMs)*time.Millisecond),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return fmt.Errorf("open af_packet on %s: %w", s.device, err)
	}

	if s.fanoutID > 0 {
		if err := tp.SetFanout(afpacket.FanoutHashWithDefrag, s.fanoutID); err != nil {
			tp.Close()
			return fmt.Errorf("set fanout %d: %w", s.fanoutID, err)
		}
	}

	filter, err := EtherTypeFilter(s.snapLen, s.vlan)
	if err != nil {
		tp.Close()
		return err
	}
	if err := tp.SetBPF(filter); err != nil {
		tp.Close()
		return fmt.Errorf("attach bpf filter: %w", err)
	}

	s.handle = tp
	return nil
}

func (s *Source) ReadPacket() (data []byte, info gopacket.CaptureInfo, err error) {
	if s.handle == nil {
		return nil, gopacket.CaptureInfo{}, errNotStarted
	}
	data, info, err = s.handle.ReadPacketData()
	if err == afpacket.ErrTimeout {
		return nil, info, ErrTimeout
	}
	return data, info, err
}

func (s *Source) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

// Stats returns the kernel packet and drop counters since the socket was opened.
func (s *Source) Stats() (packets, drops uint, err error) {
	if s.handle == nil {
		return 0, 0, errNotStarted
	}
	_, v3, err := s.handle.SocketStats()
	if err != nil {
		return 0, 0, err
	}
	return v3.Packets(), v3.Drops(), nil
}

func (s *Source) Stop() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	return nil
}
