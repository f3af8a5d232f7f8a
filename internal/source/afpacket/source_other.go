//go:build !linux

package afpacket

import (
	"context"
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var errUnsupported = errors.New("af_packet capture is only available on linux")

type Source struct{}

func NewSource(cfg Config) (*Source, error) { return nil, errUnsupported }

func (s *Source) Name() string                    { return Name }
func (s *Source) Start(ctx context.Context) error { return errUnsupported }
func (s *Source) ReadPacket() ([]byte, gopacket.CaptureInfo, error) {
	return nil, gopacket.CaptureInfo{}, errUnsupported
}
func (s *Source) LinkType() layers.LinkType               { return layers.LinkTypeEthernet }
func (s *Source) Stats() (packets, drops uint, err error) { return 0, 0, errUnsupported }
func (s *Source) Stop() error                             { return nil }
