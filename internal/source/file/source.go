// Package file reads link-layer frames from pcap and pcapng capture files.
package file

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/ozwpan/internal/core"
)

const Name = "file"

// pcapng section header block type, identical in both byte orders.
const ngBlockTypeSectionHeader = 0x0A0D0D0A

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source reads a pcap or pcapng file, picked by the file's magic number.
type Source struct {
	path   string
	file   *os.File
	reader packetReader
	ng     bool
}

func NewSource(path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is required")
	}
	return &Source{path: path}, nil
}

func (fs *Source) Name() string { return Name + ":" + fs.path }

func (fs *Source) Start(ctx context.Context) error {
	f, err := os.Open(fs.path)
	if err != nil {
		return fmt.Errorf("failed to open capture file %s: %w", fs.path, err)
	}

	r, ng, err := newPacketReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to read capture file %s: %w", fs.path, err)
	}

	fs.file, fs.reader, fs.ng = f, r, ng
	return nil
}

func newPacketReader(br *bufio.Reader) (packetReader, bool, error) {
	magic, err := br.Peek(4)
	if err != nil {
		return nil, false, err
	}
	if binary.LittleEndian.Uint32(magic) == ngBlockTypeSectionHeader {
		r, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		return r, true, err
	}
	r, err := pcapgo.NewReader(br)
	return r, false, err
}

// ReadPacket returns the next frame. io.EOF marks the end of the file.
func (fs *Source) ReadPacket() ([]byte, gopacket.CaptureInfo, error) {
	if fs.reader == nil {
		return nil, gopacket.CaptureInfo{}, core.ErrSourceNotStarted
	}

	data, ci, err := fs.reader.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, gopacket.CaptureInfo{}, io.EOF
		}
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("failed to read packet: %w", err)
	}

	return data, ci, nil
}

func (fs *Source) LinkType() layers.LinkType {
	if fs.reader == nil {
		return layers.LinkTypeEthernet // default
	}
	return fs.reader.LinkType()
}

// IsNg reports whether the opened file is pcapng.
func (fs *Source) IsNg() bool { return fs.ng }

func (fs *Source) Stop() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file, fs.reader = nil, nil
	return err
}
