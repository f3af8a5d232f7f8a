package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ozwpan/internal/core"
)

var testFrames = [][]byte{
	{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x89, 0x2e, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00},
	{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x08, 0x00, 0x45},
}

func writePcap(t *testing.T, ng bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	ts := time.Unix(1700000000, 0).UTC()
	if ng {
		w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
		require.NoError(t, err)
		for i, data := range testFrames {
			ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Millisecond), CaptureLength: len(data), Length: len(data)}
			require.NoError(t, w.WritePacket(ci, data))
		}
		require.NoError(t, w.Flush())
		return path
	}

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	for i, data := range testFrames {
		ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Millisecond), CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func readAll(t *testing.T, s *Source) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		data, _, err := s.ReadPacket()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, data)
	}
}

func TestReadPcap(t *testing.T) {
	s, err := NewSource(writePcap(t, false))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.False(t, s.IsNg())
	assert.Equal(t, layers.LinkTypeEthernet, s.LinkType())
	assert.Equal(t, testFrames, readAll(t, s))
}

func TestReadPcapng(t *testing.T) {
	s, err := NewSource(writePcap(t, true))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.True(t, s.IsNg())
	assert.Equal(t, layers.LinkTypeEthernet, s.LinkType())
	assert.Equal(t, testFrames, readAll(t, s))
}

func TestReadBeforeStart(t *testing.T) {
	s, err := NewSource("unused.pcap")
	require.NoError(t, err)

	_, _, err = s.ReadPacket()
	assert.ErrorIs(t, err, core.ErrSourceNotStarted)
	assert.NoError(t, s.Stop())
}

func TestStartErrors(t *testing.T) {
	_, err := NewSource("")
	assert.Error(t, err)

	s, _ := NewSource(filepath.Join(t.TempDir(), "missing.pcap"))
	assert.Error(t, s.Start(context.Background()))

	junk := filepath.Join(t.TempDir(), "junk.pcap")
	require.NoError(t, os.WriteFile(junk, []byte("not a capture file"), 0644))
	s, _ = NewSource(junk)
	assert.Error(t, s.Start(context.Background()))
}
