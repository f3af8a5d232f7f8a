package ozwpan

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned by Cursor reads that run past the end of the window.
var ErrOutOfBounds = errors.New("ozwpan: read out of bounds")

// Cursor is a bounds-checked, read-only view over the window [start, end) of a
// frame. Offsets given to its methods are relative to the start of the window;
// Abs converts them back to frame offsets for field ranges.
//
// A Cursor never truncates: every read either fits entirely inside the window or
// fails with ErrOutOfBounds. Clamping is left to the caller.
type Cursor struct {
	data  []byte
	start int
	end   int
}

// NewCursor returns a cursor covering the whole frame.
func NewCursor(data []byte) Cursor {
	return Cursor{data: data, end: len(data)}
}

// Len returns the window size in bytes.
func (c Cursor) Len() int { return c.end - c.start }

// Abs converts a window-relative offset to a frame offset.
func (c Cursor) Abs(offset int) int { return c.start + offset }

// Remaining returns the number of window bytes at or after offset, zero when
// offset is past the end.
func (c Cursor) Remaining(offset int) int {
	if offset < 0 {
		offset = 0
	}
	if n := c.Len() - offset; n > 0 {
		return n
	}
	return 0
}

func (c Cursor) check(offset, width int) error {
	if offset < 0 || width < 0 || offset+width > c.Len() {
		return fmt.Errorf("%w: offset %d width %d, window [%d,%d)",
			ErrOutOfBounds, c.start+offset, width, c.start, c.end)
	}
	return nil
}

// Uint8 reads one byte.
func (c Cursor) Uint8(offset int) (uint8, error) {
	if err := c.check(offset, 1); err != nil {
		return 0, err
	}
	return c.data[c.start+offset], nil
}

// Uint16 reads a little-endian 16-bit value.
func (c Cursor) Uint16(offset int) (uint16, error) {
	if err := c.check(offset, 2); err != nil {
		return 0, err
	}
	p := c.start + offset
	return binary.LittleEndian.Uint16(c.data[p : p+2]), nil
}

// Uint32 reads a little-endian 32-bit value.
func (c Cursor) Uint32(offset int) (uint32, error) {
	if err := c.check(offset, 4); err != nil {
		return 0, err
	}
	p := c.start + offset
	return binary.LittleEndian.Uint32(c.data[p : p+4]), nil
}

// Bytes returns n bytes starting at offset. The slice aliases the frame and
// has its capacity capped at n.
func (c Cursor) Bytes(offset, n int) ([]byte, error) {
	if err := c.check(offset, n); err != nil {
		return nil, err
	}
	p := c.start + offset
	return c.data[p : p+n : p+n], nil
}

// Window returns a narrower cursor over [offset, offset+n) of this window.
func (c Cursor) Window(offset, n int) (Cursor, error) {
	if err := c.check(offset, n); err != nil {
		return Cursor{}, err
	}
	return Cursor{data: c.data, start: c.start + offset, end: c.start + offset + n}, nil
}

// Tail returns the window from offset to the end. offset equal to Len yields an
// empty window; anything beyond fails.
func (c Cursor) Tail(offset int) (Cursor, error) {
	return c.Window(offset, c.Len()-offset)
}

// Frame returns the frame bytes up to the end of the window, for collaborators
// that address the frame with absolute offsets.
func (c Cursor) Frame() []byte {
	return c.data[:c.end:c.end]
}
