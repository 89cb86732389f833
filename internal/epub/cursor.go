package epub

import "encoding/binary"

// cursor reads little-endian fixed-width values at absolute offsets.
// Every read reports ok=false instead of panicking when it would overrun.
type cursor []byte

func (c cursor) uint16At(off int) (uint16, bool) {
	if off < 0 || off+2 > len(c) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(c[off:]), true
}

func (c cursor) uint32At(off int) (uint32, bool) {
	if off < 0 || off+4 > len(c) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(c[off:]), true
}

func (c cursor) bytesAt(off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off+n > len(c) || off+n < off {
		return nil, false
	}
	return c[off : off+n], true
}
