package binary

import "encoding/binary"

// Writer builds the output byte stream. The format is optimized for
// reading, not writing, so section and body sizes are reserved as fixed
// 5-byte LEB placeholders and backpatched once the payload size is known.
type Writer struct {
	buf []byte
}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf = append(w.buf, b)
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.buf = append(w.buf, data...)
}

// WriteU32 writes an unsigned LEB128 encoded uint32.
func (w *Writer) WriteU32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf = append(w.buf, b)
		if v == 0 {
			break
		}
	}
}

// WriteS32 writes a signed LEB128 encoded int32.
func (w *Writer) WriteS32(v int32) {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		w.buf = append(w.buf, b)
	}
}

// WriteS64 writes a signed LEB128 encoded int64.
func (w *Writer) WriteS64(v int64) {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		w.buf = append(w.buf, b)
	}
}

// WriteU32LE writes a little-endian uint32 (fixed 4 bytes).
func (w *Writer) WriteU32LE(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteU64LE writes a little-endian uint64 (fixed 8 bytes).
func (w *Writer) WriteU64LE(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteInlineString writes a LEB128 length-prefixed string.
func (w *Writer) WriteInlineString(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// PlaceholderSize is the reserved width of a backpatchable LEB size field.
const PlaceholderSize = 5

// PlaceholderU32 reserves a 5-byte LEB size field and returns its position
// for a later PatchU32.
func (w *Writer) PlaceholderU32() int {
	at := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0, 0)
	return at
}

// PatchU32 backpatches a placeholder at the given position with v, padded
// to the full 5 bytes so the patch never shifts the stream.
func (w *Writer) PatchU32(at int, v uint32) {
	for i := 0; i < PlaceholderSize; i++ {
		b := byte(v & 0x7f)
		v >>= 7
		if i+1 < PlaceholderSize {
			b |= 0x80
		}
		w.buf[at+i] = b
	}
}
