package binary

import (
	"bytes"
	"testing"
)

func TestLEB128Unsigned(t *testing.T) {
	tests := []struct {
		encoded []byte
		value   uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, 1},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xff, 0x01}, 255},
		{[]byte{0x80, 0x02}, 256},
		{[]byte{0xff, 0x7f}, 16383},
		{[]byte{0x80, 0x80, 0x01}, 16384},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			w := NewWriter()
			w.WriteU32(tt.value)
			if !bytes.Equal(w.Bytes(), tt.encoded) {
				t.Errorf("encode %d: got %v, want %v", tt.value, w.Bytes(), tt.encoded)
			}

			r := NewReader(tt.encoded)
			got, err := r.ReadU32()
			if err != nil {
				t.Fatalf("decode %v: %v", tt.encoded, err)
			}
			if got != tt.value {
				t.Errorf("decode %v: got %d, want %d", tt.encoded, got, tt.value)
			}
		})
	}
}

func TestLEB128Signed(t *testing.T) {
	tests := []struct {
		encoded []byte
		value   int32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, 1},
		{[]byte{0x7f}, -1},
		{[]byte{0x3f}, 63},
		{[]byte{0x40}, -64},
		{[]byte{0xc0, 0x00}, 64},
		{[]byte{0xbf, 0x7f}, -65},
		{[]byte{0x80, 0x7f}, -128},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			w := NewWriter()
			w.WriteS32(tt.value)
			if !bytes.Equal(w.Bytes(), tt.encoded) {
				t.Errorf("encode %d: got %v, want %v", tt.value, w.Bytes(), tt.encoded)
			}

			r := NewReader(tt.encoded)
			got, err := r.ReadS32()
			if err != nil {
				t.Fatalf("decode %v: %v", tt.encoded, err)
			}
			if got != tt.value {
				t.Errorf("decode %v: got %d, want %d", tt.encoded, got, tt.value)
			}
		})
	}
}

func TestLEB128Signed64(t *testing.T) {
	values := []int64{0, 1, -1, 127, -128, 1 << 40, -(1 << 40), 1<<63 - 1, -1 << 63}
	for _, v := range values {
		w := NewWriter()
		w.WriteS64(v)
		r := NewReader(w.Bytes())
		got, err := r.ReadS64()
		if err != nil {
			t.Fatalf("decode %d: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestPlaceholderPatch(t *testing.T) {
	w := NewWriter()
	w.Byte(0xaa)
	at := w.PlaceholderU32()
	w.WriteBytes([]byte{1, 2, 3})
	w.PatchU32(at, 3)

	// the placeholder must stay exactly 5 bytes, zero-padded LEB
	want := []byte{0xaa, 0x83, 0x80, 0x80, 0x80, 0x00, 1, 2, 3}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got %v, want %v", w.Bytes(), want)
	}

	// a padded placeholder decodes to the patched value
	r := NewReader(w.Bytes()[1:])
	got, err := r.ReadU32()
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("patched value: got %d, want 3", got)
	}
	if r.Pos() != 5 {
		t.Errorf("patched width: got %d, want 5", r.Pos())
	}
}

func TestUngetByte(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	b, _ := r.ReadByte()
	if b != 0x01 {
		t.Fatalf("got 0x%02x", b)
	}
	r.UngetByte()
	b, _ = r.ReadByte()
	if b != 0x01 {
		t.Errorf("after unget: got 0x%02x, want 0x01", b)
	}
}

func TestReadTruncated(t *testing.T) {
	r := NewReader([]byte{0x80}) // continuation bit with no next byte
	if _, err := r.ReadU32(); err == nil {
		t.Error("expected error for truncated LEB")
	}

	r = NewReader([]byte{1, 2})
	if _, err := r.ReadBytes(3); err == nil {
		t.Error("expected error for short read")
	}
}

func TestInlineString(t *testing.T) {
	w := NewWriter()
	w.WriteInlineString("memory")
	r := NewReader(w.Bytes())
	got, err := r.ReadInlineString()
	if err != nil {
		t.Fatal(err)
	}
	if got != "memory" {
		t.Errorf("got %q", got)
	}
}
