package xdr

import (
	"bytes"
	"errors"
	"testing"
)

func TestReaderIntegers(t *testing.T) {
	data := []byte{
		0x34, 0x12,
		0x78, 0x56, 0x34, 0x12,
		0xfe, 0xff, 0xff, 0xff,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
	}
	r := NewReader(data)

	if v, err := r.ReadUint16(); err != nil || v != 0x1234 {
		t.Errorf("ReadUint16 = %#x, %v; want 0x1234", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 0x12345678 {
		t.Errorf("ReadUint32 = %#x, %v; want 0x12345678", v, err)
	}
	if v, err := r.ReadInt32(); err != nil || v != -2 {
		t.Errorf("ReadInt32 = %d, %v; want -2", v, err)
	}
	if v, err := r.ReadUint64(); err != nil || v != 0x0102030405060708 {
		t.Errorf("ReadUint64 = %#x, %v; want 0x0102030405060708", v, err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
	if _, err := r.ReadUint16(); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("read past end: err = %v, want ErrShortBuffer", err)
	}
}

func TestReaderNext(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4, 5})
	b, err := r.Next(2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, []byte{1, 2}) {
		t.Errorf("Next(2) = %v", b)
	}
	if cap(b) != 2 {
		t.Errorf("cap(Next(2)) = %d, want 2", cap(b))
	}
	if _, err := r.Next(-1); !errors.Is(err, ErrNegativeSize) {
		t.Errorf("Next(-1): err = %v", err)
	}
	if _, err := r.Next(4); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("Next(4): err = %v", err)
	}
	if err := r.Skip(1); err != nil {
		t.Fatal(err)
	}
	if rest := r.Rest(); !bytes.Equal(rest, []byte{4, 5}) {
		t.Errorf("Rest = %v", rest)
	}
	if r.Len() != 0 {
		t.Errorf("Len after Rest = %d, want 0", r.Len())
	}
}

func TestUint16sRoundTrip(t *testing.T) {
	in := []uint16{0, 1, 0x8000, 0xffff, 0x3c00}
	w := NewBufferWriter(0)
	w.WriteUint16s(in)
	out := make([]uint16, len(in))
	if err := NewReader(w.Bytes()).ReadUint16s(out); err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("Index %d: got %#x, want %#x", i, out[i], in[i])
		}
	}
	if err := NewReader([]byte{1}).ReadUint16s(out); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("short ReadUint16s: err = %v", err)
	}
}

func TestBufferWriterPatch(t *testing.T) {
	w := NewBufferWriter(16)
	w.WriteBytes([]byte{0xaa})
	pos := w.Reserve(8)
	w.WriteUint32(7)
	ByteOrder.PutUint64(w.Bytes()[pos:], 0x1122334455667788)

	r := NewReader(w.Bytes())
	r.Skip(1)
	if v, _ := r.ReadUint64(); v != 0x1122334455667788 {
		t.Errorf("patched value = %#x", v)
	}
	if v, _ := r.ReadUint32(); v != 7 {
		t.Errorf("trailing value = %d, want 7", v)
	}

	w.Reset()
	if w.Len() != 0 {
		t.Errorf("Len after Reset = %d", w.Len())
	}
}

func TestSignedRoundTrip(t *testing.T) {
	w := NewBufferWriter(0)
	w.WriteInt32(-123456)
	r := NewReader(w.Bytes())
	if v, _ := r.ReadInt32(); v != -123456 {
		t.Errorf("ReadInt32 = %d", v)
	}
}

func BenchmarkReaderUint32(b *testing.B) {
	data := make([]byte, 4096)
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		r := NewReader(data)
		for r.Len() >= 4 {
			r.ReadUint32()
		}
	}
}
