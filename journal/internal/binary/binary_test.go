package binary

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReaderReadByte(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	r := NewReader(data)

	for i, want := range data {
		if r.Position() != i {
			t.Errorf("position before read %d: got %d, want %d", i, r.Position(), i)
		}
		b, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte %d: %v", i, err)
		}
		if b != want {
			t.Errorf("ReadByte %d: got 0x%02x, want 0x%02x", i, b, want)
		}
	}

	_, err := r.ReadByte()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected unexpected EOF, got %v", err)
	}
}

func TestReaderReadBytesCopies(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	r := NewReader(data)

	got, err := r.ReadBytes(3)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	data[0] = 0xFF
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("ReadBytes: got %v, want [1 2 3]", got)
	}
	if r.Len() != 2 {
		t.Errorf("Len: got %d, want 2", r.Len())
	}
	if _, err := r.ReadBytes(10); err == nil {
		t.Error("expected error for reading past end")
	}
}

func TestLEB128RoundTrip(t *testing.T) {
	tests := []struct {
		value   uint64
		encoded []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
		{0xFFFFFFFF, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
		{0x1_0000_0000, []byte{0x80, 0x80, 0x80, 0x80, 0x10}},
		{^uint64(0), []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
	}

	for _, tt := range tests {
		w := NewWriter()
		w.WriteU64(tt.value)
		if !bytes.Equal(w.Bytes(), tt.encoded) {
			t.Errorf("WriteU64(%d): got %x, want %x", tt.value, w.Bytes(), tt.encoded)
		}
		got, err := NewReader(tt.encoded).ReadU64()
		if err != nil {
			t.Errorf("ReadU64(%x): %v", tt.encoded, err)
			continue
		}
		if got != tt.value {
			t.Errorf("ReadU64(%x): got %d, want %d", tt.encoded, got, tt.value)
		}
	}
}

func TestReaderOverflow(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(*Reader) error
	}{
		{"u32 too wide", []byte{0x80, 0x80, 0x80, 0x80, 0x10}, func(r *Reader) error {
			_, err := r.ReadU32()
			return err
		}},
		{"u64 eleven bytes", bytes.Repeat([]byte{0x80}, 11), func(r *Reader) error {
			_, err := r.ReadU64()
			return err
		}},
		{"u64 high bits in last byte", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02}, func(r *Reader) error {
			_, err := r.ReadU64()
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read(NewReader(tt.data))
			if !errors.Is(err, ErrOverflow) {
				t.Errorf("expected ErrOverflow, got %v", err)
			}
		})
	}
}

func TestSignedRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 63, -64, 64, -65, 1 << 40, -(1 << 62)} {
		w := NewWriter()
		w.WriteS64(v)
		got, err := NewReader(w.Bytes()).ReadS64()
		if err != nil {
			t.Fatalf("ReadS64(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("signed round trip: got %d, want %d", got, v)
		}
	}
}

func TestBufferAndBool(t *testing.T) {
	w := NewWriter()
	w.WriteBuffer([]byte("stack"))
	w.WriteBool(true)
	w.WriteBuffer(nil)
	w.WriteU16LE(0x0201)

	r := NewReader(w.Bytes())
	buf, err := r.ReadBuffer()
	if err != nil || string(buf) != "stack" {
		t.Fatalf("ReadBuffer: %q %v", buf, err)
	}
	b, err := r.ReadBool()
	if err != nil || !b {
		t.Fatalf("ReadBool: %v %v", b, err)
	}
	empty, err := r.ReadBuffer()
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty ReadBuffer: %v %v", empty, err)
	}
	v, err := r.ReadU16LE()
	if err != nil || v != 0x0201 {
		t.Fatalf("ReadU16LE: %#x %v", v, err)
	}
	if r.Len() != 0 {
		t.Errorf("unread bytes: %d", r.Len())
	}

	if _, err := NewReader([]byte{2}).ReadBool(); err == nil {
		t.Error("expected error for bool byte 2")
	}
	if _, err := NewReader([]byte{5, 1, 2}).ReadBuffer(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("truncated buffer: got %v", err)
	}
}

func TestWrapError(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	r.ReadByte()
	r.ReadByte()

	err := r.WrapError("call_stack", errors.New("test error"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Position != 2 || pe.Field != "call_stack" {
		t.Errorf("got %+v", pe)
	}
	if got := pe.Error(); got != "journal: call_stack at position 2: test error" {
		t.Errorf("Error(): got %q", got)
	}

	pe = &ParseError{Position: 5, Err: errors.New("some error")}
	if got := pe.Error(); got != "journal: at position 5: some error" {
		t.Errorf("Error(): got %q", got)
	}
}
