package wasmjournal

import "testing"

func TestAddressWidthNarrow(t *testing.T) {
	tests := []struct {
		name  string
		width AddressWidth
		addr  uint64
		want  uint64
		ok    bool
	}{
		{"32 fits", Width32, 0x1000, 0x1000, true},
		{"32 max", Width32, 0xFFFF_FFFF, 0xFFFF_FFFF, true},
		{"32 overflow", Width32, 0x1_0000_0000, 0, false},
		{"64 wide", Width64, 0x1_0000_0000, 0x1_0000_0000, true},
		{"invalid width", AddressWidth(16), 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.width.Narrow(tt.addr)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("got 0x%x, want 0x%x", got, tt.want)
			}
		})
	}
}

func TestStartType(t *testing.T) {
	if !MainThread().IsMain() {
		t.Error("MainThread().IsMain() = false")
	}
	s := Spawned(0x40)
	if s.IsMain() {
		t.Error("Spawned().IsMain() = true")
	}
	if s.String() != "spawn(0x40)" {
		t.Errorf("String() = %q", s.String())
	}
}

func TestByteMemoryBounds(t *testing.T) {
	m := NewByteMemory(16)
	if err := m.WriteU64(8, 0xdeadbeef); err != nil {
		t.Fatalf("WriteU64: %v", err)
	}
	v, err := m.ReadU64(8)
	if err != nil || v != 0xdeadbeef {
		t.Fatalf("ReadU64 = %x, %v", v, err)
	}
	if _, err := m.ReadU64(9); err == nil {
		t.Error("expected out of bounds error")
	}
	if err := m.Write(15, []byte{1, 2}); err == nil {
		t.Error("expected out of bounds write error")
	}
}
