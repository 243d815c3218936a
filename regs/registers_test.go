package regs

import "testing"

// memBlock is a flat little-endian register window.
type memBlock struct {
	mem    []byte
	writes int
}

func newMemBlock(size uintptr) *memBlock {
	return &memBlock{mem: make([]byte, size)}
}

func (m *memBlock) Read8(off uintptr) uint8 { return m.mem[off] }

func (m *memBlock) Write8(off uintptr, v uint8) {
	m.writes++
	m.mem[off] = v
}

func (m *memBlock) Read16(off uintptr) uint16 {
	return uint16(m.mem[off]) | uint16(m.mem[off+1])<<8
}

func (m *memBlock) Write16(off uintptr, v uint16) {
	m.writes++
	m.mem[off] = uint8(v)
	m.mem[off+1] = uint8(v >> 8)
}

func TestReg8Operations(t *testing.T) {
	b := newMemBlock(LayoutStd.Size)
	r := New(b, LayoutStd)

	r.Power().Write(PowerSoftConn)
	r.Power().Set(PowerEnSuspendM)
	if got := b.mem[0x01]; got != PowerSoftConn|PowerEnSuspendM {
		t.Errorf("POWER = %#02x, want %#02x", got, PowerSoftConn|PowerEnSuspendM)
	}

	r.Power().Clear(PowerSoftConn)
	if r.Power().Bit(PowerSoftConn) {
		t.Error("SoftConn still set after Clear")
	}
	if !r.Power().Bit(PowerEnSuspendM) {
		t.Error("EnSuspendM cleared by unrelated Clear")
	}

	r.FAddr().Modify(func(v uint8) uint8 { return v | 0x2A })
	if got := r.FAddr().Read(); got != 0x2A {
		t.Errorf("FADDR = %#02x, want 0x2a", got)
	}
}

func TestReg16Width(t *testing.T) {
	tests := []struct {
		name   string
		layout *Layout
		want   uint16
		high   uint8
	}{
		{"std", LayoutStd, 0xFFFE, 0xFF},
		{"mini", LayoutMini, 0x00FE, 0xAA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newMemBlock(tt.layout.Size)
			r := New(b, tt.layout)

			// Byte after the interrupt register belongs to another register
			// on the mini layout; a narrow write must not touch it.
			b.mem[tt.layout.IntrRxE+1] = 0xAA
			r.IntrRxE().Write(0xFFFE)

			if got := r.IntrRxE().Read(); got != tt.want {
				t.Errorf("IntrRxE = %#04x, want %#04x", got, tt.want)
			}
			if got := b.mem[tt.layout.IntrRxE+1]; got != tt.high {
				t.Errorf("byte after IntrRxE = %#02x, want %#02x", got, tt.high)
			}
		})
	}
}

func TestAbsentRegister(t *testing.T) {
	b := newMemBlock(LayoutMini.Size)
	r := New(b, LayoutMini)

	if r.CSR0H().Present() {
		t.Fatal("CSR0H present on mini layout")
	}
	r.CSR0H().Set(CSR0HFlushFIFO)
	r.TxFIFOAdd().Write(0x10)
	if b.writes != 0 {
		t.Errorf("writes to absent registers reached the block: %d", b.writes)
	}
	if got := r.EPInfo().Read(); got != 0 {
		t.Errorf("absent EPINFO read = %d, want 0", got)
	}
}

func TestFIFOPorts(t *testing.T) {
	for _, l := range Layouts() {
		t.Run(l.Name, func(t *testing.T) {
			r := New(newMemBlock(l.Size), l)
			for n := 0; n < 8; n++ {
				want := l.FIFOBase + uintptr(n)*4
				if got := r.FIFO(n).Offset(); got != want {
					t.Errorf("FIFO(%d) offset = %#x, want %#x", n, got, want)
				}
			}
		})
	}
}

func TestSharedOffsets(t *testing.T) {
	// On the std layout EP0 and TX/RX endpoints share the same window.
	if LayoutStd.CSR0L != LayoutStd.TxCSRL {
		t.Error("std CSR0L and TXCSRL should share an offset")
	}
	if LayoutStd.Count0 != LayoutStd.RxCount {
		t.Error("std COUNT0 and RXCOUNT should share an offset")
	}
	if LayoutMini.CSR0L == LayoutMini.TxCSRL {
		t.Error("mini CSR0L and TXCSRL should be distinct")
	}
}

func TestLayoutByName(t *testing.T) {
	tests := []struct {
		name   string
		want   *Layout
		wantOK bool
	}{
		{"std", LayoutStd, true},
		{"mini", LayoutMini, true},
		{"full", nil, false},
	}

	for _, tt := range tests {
		got, ok := LayoutByName(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("LayoutByName(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestMaxPUnit(t *testing.T) {
	if got := LayoutStd.MaxPUnit(); got != 1 {
		t.Errorf("std MaxPUnit = %d, want 1", got)
	}
	if got := LayoutMini.MaxPUnit(); got != 8 {
		t.Errorf("mini MaxPUnit = %d, want 8", got)
	}
	if !LayoutStd.HasDynamicFIFO() || LayoutMini.HasDynamicFIFO() {
		t.Error("HasDynamicFIFO mismatch")
	}
}
