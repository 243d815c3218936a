package regs

// Block is raw access to a controller register window.
// Offsets are relative to the controller base address.
type Block interface {
	Read8(off uintptr) uint8
	Write8(off uintptr, v uint8)
	Read16(off uintptr) uint16
	Write16(off uintptr, v uint16)
}

// Reg8 is an 8-bit register.
type Reg8 struct {
	b   Block
	off uintptr
}

// Present reports whether the register exists in the layout.
func (r Reg8) Present() bool { return r.off != NoReg }

// Offset returns the register offset, or NoReg.
func (r Reg8) Offset() uintptr { return r.off }

// Read returns the register value.
func (r Reg8) Read() uint8 {
	if r.off == NoReg {
		return 0
	}
	return r.b.Read8(r.off)
}

// Write stores v into the register.
func (r Reg8) Write(v uint8) {
	if r.off == NoReg {
		return
	}
	r.b.Write8(r.off, v)
}

// Set performs a read-modify-write setting the bits in mask.
func (r Reg8) Set(mask uint8) { r.Write(r.Read() | mask) }

// Clear performs a read-modify-write clearing the bits in mask.
func (r Reg8) Clear(mask uint8) { r.Write(r.Read() &^ mask) }

// Modify performs a read-modify-write through fn.
func (r Reg8) Modify(fn func(v uint8) uint8) { r.Write(fn(r.Read())) }

// Bit reports whether any bit in mask is set.
func (r Reg8) Bit(mask uint8) bool { return r.Read()&mask != 0 }

// Reg16 is a 16-bit register. On layouts with 8-bit endpoint interrupt
// registers, the interrupt registers are narrow and only the low byte is
// accessed.
type Reg16 struct {
	b      Block
	off    uintptr
	narrow bool
}

// Present reports whether the register exists in the layout.
func (r Reg16) Present() bool { return r.off != NoReg }

// Offset returns the register offset, or NoReg.
func (r Reg16) Offset() uintptr { return r.off }

// Read returns the register value.
func (r Reg16) Read() uint16 {
	switch {
	case r.off == NoReg:
		return 0
	case r.narrow:
		return uint16(r.b.Read8(r.off))
	default:
		return r.b.Read16(r.off)
	}
}

// Write stores v into the register.
func (r Reg16) Write(v uint16) {
	switch {
	case r.off == NoReg:
	case r.narrow:
		r.b.Write8(r.off, uint8(v))
	default:
		r.b.Write16(r.off, v)
	}
}

// Set performs a read-modify-write setting the bits in mask.
func (r Reg16) Set(mask uint16) { r.Write(r.Read() | mask) }

// Clear performs a read-modify-write clearing the bits in mask.
func (r Reg16) Clear(mask uint16) { r.Write(r.Read() &^ mask) }

// Modify performs a read-modify-write through fn.
func (r Reg16) Modify(fn func(v uint16) uint16) { r.Write(fn(r.Read())) }

// Bit reports whether any bit in mask is set.
func (r Reg16) Bit(mask uint16) bool { return r.Read()&mask != 0 }
