package regs

// NoReg marks a register that does not exist in a layout.
const NoReg = ^uintptr(0)

// Layout describes where each register lives for one silicon variant.
type Layout struct {
	Name string

	// Mini is set for the reduced register map: max packet size registers
	// hold 8-byte units, and there is no CSR0H or dynamic FIFO register.
	Mini bool

	// IntrBits is the width of the endpoint interrupt registers (8 or 16).
	IntrBits int

	// Global registers.
	FAddr    uintptr
	Power    uintptr
	IntrTx   uintptr
	IntrRx   uintptr
	IntrTxE  uintptr
	IntrRxE  uintptr
	IntrUSB  uintptr
	IntrUSBE uintptr
	Frame    uintptr
	Index    uintptr
	TestMode uintptr

	// Indexed registers.
	TxMaxP     uintptr
	CSR0L      uintptr
	CSR0H      uintptr
	TxCSRL     uintptr
	TxCSRH     uintptr
	RxMaxP     uintptr
	RxCSRL     uintptr
	RxCSRH     uintptr
	Count0     uintptr
	RxCount    uintptr
	ConfigData uintptr // INDEX = 0
	FIFOSize   uintptr // INDEX != 0

	// FIFO data port of endpoint n is at FIFOBase + n*FIFOStride.
	FIFOBase   uintptr
	FIFOStride uintptr

	// Dynamic FIFO and configuration registers.
	DevCtl       uintptr
	TxFIFOSz     uintptr
	RxFIFOSz     uintptr
	TxFIFOAdd    uintptr
	RxFIFOAdd    uintptr
	TxDPktBufDis uintptr
	RxDPktBufDis uintptr
	EPInfo       uintptr
	RAMInfo      uintptr
	LinkInfo     uintptr
	VPLen        uintptr
	HSEOF1       uintptr
	FSEOF1       uintptr
	LSEOF1       uintptr

	// Size is the extent of the register window in bytes.
	Size uintptr
}

// MaxPUnit returns the unit of the max packet size registers in bytes.
func (l *Layout) MaxPUnit() uint16 {
	if l.Mini {
		return 8
	}
	return 1
}

// HasDynamicFIFO reports whether the layout has FIFO size/address registers.
func (l *Layout) HasDynamicFIFO() bool {
	return l.TxFIFOSz != NoReg && l.TxFIFOAdd != NoReg
}

// LayoutStd is the full Mentor MUSB register map.
var LayoutStd = &Layout{
	Name:     "std",
	IntrBits: 16,

	FAddr:    0x00,
	Power:    0x01,
	IntrTx:   0x02,
	IntrRx:   0x04,
	IntrTxE:  0x06,
	IntrRxE:  0x08,
	IntrUSB:  0x0A,
	IntrUSBE: 0x0B,
	Frame:    0x0C,
	Index:    0x0E,
	TestMode: 0x0F,

	TxMaxP:     0x10,
	CSR0L:      0x12,
	CSR0H:      0x13,
	TxCSRL:     0x12,
	TxCSRH:     0x13,
	RxMaxP:     0x14,
	RxCSRL:     0x16,
	RxCSRH:     0x17,
	Count0:     0x18,
	RxCount:    0x18,
	ConfigData: 0x1F,
	FIFOSize:   0x1F,

	FIFOBase:   0x20,
	FIFOStride: 4,

	DevCtl:       0x60,
	TxFIFOSz:     0x62,
	RxFIFOSz:     0x63,
	TxFIFOAdd:    0x64,
	RxFIFOAdd:    0x66,
	TxDPktBufDis: 0x342,
	RxDPktBufDis: 0x344,
	EPInfo:       0x78,
	RAMInfo:      0x79,
	LinkInfo:     0x7A,
	VPLen:        0x7B,
	HSEOF1:       0x7C,
	FSEOF1:       0x7D,
	LSEOF1:       0x7E,

	Size: 0x400,
}

// LayoutMini is the reduced register map of PY32F07x parts.
var LayoutMini = &Layout{
	Name:     "mini",
	Mini:     true,
	IntrBits: 8,

	FAddr:    0x00,
	Power:    0x01,
	IntrUSB:  0x04,
	IntrRx:   0x05,
	IntrTx:   0x06,
	IntrUSBE: 0x08,
	IntrRxE:  0x09,
	IntrTxE:  0x0A,
	Frame:    0x0C,
	Index:    0x0E,
	TestMode: NoReg,

	CSR0L:      0x10,
	Count0:     0x11,
	CSR0H:      NoReg,
	TxCSRH:     0x14,
	TxCSRL:     0x15,
	TxMaxP:     0x16,
	RxCSRH:     0x18,
	RxCSRL:     0x19,
	RxMaxP:     0x1A,
	RxCount:    0x1C,
	ConfigData: NoReg,
	FIFOSize:   NoReg,

	FIFOBase:   0x20,
	FIFOStride: 4,

	DevCtl:       NoReg,
	TxFIFOSz:     NoReg,
	RxFIFOSz:     NoReg,
	TxFIFOAdd:    NoReg,
	RxFIFOAdd:    NoReg,
	TxDPktBufDis: NoReg,
	RxDPktBufDis: NoReg,
	EPInfo:       NoReg,
	RAMInfo:      NoReg,
	LinkInfo:     NoReg,
	VPLen:        NoReg,
	HSEOF1:       NoReg,
	FSEOF1:       NoReg,
	LSEOF1:       NoReg,

	Size: 0x60,
}

// Layouts returns the known layouts.
func Layouts() []*Layout {
	return []*Layout{LayoutStd, LayoutMini}
}

// LayoutByName returns the layout with the given name.
func LayoutByName(name string) (*Layout, bool) {
	for _, l := range Layouts() {
		if l.Name == name {
			return l, true
		}
	}
	return nil, false
}
