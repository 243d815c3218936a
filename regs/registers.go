package regs

// Registers resolves named registers of one controller instance.
type Registers struct {
	b Block
	l *Layout
}

// New returns registers for the controller behind b, laid out per l.
func New(b Block, l *Layout) *Registers {
	return &Registers{b: b, l: l}
}

// Layout returns the register layout.
func (r *Registers) Layout() *Layout { return r.l }

// Block returns the underlying register window.
func (r *Registers) Block() Block { return r.b }

func (r *Registers) reg8(off uintptr) Reg8 { return Reg8{b: r.b, off: off} }

func (r *Registers) reg16(off uintptr) Reg16 { return Reg16{b: r.b, off: off} }

func (r *Registers) intr(off uintptr) Reg16 {
	return Reg16{b: r.b, off: off, narrow: r.l.IntrBits == 8}
}

// FAddr is the function address register.
func (r *Registers) FAddr() Reg8 { return r.reg8(r.l.FAddr) }

// Power is the power management register.
func (r *Registers) Power() Reg8 { return r.reg8(r.l.Power) }

// IntrTx holds EP0 and TX endpoint interrupts. Read-to-clear.
func (r *Registers) IntrTx() Reg16 { return r.intr(r.l.IntrTx) }

// IntrRx holds RX endpoint interrupts. Read-to-clear.
func (r *Registers) IntrRx() Reg16 { return r.intr(r.l.IntrRx) }

// IntrTxE enables IntrTx bits.
func (r *Registers) IntrTxE() Reg16 { return r.intr(r.l.IntrTxE) }

// IntrRxE enables IntrRx bits.
func (r *Registers) IntrRxE() Reg16 { return r.intr(r.l.IntrRxE) }

// IntrUSB holds bus-level interrupts. Read-to-clear.
func (r *Registers) IntrUSB() Reg8 { return r.reg8(r.l.IntrUSB) }

// IntrUSBE enables IntrUSB bits.
func (r *Registers) IntrUSBE() Reg8 { return r.reg8(r.l.IntrUSBE) }

// Frame is the last received frame number.
func (r *Registers) Frame() Reg16 { return r.reg16(r.l.Frame) }

// Index selects the endpoint whose registers appear in the indexed window.
func (r *Registers) Index() Reg8 { return r.reg8(r.l.Index) }

// TestMode is the test mode register.
func (r *Registers) TestMode() Reg8 { return r.reg8(r.l.TestMode) }

// TxMaxP is the indexed TX max packet size.
func (r *Registers) TxMaxP() Reg16 { return r.reg16(r.l.TxMaxP) }

// CSR0L is the EP0 control/status register (INDEX = 0).
func (r *Registers) CSR0L() Reg8 { return r.reg8(r.l.CSR0L) }

// CSR0H is the EP0 flush register (INDEX = 0). Absent on mini cores.
func (r *Registers) CSR0H() Reg8 { return r.reg8(r.l.CSR0H) }

// TxCSRL is the indexed TX control/status register, low byte.
func (r *Registers) TxCSRL() Reg8 { return r.reg8(r.l.TxCSRL) }

// TxCSRH is the indexed TX control/status register, high byte.
func (r *Registers) TxCSRH() Reg8 { return r.reg8(r.l.TxCSRH) }

// RxMaxP is the indexed RX max packet size.
func (r *Registers) RxMaxP() Reg16 { return r.reg16(r.l.RxMaxP) }

// RxCSRL is the indexed RX control/status register, low byte.
func (r *Registers) RxCSRL() Reg8 { return r.reg8(r.l.RxCSRL) }

// RxCSRH is the indexed RX control/status register, high byte.
func (r *Registers) RxCSRH() Reg8 { return r.reg8(r.l.RxCSRH) }

// Count0 is the number of bytes in the EP0 FIFO (INDEX = 0).
func (r *Registers) Count0() Reg8 { return r.reg8(r.l.Count0) }

// RxCount is the number of bytes in the indexed RX FIFO.
func (r *Registers) RxCount() Reg16 { return r.reg16(r.l.RxCount) }

// ConfigData describes the core configuration (INDEX = 0).
func (r *Registers) ConfigData() Reg8 { return r.reg8(r.l.ConfigData) }

// FIFOSize reports the fixed FIFO sizes of the indexed endpoint.
func (r *Registers) FIFOSize() Reg8 { return r.reg8(r.l.FIFOSize) }

// FIFO is the data port of endpoint n.
func (r *Registers) FIFO(n int) Reg8 {
	return r.reg8(r.l.FIFOBase + uintptr(n)*r.l.FIFOStride)
}

// DevCtl is the device control register.
func (r *Registers) DevCtl() Reg8 { return r.reg8(r.l.DevCtl) }

// TxFIFOSz is the indexed TX FIFO size (dynamic sizing).
func (r *Registers) TxFIFOSz() Reg8 { return r.reg8(r.l.TxFIFOSz) }

// RxFIFOSz is the indexed RX FIFO size (dynamic sizing).
func (r *Registers) RxFIFOSz() Reg8 { return r.reg8(r.l.RxFIFOSz) }

// TxFIFOAdd is the indexed TX FIFO start address in 8-byte units.
func (r *Registers) TxFIFOAdd() Reg16 { return r.reg16(r.l.TxFIFOAdd) }

// RxFIFOAdd is the indexed RX FIFO start address in 8-byte units.
func (r *Registers) RxFIFOAdd() Reg16 { return r.reg16(r.l.RxFIFOAdd) }

// TxDPktBufDis disables TX double-packet buffering per endpoint.
func (r *Registers) TxDPktBufDis() Reg16 { return r.reg16(r.l.TxDPktBufDis) }

// RxDPktBufDis disables RX double-packet buffering per endpoint.
func (r *Registers) RxDPktBufDis() Reg16 { return r.reg16(r.l.RxDPktBufDis) }

// EPInfo reports the number of implemented endpoints.
func (r *Registers) EPInfo() Reg8 { return r.reg8(r.l.EPInfo) }

// RAMInfo reports DMA channels and FIFO RAM address width.
func (r *Registers) RAMInfo() Reg8 { return r.reg8(r.l.RAMInfo) }

// LinkInfo reports connection delays.
func (r *Registers) LinkInfo() Reg8 { return r.reg8(r.l.LinkInfo) }

// VPLen is the VBUS pulsing duration.
func (r *Registers) VPLen() Reg8 { return r.reg8(r.l.VPLen) }

// HSEOF1 is the high-speed end-of-frame gap.
func (r *Registers) HSEOF1() Reg8 { return r.reg8(r.l.HSEOF1) }

// FSEOF1 is the full-speed end-of-frame gap.
func (r *Registers) FSEOF1() Reg8 { return r.reg8(r.l.FSEOF1) }

// LSEOF1 is the low-speed end-of-frame gap.
func (r *Registers) LSEOF1() Reg8 { return r.reg8(r.l.LSEOF1) }
