package sim

import (
	"errors"
	"sync"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/regs"
)

// Host-side transaction outcomes.
var (
	// ErrNAK indicates the device was not ready; the host would retry.
	ErrNAK = errors.New("sim: NAK")

	// ErrStall indicates the device answered with a STALL handshake.
	ErrStall = errors.New("sim: STALL")

	// ErrNoEndpoint indicates the endpoint is not implemented.
	ErrNoEndpoint = errors.New("sim: no such endpoint")
)

// Config describes the modeled core.
type Config struct {
	Layout    *regs.Layout
	Endpoints int

	// Configuration register contents reported to the driver.
	ConfigData uint8
	FIFOSize   [16]uint8 // FIFOSIZE per endpoint (TX low nibble, RX high)
	EPInfo     uint8
	RAMInfo    uint8
}

// endpoint is the per-index register bank and FIFO state.
type endpoint struct {
	// EP0 status as seen through CSR0L.
	csr0 uint8

	txcsrl, txcsrh uint8
	rxcsrl, rxcsrh uint8
	txmaxp, rxmaxp uint16

	txfifosz, rxfifosz   uint8
	txfifoadd, rxfifoadd uint16

	// txLoad accumulates FIFO writes until TxPktRdy commits them.
	txLoad []byte
	txPkt  []byte
	txRdy  bool

	// rxPkt is the packet at the head of the RX FIFO, rxPos the read cursor.
	rxPkt []byte
	rxPos int
	rxRdy bool

	// EP0 data end was asserted and the status stage is pending.
	dataEnd bool

	txFlushes, rxFlushes int
	txToggles, rxToggles int
}

// Controller models one MUSB core.
type Controller struct {
	mu sync.Mutex

	cfg Config
	l   *regs.Layout

	index  uint8
	faddr  uint8
	power  uint8
	devctl uint8
	frame  uint16

	intrTx, intrRx   uint16
	intrTxE, intrRxE uint16
	intrUSB          uint8
	intrUSBE         uint8

	txDPktBufDis, rxDPktBufDis uint16

	eps []*endpoint

	dataEnds int
	raw      map[uintptr]uint8

	irq func()
}

var _ regs.Block = (*Controller)(nil)

// New returns a controller in its power-on state.
func New(cfg Config) *Controller {
	if cfg.Layout == nil {
		cfg.Layout = regs.LayoutStd
	}
	if cfg.Endpoints <= 0 {
		cfg.Endpoints = 8
	}
	c := &Controller{
		cfg: cfg,
		l:   cfg.Layout,
		eps: make([]*endpoint, cfg.Endpoints),
		raw: make(map[uintptr]uint8),
	}
	for i := range c.eps {
		c.eps[i] = &endpoint{}
	}
	return c
}

// Registers returns a register view of the controller.
func (c *Controller) Registers() *regs.Registers {
	return regs.New(c, c.l)
}

// SetIRQ installs the interrupt hook. A nil hook disables interrupts.
func (c *Controller) SetIRQ(fn func()) {
	c.mu.Lock()
	c.irq = fn
	c.mu.Unlock()
}

// ep returns the endpoint bank selected by INDEX, or nil.
func (c *Controller) ep() *endpoint {
	if int(c.index) >= len(c.eps) {
		return nil
	}
	return c.eps[c.index]
}

// Read8 implements regs.Block.
func (c *Controller) Read8(off uintptr) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read8(off)
}

// Write8 implements regs.Block.
func (c *Controller) Write8(off uintptr, v uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.write8(off, v)
}

// Read16 implements regs.Block.
func (c *Controller) Read16(off uintptr) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.read16(off); ok {
		return v
	}
	return uint16(c.read8(off)) | uint16(c.read8(off+1))<<8
}

// Write16 implements regs.Block.
func (c *Controller) Write16(off uintptr, v uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.write16(off, v) {
		return
	}
	c.write8(off, uint8(v))
	c.write8(off+1, uint8(v>>8))
}

func (c *Controller) fifoIndex(off uintptr) (int, bool) {
	if off < c.l.FIFOBase || (off-c.l.FIFOBase)%c.l.FIFOStride != 0 {
		return 0, false
	}
	n := int((off - c.l.FIFOBase) / c.l.FIFOStride)
	return n, n < len(c.eps)
}

func (c *Controller) read8(off uintptr) uint8 {
	l := c.l
	narrow := l.IntrBits == 8

	switch {
	case off == l.FAddr:
		return c.faddr
	case off == l.Power:
		return c.power
	case off == l.Index:
		return c.index
	case off == l.IntrUSB:
		v := c.intrUSB
		c.intrUSB = 0
		return v
	case off == l.IntrUSBE:
		return c.intrUSBE
	case off == l.DevCtl:
		return c.devctl
	case off == l.EPInfo:
		return c.cfg.EPInfo
	case off == l.RAMInfo:
		return c.cfg.RAMInfo
	case narrow && (off == l.IntrTx || off == l.IntrRx || off == l.IntrTxE || off == l.IntrRxE):
		v, _ := c.read16(off)
		return uint8(v)
	}

	if n, ok := c.fifoIndex(off); ok {
		return c.fifoRead(n)
	}

	ep := c.ep()
	if ep == nil {
		return c.raw[off]
	}

	if c.index == 0 {
		switch off {
		case l.CSR0L:
			return ep.csr0
		case l.CSR0H:
			return 0
		case l.Count0:
			if !ep.rxRdy {
				return 0
			}
			return uint8(len(ep.rxPkt)-ep.rxPos) & regs.Count0Mask
		case l.ConfigData:
			return c.cfg.ConfigData
		}
	}

	switch off {
	case l.TxCSRL:
		v := ep.txcsrl &^ (regs.TxCSRLTxPktRdy | regs.TxCSRLFIFONotEmpty)
		if ep.txRdy {
			v |= regs.TxCSRLTxPktRdy | regs.TxCSRLFIFONotEmpty
		} else if len(ep.txLoad) > 0 {
			v |= regs.TxCSRLFIFONotEmpty
		}
		return v
	case l.TxCSRH:
		return ep.txcsrh
	case l.RxCSRL:
		v := ep.rxcsrl &^ regs.RxCSRLRxPktRdy
		if ep.rxRdy {
			v |= regs.RxCSRLRxPktRdy
		}
		return v
	case l.RxCSRH:
		return ep.rxcsrh
	case l.TxFIFOSz:
		return ep.txfifosz
	case l.RxFIFOSz:
		return ep.rxfifosz
	case l.FIFOSize:
		return c.cfg.FIFOSize[c.index]
	}
	return c.raw[off]
}

func (c *Controller) read16(off uintptr) (uint16, bool) {
	l := c.l
	mask := uint16(0xFFFF)
	if l.IntrBits == 8 {
		mask = 0x00FF
	}

	switch off {
	case l.IntrTx:
		v := c.intrTx & mask
		c.intrTx &^= v
		return v, true
	case l.IntrRx:
		v := c.intrRx & mask
		c.intrRx &^= v
		return v, true
	case l.IntrTxE:
		return c.intrTxE & mask, true
	case l.IntrRxE:
		return c.intrRxE & mask, true
	case l.Frame:
		return c.frame, true
	case l.TxDPktBufDis:
		return c.txDPktBufDis, true
	case l.RxDPktBufDis:
		return c.rxDPktBufDis, true
	}

	ep := c.ep()
	if ep == nil {
		return 0, false
	}
	if c.index == 0 && off == l.Count0 {
		return 0, false
	}
	switch off {
	case l.TxMaxP:
		return ep.txmaxp, true
	case l.RxMaxP:
		return ep.rxmaxp, true
	case l.RxCount:
		if !ep.rxRdy {
			return 0, true
		}
		return uint16(len(ep.rxPkt)-ep.rxPos) & regs.RxCountMask, true
	case l.TxFIFOAdd:
		return ep.txfifoadd, true
	case l.RxFIFOAdd:
		return ep.rxfifoadd, true
	}
	return 0, false
}

func (c *Controller) write8(off uintptr, v uint8) {
	l := c.l
	narrow := l.IntrBits == 8

	switch {
	case off == l.FAddr:
		c.faddr = v & regs.FAddrMask
		return
	case off == l.Power:
		c.power = v
		return
	case off == l.Index:
		c.index = v & regs.IndexMask
		return
	case off == l.IntrUSB:
		// read-only
		return
	case off == l.IntrUSBE:
		c.intrUSBE = v
		return
	case off == l.DevCtl:
		c.devctl = v
		return
	case narrow && (off == l.IntrTxE || off == l.IntrRxE || off == l.IntrTx || off == l.IntrRx):
		c.write16(off, uint16(v))
		return
	}

	if n, ok := c.fifoIndex(off); ok {
		c.fifoWrite(n, v)
		return
	}

	ep := c.ep()
	if ep == nil {
		c.raw[off] = v
		return
	}

	if c.index == 0 {
		switch off {
		case l.CSR0L:
			c.writeCSR0L(ep, v)
			return
		case l.CSR0H:
			if v&regs.CSR0HFlushFIFO != 0 {
				ep.flushTx()
				ep.flushRx()
				ep.txFlushes++
			}
			return
		case l.Count0, l.ConfigData:
			return
		}
	}

	switch off {
	case l.TxCSRL:
		c.writeTxCSRL(ep, v)
	case l.TxCSRH:
		ep.txcsrh = v
	case l.RxCSRL:
		c.writeRxCSRL(ep, v)
	case l.RxCSRH:
		ep.rxcsrh = v
	case l.TxFIFOSz:
		ep.txfifosz = v
	case l.RxFIFOSz:
		ep.rxfifosz = v
	default:
		c.raw[off] = v
	}
}

func (c *Controller) write16(off uintptr, v uint16) bool {
	l := c.l
	switch off {
	case l.IntrTxE:
		c.intrTxE = v
		return true
	case l.IntrRxE:
		c.intrRxE = v
		return true
	case l.IntrTx, l.IntrRx, l.Frame:
		// read-only
		return true
	case l.TxDPktBufDis:
		c.txDPktBufDis = v
		return true
	case l.RxDPktBufDis:
		c.rxDPktBufDis = v
		return true
	}

	ep := c.ep()
	if ep == nil {
		return false
	}
	if c.index == 0 && off == l.Count0 {
		return false
	}
	switch off {
	case l.TxMaxP:
		ep.txmaxp = v
	case l.RxMaxP:
		ep.rxmaxp = v
	case l.TxFIFOAdd:
		ep.txfifoadd = v
	case l.RxFIFOAdd:
		ep.rxfifoadd = v
	case l.RxCount:
	default:
		return false
	}
	return true
}

func (c *Controller) writeCSR0L(ep *endpoint, v uint8) {
	if v&regs.CSR0LServicedRxPktRdy != 0 {
		ep.rxRdy = false
		ep.rxPkt, ep.rxPos = nil, 0
		ep.csr0 &^= regs.CSR0LRxPktRdy
	}
	if v&regs.CSR0LServicedSetupEnd != 0 {
		ep.csr0 &^= regs.CSR0LSetupEnd
	}
	if v&regs.CSR0LSentStall == 0 {
		ep.csr0 &^= regs.CSR0LSentStall
	}
	if v&regs.CSR0LSendStall != 0 {
		ep.csr0 |= regs.CSR0LSendStall
	} else {
		ep.csr0 &^= regs.CSR0LSendStall
	}
	if v&regs.CSR0LTxPktRdy != 0 && !ep.txRdy {
		ep.txPkt, ep.txLoad = ep.txLoad, nil
		ep.txRdy = true
		ep.csr0 |= regs.CSR0LTxPktRdy
	}
	if v&regs.CSR0LDataEnd != 0 {
		ep.dataEnd = true
		c.dataEnds++
	}
}

func (c *Controller) writeTxCSRL(ep *endpoint, v uint8) {
	for _, bit := range []uint8{regs.TxCSRLUnderRun, regs.TxCSRLSentStall, regs.TxCSRLIncompTx} {
		if v&bit == 0 {
			ep.txcsrl &^= bit
		}
	}
	if v&regs.TxCSRLSendStall != 0 {
		ep.txcsrl |= regs.TxCSRLSendStall
	} else {
		ep.txcsrl &^= regs.TxCSRLSendStall
	}
	if v&regs.TxCSRLClrDataTog != 0 {
		ep.txToggles++
	}
	if v&regs.TxCSRLFlushFIFO != 0 {
		// TxPktRdy read back by a read-modify-write is dropped with the packet.
		ep.flushTx()
		ep.txFlushes++
		return
	}
	if v&regs.TxCSRLTxPktRdy != 0 && !ep.txRdy {
		ep.txPkt, ep.txLoad = ep.txLoad, nil
		ep.txRdy = true
	}
}

func (c *Controller) writeRxCSRL(ep *endpoint, v uint8) {
	for _, bit := range []uint8{regs.RxCSRLOverRun, regs.RxCSRLSentStall} {
		if v&bit == 0 {
			ep.rxcsrl &^= bit
		}
	}
	if v&regs.RxCSRLSendStall != 0 {
		ep.rxcsrl |= regs.RxCSRLSendStall
	} else {
		ep.rxcsrl &^= regs.RxCSRLSendStall
	}
	if v&regs.RxCSRLFlushFIFO != 0 {
		ep.flushRx()
		ep.rxFlushes++
	}
	if v&regs.RxCSRLClrDataTog != 0 {
		ep.rxToggles++
	}
	if v&regs.RxCSRLRxPktRdy == 0 && ep.rxRdy {
		// Packet unloaded.
		ep.flushRx()
	}
}

func (c *Controller) fifoRead(n int) uint8 {
	ep := c.eps[n]
	if !ep.rxRdy || ep.rxPos >= len(ep.rxPkt) {
		return 0
	}
	b := ep.rxPkt[ep.rxPos]
	ep.rxPos++
	return b
}

func (c *Controller) fifoWrite(n int, v uint8) {
	ep := c.eps[n]
	ep.txLoad = append(ep.txLoad, v)
}

func (ep *endpoint) flushTx() {
	ep.txLoad, ep.txPkt = nil, nil
	ep.txRdy = false
	ep.csr0 &^= regs.CSR0LTxPktRdy
}

func (ep *endpoint) flushRx() {
	ep.rxPkt, ep.rxPos = nil, 0
	ep.rxRdy = false
	ep.csr0 &^= regs.CSR0LRxPktRdy
}

// raiseUSB, raiseTx and raiseRx latch enabled interrupts. Must hold c.mu.
func (c *Controller) raiseUSB(bits uint8) {
	c.intrUSB |= bits & c.intrUSBE
}

func (c *Controller) raiseTx(n int) {
	c.intrTx |= (1 << n) & c.intrTxE
}

func (c *Controller) raiseRx(n int) {
	c.intrRx |= (1 << n) & c.intrRxE
}

func (c *Controller) pending() bool {
	return c.intrUSB != 0 || c.intrTx != 0 || c.intrRx != 0
}

// unlockAndInterrupt releases c.mu and invokes the IRQ hook when an
// interrupt is pending.
func (c *Controller) unlockAndInterrupt() {
	fire := c.irq != nil && c.pending()
	irq := c.irq
	c.mu.Unlock()
	if fire {
		irq()
	}
}

func (c *Controller) hostEP(n int) (*endpoint, error) {
	if n < 0 || n >= len(c.eps) {
		return nil, ErrNoEndpoint
	}
	return c.eps[n], nil
}

// BusReset signals a USB reset.
func (c *Controller) BusReset() {
	c.mu.Lock()
	c.faddr = 0
	c.power &^= regs.PowerSuspendMode
	for _, ep := range c.eps {
		ep.flushTx()
		ep.flushRx()
		ep.csr0 = 0
		ep.dataEnd = false
		ep.txcsrl &^= regs.TxCSRLSendStall | regs.TxCSRLSentStall
		ep.rxcsrl &^= regs.RxCSRLSendStall | regs.RxCSRLSentStall
	}
	c.raiseUSB(regs.IntrUSBReset)
	pkg.LogDebug(pkg.ComponentSim, "bus reset")
	c.unlockAndInterrupt()
}

// Suspend signals bus idle long enough to enter suspend.
func (c *Controller) Suspend() {
	c.mu.Lock()
	if c.power&regs.PowerEnSuspendM != 0 {
		c.power |= regs.PowerSuspendMode
	}
	c.raiseUSB(regs.IntrUSBSuspend)
	c.unlockAndInterrupt()
}

// Resume signals resume signaling from the host.
func (c *Controller) Resume() {
	c.mu.Lock()
	c.power &^= regs.PowerSuspendMode
	c.raiseUSB(regs.IntrUSBResume)
	c.unlockAndInterrupt()
}

// Setup delivers a SETUP packet to EP0. Setup packets are always accepted;
// if the device has not serviced a previous packet, SetupEnd is raised.
func (c *Controller) Setup(pkt [8]byte) {
	c.SetupBytes(pkt[:])
}

// SetupBytes delivers an arbitrary-length setup-stage packet to EP0, which
// the hardware cannot reject. Used to exercise malformed setups.
func (c *Controller) SetupBytes(pkt []byte) {
	c.mu.Lock()
	ep := c.eps[0]
	if ep.rxRdy || ep.txRdy {
		ep.csr0 |= regs.CSR0LSetupEnd
	}
	ep.flushTx()
	ep.dataEnd = false
	ep.rxPkt = append([]byte(nil), pkt...)
	ep.rxPos = 0
	ep.rxRdy = true
	ep.csr0 |= regs.CSR0LRxPktRdy
	c.raiseTx(0)
	c.unlockAndInterrupt()
}

// Out sends a data packet to endpoint n.
func (c *Controller) Out(n int, data []byte) error {
	c.mu.Lock()
	ep, err := c.hostEP(n)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	if n == 0 {
		if ep.csr0&regs.CSR0LSendStall != 0 {
			ep.csr0 = ep.csr0&^regs.CSR0LSendStall | regs.CSR0LSentStall
			c.raiseTx(0)
			c.unlockAndInterrupt()
			return ErrStall
		}
		if ep.rxRdy {
			c.mu.Unlock()
			return ErrNAK
		}
		ep.rxPkt = append([]byte(nil), data...)
		ep.rxPos = 0
		ep.rxRdy = true
		ep.csr0 |= regs.CSR0LRxPktRdy
		c.raiseTx(0)
		c.unlockAndInterrupt()
		return nil
	}

	if ep.rxcsrl&regs.RxCSRLSendStall != 0 {
		ep.rxcsrl |= regs.RxCSRLSentStall
		c.raiseRx(n)
		c.unlockAndInterrupt()
		return ErrStall
	}
	if ep.rxRdy {
		c.mu.Unlock()
		return ErrNAK
	}
	ep.rxPkt = append([]byte(nil), data...)
	ep.rxPos = 0
	ep.rxRdy = true
	c.raiseRx(n)
	c.unlockAndInterrupt()
	return nil
}

// In requests a data packet from endpoint n.
func (c *Controller) In(n int) ([]byte, error) {
	c.mu.Lock()
	ep, err := c.hostEP(n)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	stall := regs.TxCSRLSendStall
	if n == 0 {
		stall = regs.CSR0LSendStall
	}
	switch {
	case n == 0 && ep.csr0&stall != 0:
		ep.csr0 = ep.csr0&^regs.CSR0LSendStall | regs.CSR0LSentStall
		c.raiseTx(0)
		c.unlockAndInterrupt()
		return nil, ErrStall
	case n != 0 && ep.txcsrl&stall != 0:
		ep.txcsrl |= regs.TxCSRLSentStall
		c.raiseTx(n)
		c.unlockAndInterrupt()
		return nil, ErrStall
	case !ep.txRdy:
		c.mu.Unlock()
		return nil, ErrNAK
	}

	data := ep.txPkt
	ep.txPkt = nil
	ep.txRdy = false
	ep.csr0 &^= regs.CSR0LTxPktRdy
	c.raiseTx(n)
	c.unlockAndInterrupt()
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Status runs the status stage of the current control transfer. The
// hardware completes it on its own once DataEnd has been asserted; until
// then the host is NAKed.
func (c *Controller) Status() error {
	c.mu.Lock()
	ep := c.eps[0]
	if ep.csr0&regs.CSR0LSendStall != 0 {
		ep.csr0 = ep.csr0&^regs.CSR0LSendStall | regs.CSR0LSentStall
		c.raiseTx(0)
		c.unlockAndInterrupt()
		return ErrStall
	}
	if !ep.dataEnd || ep.rxRdy || ep.txRdy {
		c.mu.Unlock()
		return ErrNAK
	}
	ep.dataEnd = false
	c.raiseTx(0)
	c.unlockAndInterrupt()
	return nil
}

// InjectUnderrun latches a TX underrun on endpoint n.
func (c *Controller) InjectUnderrun(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > 0 && n < len(c.eps) {
		c.eps[n].txcsrl |= regs.TxCSRLUnderRun
	}
}

// InjectOverrun latches an RX overrun on endpoint n.
func (c *Controller) InjectOverrun(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > 0 && n < len(c.eps) {
		c.eps[n].rxcsrl |= regs.RxCSRLOverRun
	}
}
