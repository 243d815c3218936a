package sim

import "github.com/ardnew/musb/regs"

// EndpointState is a snapshot of one endpoint bank.
type EndpointState struct {
	TxMaxP, RxMaxP       uint16
	TxCSRH, RxCSRH       uint8
	TxFIFOSz, RxFIFOSz   uint8
	TxFIFOAdd, RxFIFOAdd uint16

	TxStalled, RxStalled bool
	TxReady, RxReady     bool

	TxFlushes, RxFlushes int
	TxToggles, RxToggles int

	UnderRun, OverRun bool
}

// Endpoint returns a snapshot of endpoint n.
func (c *Controller) Endpoint(n int) EndpointState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 || n >= len(c.eps) {
		return EndpointState{}
	}
	ep := c.eps[n]
	s := EndpointState{
		TxMaxP:    ep.txmaxp,
		RxMaxP:    ep.rxmaxp,
		TxCSRH:    ep.txcsrh,
		RxCSRH:    ep.rxcsrh,
		TxFIFOSz:  ep.txfifosz,
		RxFIFOSz:  ep.rxfifosz,
		TxFIFOAdd: ep.txfifoadd,
		RxFIFOAdd: ep.rxfifoadd,
		TxReady:   ep.txRdy,
		RxReady:   ep.rxRdy,
		TxFlushes: ep.txFlushes,
		RxFlushes: ep.rxFlushes,
		TxToggles: ep.txToggles,
		RxToggles: ep.rxToggles,
		UnderRun:  ep.txcsrl&regs.TxCSRLUnderRun != 0,
		OverRun:   ep.rxcsrl&regs.RxCSRLOverRun != 0,
	}
	if n == 0 {
		s.TxStalled = ep.csr0&regs.CSR0LSendStall != 0
		s.RxStalled = s.TxStalled
	} else {
		s.TxStalled = ep.txcsrl&regs.TxCSRLSendStall != 0
		s.RxStalled = ep.rxcsrl&regs.RxCSRLSendStall != 0
	}
	return s
}

// DataEnds returns how many times EP0 DataEnd has been asserted.
func (c *Controller) DataEnds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dataEnds
}

// Address returns the function address programmed by the device.
func (c *Controller) Address() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.faddr
}

// Power returns the POWER register.
func (c *Controller) Power() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.power
}

// Connected reports whether the device has soft-connected to the bus.
func (c *Controller) Connected() bool {
	return c.Power()&regs.PowerSoftConn != 0
}

// InterruptEnables returns INTRUSBE, INTRTXE and INTRRXE.
func (c *Controller) InterruptEnables() (usb uint8, tx, rx uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intrUSBE, c.intrTxE, c.intrRxE
}

// DualPacketDisabled returns TX_DPKTBUFDIS and RX_DPKTBUFDIS.
func (c *Controller) DualPacketDisabled() (tx, rx uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txDPktBufDis, c.rxDPktBufDis
}

// Index returns the currently selected endpoint index.
func (c *Controller) Index() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}
