package device

import (
	"fmt"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/profile"
	"github.com/ardnew/musb/regs"
)

// epMask returns a bit for every implemented endpoint index.
func (d *Driver) epMask() uint16 {
	return uint16(uint32(1)<<d.NumEndpoints() - 1)
}

// busInit enables the bus and endpoint interrupt sources.
func (d *Driver) busInit() {
	d.r.IntrUSBE().Write(regs.IntrUSBReset | regs.IntrUSBSuspend | regs.IntrUSBResume)
	d.r.IntrRxE().Write(d.epMask() &^ 1)
	d.r.IntrTxE().Write(d.epMask())
}

// busEnable discards stale bus events and attaches to the bus.
func (d *Driver) busEnable() {
	d.r.IntrUSB().Read()
	d.busInit()
	d.r.Power().Set(regs.PowerSoftConn)
	pkg.LogInfo(pkg.ComponentBus, "attached")
}

// busDisable detaches from the bus.
func (d *Driver) busDisable() {
	d.r.Power().Clear(regs.PowerSoftConn)
	pkg.LogInfo(pkg.ComponentBus, "detached")
}

// maxP encodes a packet size for TXMAXP or RXMAXP.
func (d *Driver) maxP(mps uint16, dir Direction) uint16 {
	unit := d.l.MaxPUnit()
	if unit == 1 {
		return mps & regs.MaxPMask
	}
	if mps%unit != 0 {
		pkg.LogWarn(pkg.ComponentDriver, "max packet size must be a multiple of 8",
			"dir", dir,
			"mps", mps,
			"using", (mps+unit-1)/unit*unit)
	}
	return (mps + unit - 1) / unit
}

func fifoSz(bits uint8) uint8 {
	return (bits-3)&regs.FIFOSzMask | regs.FIFOSzDPB
}

// ep0Enable arms EP0 and discards stale setup state. Must hold d.mu with
// INDEX at 0.
func (d *Driver) ep0Enable() {
	d.r.IntrTxE().Set(1)
	d.r.CSR0L().Write(regs.CSR0LServicedRxPktRdy | regs.CSR0LServicedSetupEnd)
	if csr0h := d.r.CSR0H(); csr0h.Present() {
		csr0h.Set(regs.CSR0HFlushFIFO)
	}
}

// txEnable arms the TX half of endpoint i.
func (d *Driver) txEnable(i int, c *EndpointConfig) {
	pkg.LogDebug(pkg.ComponentDriver, "enabling TX endpoint",
		"index", i,
		"mps", c.TxMaxPacketSize,
		"fifo_bits", c.TxFIFOSizeBits,
		"fifo_addr8", c.TxFIFOAddr8,
		"type", c.Type)

	d.indexed(i, func() {
		r := d.r
		if i == 0 {
			d.ep0Enable()
			return
		}
		r.IntrTxE().Set(1 << i)
		if d.p.FIFO == profile.FIFODynamic {
			r.TxFIFOSz().Write(fifoSz(c.TxFIFOSizeBits))
			r.TxFIFOAdd().Write(c.TxFIFOAddr8)
		}
		r.TxMaxP().Write(d.maxP(c.TxMaxPacketSize, DirectionIn))

		// Flush before the toggle write, which also clears status bits.
		if r.TxCSRL().Bit(regs.TxCSRLFIFONotEmpty) {
			r.TxCSRL().Set(regs.TxCSRLFlushFIFO)
			if d.p.DoubleFlush {
				r.TxCSRL().Set(regs.TxCSRLFlushFIFO)
			}
		}
		r.TxCSRL().Write(regs.TxCSRLClrDataTog)

		mode := regs.TxCSRHMode
		if c.Type == EndpointTypeIsochronous {
			mode |= regs.TxCSRHISO
		}
		r.TxCSRH().Write(mode)
	})
}

// rxEnable arms the RX half of endpoint i.
func (d *Driver) rxEnable(i int, c *EndpointConfig) {
	pkg.LogDebug(pkg.ComponentDriver, "enabling RX endpoint",
		"index", i,
		"mps", c.RxMaxPacketSize,
		"fifo_bits", c.RxFIFOSizeBits,
		"fifo_addr8", c.RxFIFOAddr8,
		"type", c.Type)

	d.indexed(i, func() {
		r := d.r
		if i == 0 {
			d.ep0Enable()
			return
		}
		r.IntrRxE().Set(1 << i)
		if d.p.FIFO == profile.FIFODynamic {
			r.RxFIFOSz().Write(fifoSz(c.RxFIFOSizeBits))
			r.RxFIFOAdd().Write(c.RxFIFOAddr8)
		}
		r.RxMaxP().Write(d.maxP(c.RxMaxPacketSize, DirectionOut))

		if r.RxCSRL().Bit(regs.RxCSRLRxPktRdy) {
			r.RxCSRL().Set(regs.RxCSRLFlushFIFO)
			if d.p.DoubleFlush {
				r.RxCSRL().Set(regs.RxCSRLFlushFIFO)
			}
		}
		r.RxCSRL().Write(regs.RxCSRLClrDataTog)
		if c.Type == EndpointTypeIsochronous {
			r.RxCSRH().Write(regs.RxCSRHISO)
		}
	})
}

// enable arms one direction of an allocated endpoint.
func (d *Driver) enable(a EndpointAddress) error {
	s, ok := d.alloc.slot(a.Index())
	if !ok || !s.used(a.Direction()) {
		return fmt.Errorf("enable %v: %w", a, pkg.ErrInvalidEndpoint)
	}
	if a.IsIn() {
		d.txEnable(a.Index(), &s.Config)
	} else {
		d.rxEnable(a.Index(), &s.Config)
	}
	return nil
}

// txStall sets or clears the TX stall of endpoint i. Clearing a stall also
// resets the data toggle.
func (d *Driver) txStall(i int, stalled bool) {
	d.indexed(i, func() {
		if i == 0 {
			var v uint8
			if stalled {
				v = regs.CSR0LSendStall
			}
			d.r.CSR0L().Write(v)
			return
		}
		v := regs.TxCSRLClrDataTog
		if stalled {
			v = regs.TxCSRLSendStall
		}
		d.r.TxCSRL().Write(v)
	})
}

// rxStall sets or clears the RX stall of endpoint i. Stalling EP0 also
// services a pending packet.
func (d *Driver) rxStall(i int, stalled bool) {
	d.indexed(i, func() {
		if i == 0 {
			var v uint8
			if stalled {
				v = regs.CSR0LSendStall | regs.CSR0LServicedRxPktRdy
			}
			d.r.CSR0L().Write(v)
			return
		}
		v := regs.RxCSRLClrDataTog
		if stalled {
			v = regs.RxCSRLSendStall
		}
		d.r.RxCSRL().Write(v)
	})
}

func (d *Driver) txIsStalled(i int) (stalled bool) {
	d.indexed(i, func() {
		if i == 0 {
			stalled = d.r.CSR0L().Bit(regs.CSR0LSendStall)
			return
		}
		stalled = d.r.TxCSRL().Bit(regs.TxCSRLSendStall)
	})
	return stalled
}

func (d *Driver) rxIsStalled(i int) (stalled bool) {
	d.indexed(i, func() {
		if i == 0 {
			stalled = d.r.CSR0L().Bit(regs.CSR0LSendStall)
			return
		}
		stalled = d.r.RxCSRL().Bit(regs.RxCSRLSendStall)
	})
	return stalled
}

// setStalled stalls or unstalls an endpoint and wakes its waiters. A stall
// on EP0 aborts the control transfer.
func (d *Driver) setStalled(a EndpointAddress, stalled bool) error {
	if err := d.checkAddress(a); err != nil {
		return err
	}
	i := a.Index()
	if a.IsIn() {
		d.txStall(i, stalled)
		d.flags.tx[i].Wake()
	} else {
		d.rxStall(i, stalled)
		d.flags.tx[i].Wake()
		d.flags.rx[i].Wake()
	}
	if i == 0 && stalled {
		d.ctrl.reset()
	}
	pkg.LogDebug(pkg.ComponentBus, "stall", "ep", a, "stalled", stalled)
	return nil
}

func (d *Driver) isStalled(a EndpointAddress) bool {
	if d.checkAddress(a) != nil {
		return false
	}
	if a.IsIn() {
		return d.txIsStalled(a.Index())
	}
	return d.rxIsStalled(a.Index())
}

// sweepOverrun clears latched TX underrun and RX overrun on every data
// endpoint. Must hold d.mu.
func (d *Driver) sweepOverrun() {
	r := d.r
	for i := 1; i < d.NumEndpoints(); i++ {
		r.Index().Write(uint8(i))
		if r.TxCSRL().Bit(regs.TxCSRLUnderRun) {
			r.TxCSRL().Clear(regs.TxCSRLUnderRun)
			pkg.LogWarn(pkg.ComponentIRQ, "underrun", "ep", i)
		}
		if r.RxCSRL().Bit(regs.RxCSRLOverRun) {
			r.RxCSRL().Clear(regs.RxCSRLOverRun)
			pkg.LogWarn(pkg.ComponentIRQ, "overrun", "ep", i)
		}
	}
}

// CheckOverrun clears and logs TX underrun and RX overrun conditions.
func (d *Driver) CheckOverrun() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweepOverrun()
}

func (d *Driver) dualPacket(reg regs.Reg16, dir Direction, i int, enabled bool) error {
	switch {
	case !reg.Present():
		return fmt.Errorf("%s dual packet on %s layout: %w", dir, d.l.Name, pkg.ErrNotSupported)
	case i == 0:
		pkg.LogWarn(pkg.ComponentDriver, "EP0 does not support dual packet mode")
		return fmt.Errorf("%s dual packet on EP0: %w", dir, pkg.ErrInvalidEndpoint)
	case i < 0 || i >= d.NumEndpoints():
		return fmt.Errorf("%s dual packet on endpoint %d: %w", dir, i, pkg.ErrInvalidEndpoint)
	}
	bit := uint16(1) << i
	reg.Modify(func(v uint16) uint16 {
		if enabled {
			return v &^ bit
		}
		return v | bit
	})
	return nil
}

func (d *Driver) dualPackets(reg regs.Reg16, dir Direction, bits uint16) error {
	if !reg.Present() {
		return fmt.Errorf("%s dual packet on %s layout: %w", dir, d.l.Name, pkg.ErrNotSupported)
	}
	reg.Write(^bits & d.epMask() &^ 1)
	return nil
}

// SetTxDualPacket enables or disables double packet buffering of the TX
// FIFO of endpoint i.
func (d *Driver) SetTxDualPacket(i int, enabled bool) error {
	return d.dualPacket(d.r.TxDPktBufDis(), DirectionIn, i, enabled)
}

// SetRxDualPacket enables or disables double packet buffering of the RX
// FIFO of endpoint i.
func (d *Driver) SetRxDualPacket(i int, enabled bool) error {
	return d.dualPacket(d.r.RxDPktBufDis(), DirectionOut, i, enabled)
}

// SetTxDualPackets enables double packet buffering on the TX FIFOs whose
// bit is set in bits and disables it on the rest. Bit 0 is ignored.
func (d *Driver) SetTxDualPackets(bits uint16) error {
	return d.dualPackets(d.r.TxDPktBufDis(), DirectionIn, bits)
}

// SetRxDualPackets is SetTxDualPackets for the RX FIFOs.
func (d *Driver) SetRxDualPackets(bits uint16) error {
	return d.dualPackets(d.r.RxDPktBufDis(), DirectionOut, bits)
}
