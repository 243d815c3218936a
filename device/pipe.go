package device

import (
	"context"
	"fmt"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/regs"
)

// ControlPipe is the EP0 half of the blocking adapter.
//
// A transfer starts with Setup. Transfers with a data stage continue with
// DataIn or DataOut until the stage ends, which the pipe detects from the
// requested length and short packets. OUT transfers and transfers without a
// data stage then finish with Accept or Reject. Calls out of this order
// stall EP0 and return ErrProtocolViolation.
type ControlPipe struct {
	d   *Driver
	mps uint16
}

// MaxPacketSize returns the EP0 packet size.
func (p *ControlPipe) MaxPacketSize() uint16 { return p.mps }

// Phase returns the phase of the current transfer.
func (p *ControlPipe) Phase() ControlPhase { return p.d.ctrl.Phase() }

func (p *ControlPipe) rxReady() (ready bool) {
	p.d.indexed(0, func() {
		ready = p.d.r.CSR0L().Bit(regs.CSR0LRxPktRdy)
	})
	return ready
}

func (p *ControlPipe) txFree() (free bool) {
	p.d.indexed(0, func() {
		free = !p.d.r.CSR0L().Bit(regs.CSR0LTxPktRdy)
	})
	return free
}

// violation stalls EP0 and abandons the transfer.
func (d *Driver) violation(op string) error {
	ph := d.ctrl.Phase()
	pkg.LogError(pkg.ComponentControl, "protocol violation", "op", op, "phase", ph)
	d.rxStall(0, true)
	d.ctrl.reset()
	return fmt.Errorf("%s in %s phase: %w", op, ph, pkg.ErrProtocolViolation)
}

// drain0 discards n bytes from the EP0 FIFO. Must hold d.mu with INDEX at 0.
func (d *Driver) drain0(n int) {
	for ; n > 0; n-- {
		d.r.FIFO(0).Read()
	}
}

// Setup blocks until a setup packet arrives and returns it. A transfer in
// progress is abandoned. A setup stage that is not 8 bytes long is
// discarded and reported as ErrMalformedSetup.
func (p *ControlPipe) Setup(ctx context.Context) ([SetupPacketSize]byte, error) {
	d := p.d
	var pkt [SetupPacketSize]byte

	if err := waitUntil(ctx, d.flags.rx[0], p.rxReady); err != nil {
		return pkt, err
	}

	var (
		sp   SetupPacket
		n    int
		perr error
	)
	d.indexed(0, func() {
		r := d.r
		if r.CSR0L().Bit(regs.CSR0LSetupEnd) {
			r.CSR0L().Write(regs.CSR0LServicedSetupEnd)
			pkg.LogDebug(pkg.ComponentControl, "setup end")
		}
		n = int(r.Count0().Read())
		if n != SetupPacketSize {
			d.drain0(n)
			r.CSR0L().Write(regs.CSR0LServicedRxPktRdy)
			return
		}
		for k := range pkt {
			pkt[k] = r.FIFO(0).Read()
		}
		if perr = ParseSetupPacket(pkt[:], &sp); perr != nil {
			r.CSR0L().Write(regs.CSR0LServicedRxPktRdy)
			return
		}
		d.ctrl.set(PhaseSetup)
		v := regs.CSR0LServicedRxPktRdy
		if d.ctrl.begin(&sp) {
			v |= regs.CSR0LDataEnd
		}
		r.CSR0L().Write(v)
	})

	if n != SetupPacketSize {
		d.ctrl.reset()
		pkg.LogWarn(pkg.ComponentControl, "setup packet not 8 bytes long", "count", n)
		return pkt, fmt.Errorf("setup: %w: %d bytes", pkg.ErrMalformedSetup, n)
	}
	if perr != nil {
		d.ctrl.reset()
		return pkt, fmt.Errorf("setup: %w", perr)
	}
	pkg.LogDebug(pkg.ComponentControl, "setup", "packet", &sp)
	return pkt, nil
}

// DataOut blocks until the next OUT data-stage packet arrives and reads it
// into buf. last forces the end of the data stage. A packet larger than buf
// is drained and reported as ErrBufferTooSmall.
func (p *ControlPipe) DataOut(ctx context.Context, buf []byte, first, last bool) (int, error) {
	d := p.d
	if ph := d.ctrl.Phase(); ph != PhaseDataOut {
		return 0, d.violation("data out")
	}
	pkg.LogDebug(pkg.ComponentControl, "data out", "len", len(buf), "first", first, "last", last)

	if err := waitUntil(ctx, d.flags.rx[0], p.rxReady); err != nil {
		return 0, err
	}

	var n int
	d.indexed(0, func() {
		r := d.r
		n = int(r.Count0().Read())
		for k := 0; k < n; k++ {
			b := r.FIFO(0).Read()
			if k < len(buf) {
				buf[k] = b
			}
		}
		v := regs.CSR0LServicedRxPktRdy
		if d.ctrl.advance(n, p.mps, last) {
			v |= regs.CSR0LDataEnd
			d.ctrl.set(PhaseAccepted)
		}
		r.CSR0L().Write(v)
	})

	if n > len(buf) {
		return len(buf), fmt.Errorf("data out: %w: %d byte packet, %d byte buffer",
			pkg.ErrBufferTooSmall, n, len(buf))
	}
	return n, nil
}

// DataIn blocks until the EP0 FIFO is free and queues one IN data-stage
// packet. last forces the end of the data stage; a short packet or reaching
// the requested length ends it regardless.
func (p *ControlPipe) DataIn(ctx context.Context, data []byte, first, last bool) error {
	d := p.d
	if len(data) > int(p.mps) {
		return fmt.Errorf("data in: %w: %d > %d", pkg.ErrPacketTooLarge, len(data), p.mps)
	}
	if ph := d.ctrl.Phase(); ph != PhaseDataIn {
		return d.violation("data in")
	}
	pkg.LogDebug(pkg.ComponentControl, "data in", "len", len(data), "first", first, "last", last)

	if err := waitUntil(ctx, d.flags.tx[0], p.txFree); err != nil {
		return err
	}

	d.indexed(0, func() {
		r := d.r
		for _, b := range data {
			r.FIFO(0).Write(b)
		}
		v := regs.CSR0LTxPktRdy
		if d.ctrl.advance(len(data), p.mps, last) {
			v |= regs.CSR0LDataEnd
			d.ctrl.set(PhaseIdle)
		}
		r.CSR0L().Write(v)
	})
	return nil
}

// Accept completes a transfer without a data stage, or an OUT transfer
// whose data stage has ended. The controller answers the status stage on
// its own.
func (p *ControlPipe) Accept(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := p.d
	switch d.ctrl.Phase() {
	case PhaseNodata, PhaseAccepted:
		d.ctrl.set(PhaseIdle)
		pkg.LogDebug(pkg.ComponentControl, "accept")
		return nil
	case PhaseIdle:
		return nil
	}
	return d.violation("accept")
}

// Reject stalls the current transfer.
func (p *ControlPipe) Reject() {
	d := p.d
	pkg.LogDebug(pkg.ComponentControl, "reject", "phase", d.ctrl.Phase())
	d.indexed(0, func() {
		d.r.CSR0L().Write(regs.CSR0LSendStall | regs.CSR0LServicedRxPktRdy)
	})
	d.ctrl.reset()
}

// AcceptSetAddress accepts a SET_ADDRESS request and programs the address.
func (p *ControlPipe) AcceptSetAddress(ctx context.Context, addr uint8) error {
	if err := p.Accept(ctx); err != nil {
		return err
	}
	p.d.r.FAddr().Write(addr & regs.FAddrMask)
	pkg.LogDebug(pkg.ComponentControl, "address set", "addr", addr)
	return nil
}
