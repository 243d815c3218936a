package device

import (
	"fmt"
	"math/bits"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/regs"
)

// PollKind classifies a PollResult.
type PollKind int

// Poll result kinds.
const (
	PollNone PollKind = iota
	PollReset
	PollSuspend
	PollResume
	PollData
)

// String returns the kind name.
func (k PollKind) String() string {
	switch k {
	case PollNone:
		return "none"
	case PollReset:
		return "reset"
	case PollSuspend:
		return "suspend"
	case PollResume:
		return "resume"
	case PollData:
		return "data"
	default:
		return fmt.Sprintf("PollKind(%d)", int(k))
	}
}

// PollResult summarizes pending work. For PollData the masks carry one bit
// per endpoint index: OUT endpoints holding a packet, IN endpoints whose
// packet was sent, and EP0 holding a setup packet. Err reports a discarded
// malformed setup stage.
type PollResult struct {
	Kind         PollKind
	EPOut        uint16
	EPInComplete uint16
	EPSetup      uint16
	Err          error
}

// PollBus is the non-blocking adapter. Every operation returns at once;
// reads and writes that cannot proceed return ErrWouldBlock.
type PollBus struct {
	d *Driver
}

// Polling returns the non-blocking adapter. A driver serves either Polling
// or Start, once.
func (d *Driver) Polling() (*PollBus, error) {
	if err := d.enter(modePolling); err != nil {
		return nil, fmt.Errorf("polling: %w", err)
	}
	return &PollBus{d: d}, nil
}

// AllocEP allocates an endpoint. index is a fixed index or AnyIndex.
func (b *PollBus) AllocEP(dir Direction, index int, t EndpointType, mps uint16, interval uint8) (EndpointAddress, error) {
	i, err := b.d.AllocEndpoint(t, index, dir, mps)
	if err != nil {
		return 0, err
	}
	return NewEndpointAddress(i, dir), nil
}

// Enable ends endpoint allocation and attaches to the bus.
func (b *PollBus) Enable() {
	b.d.alloc.seal()
	b.d.busEnable()
}

// Reset handles a bus reset: every allocated endpoint direction is armed
// again and the control pipe returns to idle.
func (b *PollBus) Reset() {
	d := b.d
	f := d.flags

	d.r.Power().Set(regs.PowerEnSuspendM)
	for i, s := range d.alloc.slots {
		if s.UsedTx {
			d.txEnable(i, &s.Config)
			f.txEnabled.Set(i)
		}
		if s.UsedRx {
			d.rxEnable(i, &s.Config)
			f.rxEnabled.Set(i)
		}
	}
	f.txPending.Take()
	f.rxPending.Take()
	f.ep0.Store(false)
	d.ctrl.reset()
	pkg.LogDebug(pkg.ComponentBus, "reset")
}

// SetDeviceAddress programs the function address.
func (b *PollBus) SetDeviceAddress(addr uint8) {
	b.d.r.FAddr().Write(addr & regs.FAddrMask)
	pkg.LogDebug(pkg.ComponentBus, "address set", "addr", addr)
}

// Write queues one packet on an IN endpoint and returns its length.
//
// On EP0 the packet belongs to the data stage announced by the last setup
// packet; DataEnd is asserted on the packet that ends it. A zero-length
// write outside a data stage is the status stage, which the controller
// handles, and is accepted without touching the FIFO.
func (b *PollBus) Write(a EndpointAddress, buf []byte) (int, error) {
	d := b.d
	if err := d.checkAddress(a); err != nil {
		return 0, err
	}
	if !a.IsIn() {
		return 0, fmt.Errorf("write %v: %w", a, pkg.ErrInvalidEndpoint)
	}
	if a.Index() == 0 {
		return b.write0(buf)
	}

	i := a.Index()
	s, _ := d.alloc.slot(i)
	if len(buf) > int(s.Config.TxMaxPacketSize) {
		return 0, fmt.Errorf("write %v: %w: %d > %d", a, pkg.ErrPacketTooLarge, len(buf), s.Config.TxMaxPacketSize)
	}

	busy := false
	d.indexed(i, func() {
		r := d.r
		if r.TxCSRL().Bit(regs.TxCSRLTxPktRdy) {
			busy = true
			return
		}
		for _, v := range buf {
			r.FIFO(i).Write(v)
		}
		r.TxCSRL().Set(regs.TxCSRLTxPktRdy)
	})
	if busy {
		return 0, pkg.ErrWouldBlock
	}
	return len(buf), nil
}

func (b *PollBus) write0(buf []byte) (int, error) {
	d := b.d
	mps := d.ep0MaxPacketSize()

	switch d.ctrl.Phase() {
	case PhaseDataIn:
	case PhaseNodata:
		if len(buf) != 0 {
			return 0, d.violation("write")
		}
		d.ctrl.set(PhaseIdle)
		return 0, nil
	case PhaseIdle:
		if len(buf) != 0 {
			return 0, d.violation("write")
		}
		return 0, nil
	default:
		return 0, d.violation("write")
	}

	if len(buf) > int(mps) {
		return 0, fmt.Errorf("write ep0: %w: %d > %d", pkg.ErrPacketTooLarge, len(buf), mps)
	}

	busy := false
	d.indexed(0, func() {
		r := d.r
		if r.CSR0L().Bit(regs.CSR0LTxPktRdy) {
			busy = true
			return
		}
		for _, v := range buf {
			r.FIFO(0).Write(v)
		}
		v := regs.CSR0LTxPktRdy
		if d.ctrl.advance(len(buf), mps, false) {
			v |= regs.CSR0LDataEnd
			d.ctrl.set(PhaseIdle)
		}
		r.CSR0L().Write(v)
	})
	if busy {
		return 0, pkg.ErrWouldBlock
	}
	return len(buf), nil
}

// Read copies one packet from an OUT endpoint into buf and returns the
// packet length. A packet larger than buf is drained and reported as
// ErrBufferTooSmall.
//
// On EP0 a read in the setup phase returns the 8-byte setup packet and
// enters the data stage it announces; DataEnd is asserted at once when there
// is none. Reads in the OUT data stage assert DataEnd on the packet that
// ends it.
func (b *PollBus) Read(a EndpointAddress, buf []byte) (int, error) {
	d := b.d
	if err := d.checkAddress(a); err != nil {
		return 0, err
	}
	if a.IsIn() {
		return 0, fmt.Errorf("read %v: %w", a, pkg.ErrInvalidEndpoint)
	}
	if a.Index() == 0 {
		return b.read0(buf)
	}

	i := a.Index()
	var n int
	empty := false
	d.indexed(i, func() {
		r := d.r
		if !r.RxCSRL().Bit(regs.RxCSRLRxPktRdy) {
			empty = true
			return
		}
		n = int(r.RxCount().Read())
		for k := 0; k < n; k++ {
			v := r.FIFO(i).Read()
			if k < len(buf) {
				buf[k] = v
			}
		}
		r.RxCSRL().Clear(regs.RxCSRLRxPktRdy)
	})
	if empty {
		return 0, pkg.ErrWouldBlock
	}
	d.flags.rxPending.Clear(i)

	if n > len(buf) {
		return len(buf), fmt.Errorf("read %v: %w: %d byte packet, %d byte buffer",
			a, pkg.ErrBufferTooSmall, n, len(buf))
	}
	return n, nil
}

func (b *PollBus) read0(buf []byte) (int, error) {
	d := b.d
	mps := d.ep0MaxPacketSize()

	var (
		n         int
		empty     bool
		malformed bool
		viol      bool
		parsed    bool
		sp        SetupPacket
	)
	d.indexed(0, func() {
		r := d.r
		if !r.CSR0L().Bit(regs.CSR0LRxPktRdy) {
			empty = true
			return
		}
		n = int(r.Count0().Read())

		ph := d.ctrl.Phase()
		if ph == PhaseIdle {
			if n == 0 {
				r.CSR0L().Write(regs.CSR0LServicedRxPktRdy | regs.CSR0LDataEnd)
				d.ctrl.reset()
				return
			}
			// Any other packet in Idle is a setup stage; one that is not
			// 8 bytes long is discarded below.
			d.ctrl.set(PhaseSetup)
			ph = PhaseSetup
		}

		switch ph {
		case PhaseSetup:
			if n != SetupPacketSize || len(buf) < SetupPacketSize {
				malformed = n != SetupPacketSize
				d.drain0(n)
				r.CSR0L().Write(regs.CSR0LServicedRxPktRdy)
				d.ctrl.reset()
				return
			}
			for k := 0; k < n; k++ {
				buf[k] = r.FIFO(0).Read()
			}
			if err := ParseSetupPacket(buf[:n], &sp); err != nil {
				malformed = true
				r.CSR0L().Write(regs.CSR0LServicedRxPktRdy)
				d.ctrl.reset()
				return
			}
			parsed = true
			v := regs.CSR0LServicedRxPktRdy
			if d.ctrl.begin(&sp) {
				v |= regs.CSR0LDataEnd
			}
			r.CSR0L().Write(v)

		case PhaseDataOut:
			for k := 0; k < n; k++ {
				v := r.FIFO(0).Read()
				if k < len(buf) {
					buf[k] = v
				}
			}
			v := regs.CSR0LServicedRxPktRdy
			if d.ctrl.advance(n, mps, false) {
				v |= regs.CSR0LDataEnd
				d.ctrl.set(PhaseIdle)
			}
			r.CSR0L().Write(v)

		default:
			viol = true
		}
	})

	switch {
	case empty:
		return 0, pkg.ErrWouldBlock
	case viol:
		return 0, d.violation("read")
	}
	d.flags.rxPending.Clear(0)

	switch {
	case malformed:
		pkg.LogWarn(pkg.ComponentControl, "setup packet not 8 bytes long", "count", n)
		return 0, fmt.Errorf("read ep0: %w: %d bytes", pkg.ErrMalformedSetup, n)
	case n > len(buf):
		return len(buf), fmt.Errorf("read ep0: %w: %d byte packet, %d byte buffer",
			pkg.ErrBufferTooSmall, n, len(buf))
	}
	if parsed {
		pkg.LogDebug(pkg.ComponentControl, "setup", "packet", &sp)
	}
	return n, nil
}

// SetStalled stalls or unstalls an endpoint.
func (b *PollBus) SetStalled(a EndpointAddress, stalled bool) error {
	return b.d.setStalled(a, stalled)
}

// IsStalled reports whether an endpoint is stalled.
func (b *PollBus) IsStalled(a EndpointAddress) bool { return b.d.isStalled(a) }

// Suspend is called after the host suspends the bus. The controller needs
// no action.
func (b *PollBus) Suspend() { pkg.LogDebug(pkg.ComponentBus, "suspend") }

// Resume is called after the bus resumes. The controller needs no action.
func (b *PollBus) Resume() { pkg.LogDebug(pkg.ComponentBus, "resume") }

// ForceReset is not supported by this driver.
func (b *PollBus) ForceReset() error {
	return fmt.Errorf("force reset: %w", pkg.ErrNotSupported)
}

// Poll reports the next bus event or the endpoints with pending work.
func (b *PollBus) Poll() PollResult {
	d := b.d
	f := d.flags

	if f.reset.Swap(false) {
		return PollResult{Kind: PollReset}
	}
	if f.resume.Swap(false) {
		return PollResult{Kind: PollResume}
	}
	if f.suspend.Swap(false) {
		return PollResult{Kind: PollSuspend}
	}

	var (
		setup bool
		err   error
	)
	if f.ep0.Load() {
		setup, err = b.pollEP0()
	}

	// OUT bits stay set until the packet is read.
	for rx := f.rxPending.Load() &^ 1; rx != 0; rx &= rx - 1 {
		i := bits.TrailingZeros32(rx)
		pending := false
		d.indexed(i, func() {
			pending = d.r.RxCSRL().Bit(regs.RxCSRLRxPktRdy)
		})
		if !pending {
			f.rxPending.Clear(i)
		}
	}

	res := PollResult{
		EPInComplete: uint16(f.txPending.Take()),
		EPOut:        uint16(f.rxPending.Load()),
		Err:          err,
	}
	if setup {
		res.EPSetup = 1
	}
	if res.EPInComplete != 0 || res.EPOut != 0 || res.EPSetup != 0 {
		res.Kind = PollData
	}
	return res
}

// pollEP0 decodes the shared EP0 interrupt: a setup packet, a data-stage
// OUT packet, or completion of an IN packet or status stage.
func (b *PollBus) pollEP0() (setup bool, err error) {
	d := b.d
	f := d.flags

	var count int
	malformed := false
	d.indexed(0, func() {
		r := d.r
		csr := r.CSR0L().Read()
		if csr&regs.CSR0LSetupEnd != 0 {
			r.CSR0L().Write(regs.CSR0LServicedSetupEnd)
			d.ctrl.reset()
			pkg.LogDebug(pkg.ComponentControl, "setup end")
		}
		rxRdy := csr&regs.CSR0LRxPktRdy != 0
		txRdy := csr&regs.CSR0LTxPktRdy != 0

		switch {
		case !rxRdy && !txRdy:
			f.txPending.Set(0)
			f.rxPending.Clear(0)
			f.ep0.Store(false)

		case rxRdy:
			switch d.ctrl.Phase() {
			case PhaseDataOut:
				f.rxPending.Set(0)
			case PhaseSetup:
				setup = true
			default:
				count = int(r.Count0().Read())
				switch count {
				case SetupPacketSize:
					d.ctrl.set(PhaseSetup)
					setup = true
				case 0:
					r.CSR0L().Write(regs.CSR0LServicedRxPktRdy | regs.CSR0LDataEnd)
					d.ctrl.reset()
				default:
					malformed = true
					d.drain0(count)
					r.CSR0L().Write(regs.CSR0LServicedRxPktRdy)
					d.ctrl.reset()
				}
			}

		default:
			f.rxPending.Clear(0)
			f.ep0.Store(false)
		}
	})

	if malformed {
		pkg.LogWarn(pkg.ComponentControl, "setup packet not 8 bytes long", "count", count)
		return false, fmt.Errorf("poll: %w: %d bytes", pkg.ErrMalformedSetup, count)
	}
	return setup, nil
}
