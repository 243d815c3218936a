package device

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/profile"
	"github.com/ardnew/musb/regs"
)

// Adapter modes. A driver serves one framework style for its lifetime.
const (
	modeNone int32 = iota
	modeAsync
	modePolling
)

// Driver drives one MUSB controller in device mode.
//
// Endpoints are allocated first, then the driver is handed to one of two
// framework adapters: Start for the blocking adapter (Bus, ControlPipe and
// Endpoint), or Polling for the non-blocking PollBus. OnInterrupt must be
// called from the controller's interrupt handler in both cases.
type Driver struct {
	r *regs.Registers
	l *regs.Layout
	p *profile.Profile

	// mu serializes INDEX selection with the indexed accesses that follow.
	mu sync.Mutex

	alloc *allocator
	flags *flags
	ctrl  controlState

	mode atomic.Int32
}

// New returns a driver for the controller behind r, described by p.
// Interrupt sources are enabled; the device stays detached until the bus is
// enabled.
func New(r *regs.Registers, p *profile.Profile) (*Driver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	l := r.Layout()
	if l.Name != p.Layout {
		return nil, fmt.Errorf("%w: %s: layout %s does not match register layout %s",
			pkg.ErrInvalidProfile, p.Name, p.Layout, l.Name)
	}

	p = p.Clone()
	d := &Driver{
		r:     r,
		l:     l,
		p:     p,
		alloc: newAllocator(p),
		flags: newFlags(),
	}
	d.busInit()

	pkg.LogInfo(pkg.ComponentDriver, "driver created",
		"profile", p.Name,
		"layout", l.Name,
		"endpoints", p.NumEndpoints(),
		"fifo", p.FIFO)
	return d, nil
}

// Profile returns the chip profile the driver was built for.
func (d *Driver) Profile() *profile.Profile { return d.p }

// Registers returns the register interface.
func (d *Driver) Registers() *regs.Registers { return d.r }

// NumEndpoints returns the number of endpoint indices, including EP0.
func (d *Driver) NumEndpoints() int { return d.p.NumEndpoints() }

// AllocEndpoint reserves an endpoint of type t in direction dir with the
// given maximum packet size, at index or at the first compatible index when
// index is AnyIndex. Index 0 is the control pipe and binds both directions.
// Allocation is only possible before the driver is started.
func (d *Driver) AllocEndpoint(t EndpointType, index int, dir Direction, mps uint16) (int, error) {
	pkg.LogDebug(pkg.ComponentAlloc, "allocating",
		"type", t,
		"index", index,
		"dir", dir,
		"mps", mps)
	return d.alloc.alloc(t, index, dir, mps)
}

// Endpoints returns a copy of the endpoint slot table.
func (d *Driver) Endpoints() []Slot {
	return append([]Slot(nil), d.alloc.slots...)
}

// FIFOUsage returns the FIFO RAM handed out and the total, in bytes. Both
// are zero on cores with fixed FIFOs.
func (d *Driver) FIFOUsage() (used, total uint32) {
	if f, ok := d.alloc.fifo.(*dynamicFIFO); ok {
		return f.used(), f.total
	}
	return 0, 0
}

// ControlPhase returns the phase of the EP0 control transfer.
func (d *Driver) ControlPhase() ControlPhase { return d.ctrl.Phase() }

// ControlRemaining returns the bytes left in the EP0 data stage.
func (d *Driver) ControlRemaining() uint32 { return d.ctrl.Remaining() }

func (d *Driver) enter(mode int32) error {
	if !d.mode.CompareAndSwap(modeNone, mode) {
		return pkg.ErrAlreadyRunning
	}
	return nil
}

// indexed runs fn with INDEX selecting endpoint i. fn must not block.
func (d *Driver) indexed(i int, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.r.Index().Write(uint8(i))
	fn()
}

// ep0MaxPacketSize returns the control pipe packet size.
func (d *Driver) ep0MaxPacketSize() uint16 {
	if mps := d.alloc.slots[0].Config.TxMaxPacketSize; mps != 0 {
		return mps
	}
	return profile.EP0FIFOSize
}

// checkAddress validates an endpoint address against the slot table.
func (d *Driver) checkAddress(a EndpointAddress) error {
	if a.Index() >= d.NumEndpoints() {
		return fmt.Errorf("%v: %w", a, pkg.ErrInvalidEndpoint)
	}
	return nil
}
