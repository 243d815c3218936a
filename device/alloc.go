package device

import (
	"errors"
	"fmt"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/profile"
)

// AnyIndex requests the first compatible endpoint index other than 0.
const AnyIndex = -1

// maxPacketSize is the largest packet a USB 2.0 endpoint can declare.
const maxPacketSize = 1024

// EndpointConfig is the resolved configuration of an endpoint slot. It is
// fixed at allocation time and programmed into the controller when the
// endpoint is enabled.
type EndpointConfig struct {
	Type EndpointType

	TxMaxPacketSize uint16
	RxMaxPacketSize uint16

	// FIFO partitions, dynamic FIFO cores only. A partition is
	// 1<<SizeBits bytes at Addr8*8 in FIFO RAM.
	TxFIFOSizeBits uint8
	RxFIFOSizeBits uint8
	TxFIFOAddr8    uint16
	RxFIFOAddr8    uint16
}

// Slot is the allocation state of one hardware endpoint index.
type Slot struct {
	Config EndpointConfig // valid when UsedTx or UsedRx
	UsedTx bool
	UsedRx bool
}

// Used reports whether either direction of the slot is allocated.
func (s Slot) Used() bool { return s.UsedTx || s.UsedRx }

func (s Slot) used(d Direction) bool {
	if d == DirectionIn {
		return s.UsedTx
	}
	return s.UsedRx
}

// AllocError describes a failed endpoint allocation. It unwraps to the
// failure category, ErrInvalidEndpoint for a rejected fixed index or
// ErrEndpointOverflow otherwise, and to the specific Reason.
type AllocError struct {
	Index  int // requested index, or AnyIndex
	Fixed  bool
	Reason error
}

func (e *AllocError) Error() string {
	if e.Fixed {
		return fmt.Sprintf("allocate endpoint %d: %v", e.Index, e.Reason)
	}
	return fmt.Sprintf("allocate endpoint: %v", e.Reason)
}

func (e *AllocError) category() error {
	if e.Fixed && !errors.Is(e.Reason, pkg.ErrEndpointOverflow) {
		return pkg.ErrInvalidEndpoint
	}
	return pkg.ErrEndpointOverflow
}

// Unwrap returns the category and the reason.
func (e *AllocError) Unwrap() []error {
	c := e.category()
	if e.Reason == nil || e.Reason == c {
		return []error{c}
	}
	return []error{c, e.Reason}
}

// fifoPolicy is the FIFO sizing strategy of a controller.
type fifoPolicy interface {
	// fits reports whether a packet of mps bytes can be given a FIFO in slot i.
	fits(i int, mps uint16) error
	// assign records the FIFO partition of one direction of slot i.
	assign(i int, d Direction, mps uint16, c *EndpointConfig)
}

// fixedFIFO serves cores whose FIFOs are sized at synthesis.
type fixedFIFO struct {
	p *profile.Profile
}

func (f fixedFIFO) fits(i int, mps uint16) error {
	if (uint32(mps)+7)/8 > uint32(f.p.Capacity(i))/8 {
		return pkg.ErrMaxPacketSizeBiggerThanEpFifoSize
	}
	return nil
}

func (fixedFIFO) assign(int, Direction, uint16, *EndpointConfig) {}

// dynamicFIFO partitions a shared FIFO RAM. EP0 owns the first 64 bytes;
// every other partition is carved from a cursor that only advances.
type dynamicFIFO struct {
	p      *profile.Profile
	total  uint32 // bytes
	cursor uint16 // 8-byte units
}

func newDynamicFIFO(p *profile.Profile) *dynamicFIFO {
	return &dynamicFIFO{
		p:      p,
		total:  p.TotalFIFOSize,
		cursor: profile.EP0FIFOSize / 8,
	}
}

// partitionBits returns log2 of the smallest power of two holding mps,
// at least 8 bytes.
func partitionBits(mps uint16) uint8 {
	bits := uint8(3)
	for uint32(1)<<bits < uint32(mps) {
		bits++
	}
	return bits
}

// partitionSize is the RAM consumed by a double-packet-buffered partition.
func partitionSize(bits uint8) uint32 {
	return 2 << bits
}

func (f *dynamicFIFO) fits(i int, mps uint16) error {
	if mps > maxPacketSize {
		return pkg.ErrMaxPacketSizeBiggerThanEpFifoSize
	}
	if c := f.p.Capacity(i); c != 0 && mps > c {
		return pkg.ErrMaxPacketSizeBiggerThanEpFifoSize
	}
	if i == 0 {
		return nil
	}
	if uint32(f.cursor)*8+partitionSize(partitionBits(mps)) > f.total {
		return pkg.ErrBufferOverflow
	}
	return nil
}

func (f *dynamicFIFO) assign(i int, d Direction, mps uint16, c *EndpointConfig) {
	bits, addr := partitionBits(profile.EP0FIFOSize), uint16(0)
	if i != 0 {
		bits, addr = partitionBits(mps), f.cursor
		f.cursor += uint16(partitionSize(bits) / 8)
	}
	if d == DirectionIn {
		c.TxFIFOSizeBits, c.TxFIFOAddr8 = bits, addr
	} else {
		c.RxFIFOSizeBits, c.RxFIFOAddr8 = bits, addr
	}
}

// used returns the bytes of FIFO RAM handed out, including EP0.
func (f *dynamicFIFO) used() uint32 { return uint32(f.cursor) * 8 }

// allocator owns the endpoint slot table. It performs no register access.
type allocator struct {
	p      *profile.Profile
	slots  []Slot
	fifo   fifoPolicy
	sealed bool
}

func newAllocator(p *profile.Profile) *allocator {
	a := &allocator{
		p:     p,
		slots: make([]Slot, p.NumEndpoints()),
	}
	if p.FIFO == profile.FIFODynamic {
		a.fifo = newDynamicFIFO(p)
	} else {
		a.fifo = fixedFIFO{p: p}
	}
	return a
}

// check reports whether slot i can take the requested endpoint.
func (a *allocator) check(i int, t EndpointType, d Direction, mps uint16) error {
	s := a.slots[i]

	if err := a.fifo.fits(i, mps); err != nil {
		return err
	}

	switch a.p.Endpoints[i].Direction {
	case profile.TX:
		if d != DirectionIn {
			return pkg.ErrEpDirNotSupported
		}
	case profile.RX:
		if d != DirectionOut {
			return pkg.ErrEpDirNotSupported
		}
	}

	// Bulk endpoints never share an index, even across directions.
	if t == EndpointTypeBulk && s.Used() {
		return pkg.ErrEpUsed
	}
	if !s.Used() || (s.Config.Type == t && !s.used(d)) {
		return nil
	}
	return pkg.ErrEpUsed
}

// alloc reserves an endpoint and returns its index. index is a fixed index
// or AnyIndex.
func (a *allocator) alloc(t EndpointType, index int, d Direction, mps uint16) (int, error) {
	if a.sealed {
		return 0, fmt.Errorf("allocate endpoint: %w", pkg.ErrAlreadyRunning)
	}

	n := len(a.slots)
	switch {
	case index == AnyIndex:
		var reason error
		mixed := false
		for i := 1; i < n; i++ {
			err := a.check(i, t, d, mps)
			if err == nil {
				a.claim(i, t, d, mps)
				return i, nil
			}
			if reason == nil {
				reason = err
			} else if reason != err {
				mixed = true
			}
		}
		if reason == nil || mixed {
			reason = pkg.ErrEndpointOverflow
		}
		return 0, &AllocError{Index: AnyIndex, Reason: reason}

	case index < 0 || index >= n:
		return 0, &AllocError{Index: index, Fixed: true, Reason: pkg.ErrEndpointOverflow}

	case index == 0:
		if err := a.fifo.fits(0, mps); err != nil {
			return 0, &AllocError{Index: 0, Fixed: true, Reason: err}
		}
		a.claimControl(mps)
		return 0, nil
	}

	if err := a.check(index, t, d, mps); err != nil {
		return 0, &AllocError{Index: index, Fixed: true, Reason: err}
	}
	a.claim(index, t, d, mps)
	return index, nil
}

func (a *allocator) claim(i int, t EndpointType, d Direction, mps uint16) {
	s := &a.slots[i]
	s.Config.Type = t
	if d == DirectionIn {
		s.UsedTx = true
		s.Config.TxMaxPacketSize = mps
	} else {
		s.UsedRx = true
		s.Config.RxMaxPacketSize = mps
	}
	a.fifo.assign(i, d, mps, &s.Config)

	pkg.LogDebug(pkg.ComponentAlloc, "endpoint allocated",
		"index", i,
		"type", t,
		"dir", d,
		"mps", mps)
}

// claimControl binds both directions of EP0 to the control pipe. The EP0
// FIFO is fixed, so repeated claims only update the packet size.
func (a *allocator) claimControl(mps uint16) {
	s := &a.slots[0]
	if !s.UsedTx || !s.UsedRx {
		a.fifo.assign(0, DirectionIn, mps, &s.Config)
		a.fifo.assign(0, DirectionOut, mps, &s.Config)
	}
	s.Config.Type = EndpointTypeControl
	s.Config.TxMaxPacketSize = mps
	s.Config.RxMaxPacketSize = mps
	s.UsedTx, s.UsedRx = true, true

	pkg.LogDebug(pkg.ComponentAlloc, "control endpoint allocated", "mps", mps)
}

// seal ends the enumeration phase. FIFO space is never reclaimed, so the
// slot table is immutable afterwards.
func (a *allocator) seal() { a.sealed = true }

func (a *allocator) slot(i int) (Slot, bool) {
	if i < 0 || i >= len(a.slots) {
		return Slot{}, false
	}
	return a.slots[i], true
}
