package device

import (
	"fmt"
	"sync/atomic"

	"github.com/ardnew/musb/pkg"
)

// ControlPhase is the phase of the control transfer in progress on EP0.
type ControlPhase uint32

// Control transfer phases.
const (
	PhaseIdle ControlPhase = iota
	PhaseSetup
	PhaseDataIn
	PhaseDataOut
	PhaseAccepted
	PhaseNodata
)

// String returns the phase name.
func (p ControlPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSetup:
		return "setup"
	case PhaseDataIn:
		return "data-in"
	case PhaseDataOut:
		return "data-out"
	case PhaseAccepted:
		return "accepted"
	case PhaseNodata:
		return "no-data"
	default:
		return fmt.Sprintf("ControlPhase(%d)", uint32(p))
	}
}

// controlState tracks EP0 framing that the hardware does not: the current
// phase and the bytes left in the data stage.
type controlState struct {
	phase  atomic.Uint32
	remain atomic.Uint32
}

func (c *controlState) Phase() ControlPhase { return ControlPhase(c.phase.Load()) }

func (c *controlState) set(p ControlPhase) {
	old := ControlPhase(c.phase.Swap(uint32(p)))
	if old != p {
		pkg.LogDebug(pkg.ComponentControl, "phase", "from", old, "to", p)
	}
}

// Remaining returns the bytes left in the data stage.
func (c *controlState) Remaining() uint32 { return c.remain.Load() }

func (c *controlState) reset() {
	c.remain.Store(0)
	c.set(PhaseIdle)
}

func (c *controlState) decrease(n uint32) {
	for {
		r := c.remain.Load()
		next := uint32(0)
		if n > r {
			pkg.LogWarn(pkg.ComponentControl, "data stage longer than requested",
				"len", n, "remaining", r)
		} else {
			next = r - n
		}
		if c.remain.CompareAndSwap(r, next) {
			return
		}
	}
}

// begin enters the data stage announced by pkt. It reports whether the
// transfer has no data stage, in which case DataEnd must be asserted while
// servicing the setup packet.
func (c *controlState) begin(pkt *SetupPacket) bool {
	c.remain.Store(uint32(pkt.Length))
	switch {
	case pkt.Length == 0:
		c.set(PhaseNodata)
		return true
	case pkt.IsDeviceToHost():
		c.set(PhaseDataIn)
	default:
		c.set(PhaseDataOut)
	}
	return false
}

// advance accounts for a data-stage packet of n bytes and reports whether it
// ends the data stage: the requested length is exhausted, the packet is
// short, or the caller says so.
func (c *controlState) advance(n int, mps uint16, last bool) bool {
	c.decrease(uint32(n))
	return last || c.remain.Load() == 0 || n < int(mps)
}
