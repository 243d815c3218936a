package device

import (
	"context"
	"fmt"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/regs"
)

// Event is a bus event reported by Bus.Poll.
type Event int

// Bus events.
const (
	EventPowerDetected Event = iota
	EventReset
	EventSuspend
	EventResume
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventPowerDetected:
		return "power-detected"
	case EventReset:
		return "reset"
	case EventSuspend:
		return "suspend"
	case EventResume:
		return "resume"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Start ends endpoint allocation, claims EP0 for the control pipe with the
// given packet size and returns the blocking adapter. A driver can be
// started once, and not after Polling.
func (d *Driver) Start(controlMPS uint16) (*Bus, *ControlPipe, error) {
	if err := d.enter(modeAsync); err != nil {
		return nil, nil, fmt.Errorf("start: %w", err)
	}
	if _, err := d.alloc.alloc(EndpointTypeControl, 0, DirectionOut, controlMPS); err != nil {
		d.mode.Store(modeNone)
		return nil, nil, err
	}
	d.alloc.seal()

	pkg.LogInfo(pkg.ComponentDriver, "started", "control_mps", controlMPS)
	return &Bus{d: d}, &ControlPipe{d: d, mps: controlMPS}, nil
}

// AllocEndpointIn allocates an IN endpoint at the first compatible index.
func (d *Driver) AllocEndpointIn(t EndpointType, mps uint16, interval uint8) (*Endpoint, error) {
	return d.AllocEndpointAt(t, AnyIndex, DirectionIn, mps, interval)
}

// AllocEndpointOut allocates an OUT endpoint at the first compatible index.
func (d *Driver) AllocEndpointOut(t EndpointType, mps uint16, interval uint8) (*Endpoint, error) {
	return d.AllocEndpointAt(t, AnyIndex, DirectionOut, mps, interval)
}

// AllocEndpointAt allocates a data endpoint of the blocking adapter at index,
// or at the first compatible index when index is AnyIndex.
func (d *Driver) AllocEndpointAt(t EndpointType, index int, dir Direction, mps uint16, interval uint8) (*Endpoint, error) {
	if index == 0 {
		return nil, fmt.Errorf("allocate endpoint 0: %w", pkg.ErrInvalidEndpoint)
	}
	i, err := d.AllocEndpoint(t, index, dir, mps)
	if err != nil {
		return nil, err
	}
	return &Endpoint{
		d: d,
		info: EndpointInfo{
			Addr:          NewEndpointAddress(i, dir),
			Type:          t,
			MaxPacketSize: mps,
			Interval:      interval,
		},
	}, nil
}

// Bus is the bus half of the blocking adapter.
type Bus struct {
	d      *Driver
	inited bool
}

// Poll blocks until the next bus event. The first call reports
// EventPowerDetected. A reset returns the control pipe to idle and wakes
// every endpoint waiter.
func (b *Bus) Poll(ctx context.Context) (Event, error) {
	d := b.d
	f := d.flags
	for {
		if !b.inited {
			b.inited = true
			return EventPowerDetected, nil
		}
		if f.resume.Swap(false) {
			return EventResume, nil
		}
		if f.reset.Swap(false) {
			d.r.Power().Set(regs.PowerEnSuspendM)
			d.ctrl.reset()
			f.wakeEndpoints()
			pkg.LogDebug(pkg.ComponentBus, "reset")
			return EventReset, nil
		}
		if f.suspend.Swap(false) {
			return EventSuspend, nil
		}
		if err := f.bus.Wait(ctx); err != nil {
			return 0, err
		}
	}
}

// Enable attaches the device to the bus.
func (b *Bus) Enable() { b.d.busEnable() }

// Disable detaches the device from the bus.
func (b *Bus) Disable() { b.d.busDisable() }

// SetEnabled arms or disarms an endpoint. Arming programs the controller
// and wakes Endpoint.WaitEnabled; disarming only clears the enabled flag.
func (b *Bus) SetEnabled(a EndpointAddress, enabled bool) error {
	d := b.d
	if err := d.checkAddress(a); err != nil {
		return err
	}
	m := d.flags.enabled(a.Direction())
	if enabled {
		if err := d.enable(a); err != nil {
			return err
		}
		m.Set(a.Index())
	} else {
		m.Clear(a.Index())
	}
	d.flags.waker(a).Wake()
	pkg.LogDebug(pkg.ComponentBus, "set enabled", "ep", a, "enabled", enabled)
	return nil
}

// IsEnabled reports whether an endpoint is armed.
func (b *Bus) IsEnabled(a EndpointAddress) bool {
	if b.d.checkAddress(a) != nil {
		return false
	}
	return b.d.flags.enabled(a.Direction()).Has(a.Index())
}

// SetStalled stalls or unstalls an endpoint.
func (b *Bus) SetStalled(a EndpointAddress, stalled bool) error {
	return b.d.setStalled(a, stalled)
}

// IsStalled reports whether an endpoint is stalled.
func (b *Bus) IsStalled(a EndpointAddress) bool { return b.d.isStalled(a) }

// RemoteWakeup is not supported by this driver.
func (b *Bus) RemoteWakeup() error {
	return fmt.Errorf("remote wakeup: %w", pkg.ErrNotSupported)
}

// SetAddress programs the function address.
func (b *Bus) SetAddress(addr uint8) {
	b.d.r.FAddr().Write(addr & regs.FAddrMask)
}
