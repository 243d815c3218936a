// Package device implements a device-mode driver for Mentor Graphics MUSB
// USB 2.0 controllers.
//
// The driver moves packets and reports bus state. It does not answer
// standard requests, build descriptors or track configurations; that is the
// job of the USB device stack above it, which reaches the driver through
// one of two adapters or through [github.com/ardnew/musb/device/hal].
//
// # Architecture
//
//   - [Driver] owns the register block, the endpoint allocator and the
//     shared flags written by the interrupt bridge
//   - [Driver.OnInterrupt] is the interrupt bridge. It reads and clears the
//     controller's interrupt registers, records the events and wakes waiters
//   - [Bus], [ControlPipe] and [Endpoint] form the blocking adapter
//   - [PollBus] is the polling adapter for callers that sample the driver
//     from a main loop
//
// A driver serves one adapter for its lifetime.
//
// # Controller Profiles
//
// MUSB cores differ in register layout, endpoint count and FIFO sizing.
// A [github.com/ardnew/musb/profile.Profile] selects the layout ("std" or
// the 8-bit "mini" layout), the per-endpoint direction restrictions and
// either fixed FIFO sizes or the size of dynamically partitioned FIFO RAM.
//
// # Endpoint Allocation
//
// Endpoints are allocated before the bus is started and never released.
// Bulk endpoints get an index of their own; interrupt and isochronous
// endpoints of the same type may share an index across directions. On cores
// with dynamic FIFOs each allocation carves a double-buffered partition
// from FIFO RAM after the 64 bytes reserved for EP0.
//
// # Control Transfers
//
// EP0 follows a small state machine:
//
//	Idle → Setup → DataIn | DataOut | Nodata → (Accepted) → Idle
//
// The controller answers the status stage itself once DataEnd has been
// set. A call made in the wrong phase stalls EP0, returns the machine to
// Idle and reports [github.com/ardnew/musb/pkg.ErrProtocolViolation]; the
// next setup packet starts over.
//
// # Example
//
//	w, err := mmio.MapLayout(base, regs.LayoutStd)
//	...
//	d, err := device.New(regs.New(w, regs.LayoutStd), p)
//	...
//	in, _ := d.AllocEndpointIn(device.EndpointTypeBulk, 64, 0)
//	bus, pipe, _ := d.Start(64)
//	// Call d.OnInterrupt from the controller's interrupt handler.
//	bus.Enable()
//	for {
//	    ev, _ := bus.Poll(ctx)
//	    ...
//	}
package device
