// Package sim is a behavioral model of a MUSB device-mode controller.
//
// A Controller implements regs.Block, so the driver programs it exactly as it
// would program silicon: selecting endpoints through INDEX, arming FIFOs
// through the CSR registers, and reading read-to-clear interrupt status. The
// model applies the hardware side effects of those writes (servicing
// RxPktRdy, flushing FIFOs, resetting data toggles, stalling) and records
// them for inspection.
//
// The other side of the bus is driven by host actions: BusReset, Suspend,
// Resume, Setup, Out, In and Status. Each action latches the interrupts the
// real core would raise and, when an enabled interrupt is pending, calls the
// IRQ hook installed with SetIRQ. The hook runs on the goroutine performing
// the host action, after the model's lock is released, standing in for the
// interrupt vector.
//
//	c := sim.New(sim.Config{Layout: regs.LayoutStd, Endpoints: 8})
//	c.SetIRQ(drv.OnInterrupt)
//	c.BusReset()
//	c.Setup([8]byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00})
//	data, err := c.In(0)
package sim
