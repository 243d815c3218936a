package device

import (
	"github.com/ardnew/musb/regs"
)

// OnInterrupt is the interrupt bridge. It transcribes the controller's
// read-to-clear interrupt status into the shared flags and wakes the
// matching waiters. It never blocks: only non-indexed registers are read,
// and the underrun/overrun sweep is skipped when the foreground holds the
// index selection.
func (d *Driver) OnInterrupt() {
	f := d.flags
	r := d.r

	usb := r.IntrUSB().Read()
	if usb&regs.IntrUSBReset != 0 {
		f.reset.Store(true)
		f.bus.Wake()
	}
	if usb&regs.IntrUSBSuspend != 0 {
		f.suspend.Store(true)
		f.bus.Wake()
	}
	if usb&regs.IntrUSBResume != 0 {
		f.resume.Store(true)
		f.bus.Wake()
	}

	tx := r.IntrTx().Read()
	rx := r.IntrRx().Read()

	// EP0 has a single interrupt for both directions.
	if tx&1 != 0 {
		f.ep0.Store(true)
		f.tx[0].Wake()
		f.rx[0].Wake()
	}
	for i := 1; i < d.NumEndpoints(); i++ {
		bit := uint16(1) << i
		if tx&bit != 0 {
			f.txPending.Set(i)
			f.tx[i].Wake()
		}
		if rx&bit != 0 {
			f.rxPending.Set(i)
			f.rx[i].Wake()
		}
	}

	d.tryCheckOverrun()
}

// tryCheckOverrun runs the overrun sweep if the index selection is free,
// restoring INDEX afterwards.
func (d *Driver) tryCheckOverrun() {
	if !d.mu.TryLock() {
		return
	}
	defer d.mu.Unlock()
	prev := d.r.Index().Read()
	d.sweepOverrun()
	d.r.Index().Write(prev)
}
