package device

import (
	"context"
	"fmt"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/regs"
)

// EndpointInfo describes an allocated endpoint.
type EndpointInfo struct {
	Addr          EndpointAddress
	Type          EndpointType
	MaxPacketSize uint16
	Interval      uint8 // polling interval in ms (interrupt/isochronous)
}

// Endpoint is a data endpoint of the blocking adapter. Transfers move one
// packet per call.
type Endpoint struct {
	d    *Driver
	info EndpointInfo
}

// Info returns the endpoint description.
func (e *Endpoint) Info() EndpointInfo { return e.info }

func (e *Endpoint) enabled() bool {
	return e.d.flags.enabled(e.info.Addr.Direction()).Has(e.info.Addr.Index())
}

// WaitEnabled blocks until the endpoint is armed by Bus.SetEnabled.
func (e *Endpoint) WaitEnabled(ctx context.Context) error {
	err := waitUntil(ctx, e.d.flags.waker(e.info.Addr), e.enabled)
	if err == nil {
		pkg.LogDebug(pkg.ComponentBus, "endpoint enabled", "ep", e.info.Addr)
	}
	return err
}

// Read blocks until a packet arrives on an OUT endpoint and copies it into
// buf. A packet larger than buf is drained; buf holds its head and the
// error is ErrBufferTooSmall.
func (e *Endpoint) Read(ctx context.Context, buf []byte) (int, error) {
	a := e.info.Addr
	if a.IsIn() {
		return 0, fmt.Errorf("read %v: %w", a, pkg.ErrInvalidEndpoint)
	}
	d := e.d
	i := a.Index()

	disabled := false
	ready := func() (ok bool) {
		if !e.enabled() {
			disabled = true
			return true
		}
		d.indexed(i, func() {
			ok = d.r.RxCSRL().Bit(regs.RxCSRLRxPktRdy)
		})
		return ok
	}
	if err := waitUntil(ctx, d.flags.rx[i], ready); err != nil {
		return 0, err
	}
	if disabled {
		return 0, fmt.Errorf("read %v: %w", a, pkg.ErrEndpointDisabled)
	}

	var n int
	d.indexed(i, func() {
		r := d.r
		n = int(r.RxCount().Read())
		for k := 0; k < n; k++ {
			b := r.FIFO(i).Read()
			if k < len(buf) {
				buf[k] = b
			}
		}
		r.RxCSRL().Clear(regs.RxCSRLRxPktRdy)
	})
	d.flags.rxPending.Clear(i)

	if n > len(buf) {
		return len(buf), fmt.Errorf("read %v: %w: %d byte packet, %d byte buffer",
			a, pkg.ErrBufferTooSmall, n, len(buf))
	}
	return n, nil
}

// Write blocks until the FIFO of an IN endpoint is free and queues data as
// one packet.
func (e *Endpoint) Write(ctx context.Context, data []byte) error {
	a := e.info.Addr
	if !a.IsIn() {
		return fmt.Errorf("write %v: %w", a, pkg.ErrInvalidEndpoint)
	}
	if len(data) > int(e.info.MaxPacketSize) {
		return fmt.Errorf("write %v: %w: %d > %d", a, pkg.ErrPacketTooLarge, len(data), e.info.MaxPacketSize)
	}
	d := e.d
	i := a.Index()

	disabled := false
	ready := func() (ok bool) {
		if !e.enabled() {
			disabled = true
			return true
		}
		d.indexed(i, func() {
			ok = !d.r.TxCSRL().Bit(regs.TxCSRLTxPktRdy)
		})
		return ok
	}
	if err := waitUntil(ctx, d.flags.tx[i], ready); err != nil {
		return err
	}
	if disabled {
		return fmt.Errorf("write %v: %w", a, pkg.ErrEndpointDisabled)
	}

	d.indexed(i, func() {
		for _, b := range data {
			d.r.FIFO(i).Write(b)
		}
		d.r.TxCSRL().Set(regs.TxCSRLTxPktRdy)
	})
	return nil
}
