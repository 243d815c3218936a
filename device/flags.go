package device

import (
	"context"
	"sync/atomic"

	"github.com/ardnew/musb/profile"
)

// waker is a one-slot notification. Wake never blocks; a wake with no
// waiter is kept until the next Wait.
type waker struct {
	ch chan struct{}
}

func newWaker() waker {
	return waker{ch: make(chan struct{}, 1)}
}

// Wake signals the waiter. Safe from interrupt context.
func (w waker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Wait consumes a pending wake or blocks until one arrives.
func (w waker) Wait(ctx context.Context) error {
	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mask is an atomic per-endpoint bitmask.
type mask struct {
	v atomic.Uint32
}

func (m *mask) update(fn func(uint32) uint32) {
	for {
		old := m.v.Load()
		if m.v.CompareAndSwap(old, fn(old)) {
			return
		}
	}
}

func (m *mask) Set(i int) { m.Or(1 << i) }

func (m *mask) Clear(i int) { m.AndNot(1 << i) }

func (m *mask) Or(bits uint32) {
	m.update(func(v uint32) uint32 { return v | bits })
}

func (m *mask) AndNot(bits uint32) {
	m.update(func(v uint32) uint32 { return v &^ bits })
}

func (m *mask) Has(i int) bool { return m.v.Load()&(1<<i) != 0 }

func (m *mask) Load() uint32 { return m.v.Load() }

// Take returns the mask and clears it.
func (m *mask) Take() uint32 { return m.v.Swap(0) }

// flags is the state shared between the interrupt bridge and the
// foreground adapters. The bridge only sets bits and wakes; consumers clear.
type flags struct {
	txPending mask
	rxPending mask
	txEnabled mask
	rxEnabled mask

	reset   atomic.Bool
	suspend atomic.Bool
	resume  atomic.Bool
	ep0     atomic.Bool

	bus waker
	tx  [profile.MaxEndpoints]waker
	rx  [profile.MaxEndpoints]waker
}

func newFlags() *flags {
	f := &flags{bus: newWaker()}
	for i := range f.tx {
		f.tx[i] = newWaker()
		f.rx[i] = newWaker()
	}
	return f
}

// wakeEndpoints wakes every endpoint waiter so it re-examines hardware state.
func (f *flags) wakeEndpoints() {
	for i := range f.tx {
		f.tx[i].Wake()
		f.rx[i].Wake()
	}
}

func (f *flags) enabled(d Direction) *mask {
	if d == DirectionIn {
		return &f.txEnabled
	}
	return &f.rxEnabled
}

func (f *flags) waker(a EndpointAddress) waker {
	if a.IsIn() {
		return f.tx[a.Index()]
	}
	return f.rx[a.Index()]
}

// waitUntil blocks on w until ready reports true.
func waitUntil(ctx context.Context, w waker, ready func() bool) error {
	for !ready() {
		if err := w.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
