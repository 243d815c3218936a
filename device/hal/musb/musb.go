package musb

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/musb/device"
	"github.com/ardnew/musb/device/hal"
	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/regs"
)

// DefaultControlMaxPacketSize is the EP0 packet size used when Config leaves
// it zero.
const DefaultControlMaxPacketSize = 64

// Config selects the endpoints the device stack may configure. MUSB FIFOs
// are assigned once, so every endpoint of every configuration is allocated
// at Init.
type Config struct {
	ControlMaxPacketSize uint16
	Endpoints            []hal.EndpointConfig
}

// HAL implements hal.DeviceHAL on a MUSB driver through its blocking
// adapter. A background goroutine follows bus events between Init and Stop.
type HAL struct {
	d   *device.Driver
	cfg Config

	mutex sync.RWMutex
	bus   *device.Bus
	pipe  *device.ControlPipe
	eps   map[device.EndpointAddress]*device.Endpoint

	// stateCh is closed and replaced on every connection change.
	stateMu   sync.Mutex
	connected bool
	stateCh   chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once

	cancel context.CancelFunc
	group  errgroup.Group
}

var _ hal.DeviceHAL = (*HAL)(nil)

// New returns a HAL for d. d must not have been started.
func New(d *device.Driver, cfg Config) *HAL {
	if cfg.ControlMaxPacketSize == 0 {
		cfg.ControlMaxPacketSize = DefaultControlMaxPacketSize
	}
	cfg.Endpoints = append([]hal.EndpointConfig(nil), cfg.Endpoints...)
	return &HAL{
		d:         d,
		cfg:       cfg,
		eps:       make(map[device.EndpointAddress]*device.Endpoint),
		stateCh: make(chan struct{}),
		closeCh: make(chan struct{}),
	}
}

// Init allocates the configured endpoints, starts the driver and begins
// following bus events.
func (h *HAL) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, c := range h.cfg.Endpoints {
		a := c.Address
		if _, ok := h.eps[a]; ok {
			continue
		}
		ep, err := h.d.AllocEndpointAt(c.Type, a.Index(), a.Direction(), c.MaxPacketSize, c.Interval)
		if err != nil {
			return fmt.Errorf("init %v: %w", a, err)
		}
		h.eps[a] = ep
	}

	bus, pipe, err := h.d.Start(h.cfg.ControlMaxPacketSize)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	h.bus, h.pipe = bus, pipe

	runCtx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.group.Go(func() error { return h.run(runCtx) })

	pkg.LogInfo(pkg.ComponentHAL, "musb device HAL initialized",
		"profile", h.d.Profile().Name,
		"endpoints", len(h.eps))
	return nil
}

// run follows bus events until ctx is canceled.
func (h *HAL) run(ctx context.Context) error {
	for {
		ev, err := h.bus.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		pkg.LogDebug(pkg.ComponentHAL, "bus event", "event", ev)

		if ev == device.EventReset {
			// A reset returns the device to the default state.
			if err := h.ConfigureEndpoints(nil); err != nil {
				pkg.LogWarn(pkg.ComponentHAL, "disarm endpoints", "error", err)
			}
			h.setConnected(true)
		}
	}
}

func (h *HAL) setConnected(connected bool) {
	h.stateMu.Lock()
	if h.connected == connected {
		h.stateMu.Unlock()
		return
	}
	h.connected = connected
	close(h.stateCh)
	h.stateCh = make(chan struct{})
	h.stateMu.Unlock()
	pkg.LogInfo(pkg.ComponentHAL, "connection changed", "connected", connected)
}

func (h *HAL) control() (*device.Bus, *device.ControlPipe, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if h.pipe == nil {
		return nil, nil, pkg.ErrNotRunning
	}
	return h.bus, h.pipe, nil
}

func (h *HAL) endpoint(a device.EndpointAddress) (*device.Endpoint, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	ep, ok := h.eps[a]
	if !ok || h.pipe == nil {
		return nil, fmt.Errorf("%v: %w", a, pkg.ErrInvalidEndpoint)
	}
	return ep, nil
}

// Start attaches to the bus. The device is connected once the host resets it.
func (h *HAL) Start() error {
	bus, _, err := h.control()
	if err != nil {
		return err
	}
	bus.Enable()
	pkg.LogInfo(pkg.ComponentHAL, "musb device HAL started")
	return nil
}

// Stop detaches from the bus and ends the bus event goroutine.
func (h *HAL) Stop() error {
	bus, _, err := h.control()
	if err != nil {
		return err
	}
	bus.Disable()
	h.setConnected(false)
	h.closeOnce.Do(func() {
		close(h.closeCh)
		h.cancel()
	})
	err = h.group.Wait()
	pkg.LogInfo(pkg.ComponentHAL, "musb device HAL stopped")
	return err
}

// SetAddress programs the function address.
func (h *HAL) SetAddress(address uint8) error {
	bus, _, err := h.control()
	if err != nil {
		return err
	}
	bus.SetAddress(address)
	pkg.LogDebug(pkg.ComponentHAL, "address set", "address", address)
	return nil
}

// ConfigureEndpoints arms the listed endpoints and disarms every other
// allocated endpoint. Each listed endpoint must have been allocated at Init
// with the same type and at least its packet size.
func (h *HAL) ConfigureEndpoints(endpoints []hal.EndpointConfig) error {
	bus, _, err := h.control()
	if err != nil {
		return err
	}

	want := make(map[device.EndpointAddress]bool, len(endpoints))
	for _, c := range endpoints {
		ep, err := h.endpoint(c.Address)
		if err != nil {
			return fmt.Errorf("configure: %w", err)
		}
		info := ep.Info()
		if info.Type != c.Type || info.MaxPacketSize < c.MaxPacketSize {
			return fmt.Errorf("configure %v: %w: allocated as %v/%d, requested %v/%d",
				c.Address, pkg.ErrInvalidEndpoint, info.Type, info.MaxPacketSize, c.Type, c.MaxPacketSize)
		}
		want[c.Address] = true
	}

	h.mutex.RLock()
	addrs := make([]device.EndpointAddress, 0, len(h.eps))
	for a := range h.eps {
		addrs = append(addrs, a)
	}
	h.mutex.RUnlock()

	for _, a := range addrs {
		if err := bus.SetEnabled(a, want[a]); err != nil {
			return err
		}
	}
	pkg.LogDebug(pkg.ComponentHAL, "endpoints configured", "count", len(want))
	return nil
}

// ReadSetup blocks until a setup packet arrives. Malformed setup stages are
// discarded and reported.
func (h *HAL) ReadSetup(ctx context.Context, out *device.SetupPacket) error {
	_, pipe, err := h.control()
	if err != nil {
		return err
	}
	pkt, err := pipe.Setup(ctx)
	if err != nil {
		return err
	}
	return device.ParseSetupPacket(pkt[:], out)
}

// WriteEP0 sends data as the IN data stage, one packet per max packet size.
// A short final packet ends the stage. When data is a multiple of the max
// packet size and shorter than the host requested, a zero-length packet
// follows.
func (h *HAL) WriteEP0(ctx context.Context, data []byte) error {
	_, pipe, err := h.control()
	if err != nil {
		return err
	}
	mps := int(pipe.MaxPacketSize())
	if len(data) == 0 {
		return pipe.DataIn(ctx, nil, true, true)
	}
	for i := 0; i < len(data); i += mps {
		end := min(i+mps, len(data))
		last := end == len(data) && end-i < mps
		if err := pipe.DataIn(ctx, data[i:end], i == 0, last); err != nil {
			return err
		}
	}
	// Reaching wLength ends the stage without a zero-length packet.
	if len(data)%mps == 0 && pipe.Phase() == device.PhaseDataIn {
		return pipe.DataIn(ctx, nil, false, true)
	}
	return nil
}

// ReadEP0 receives the OUT data stage into buf. It returns 0 when the
// transfer has no OUT data stage.
func (h *HAL) ReadEP0(ctx context.Context, buf []byte) (int, error) {
	_, pipe, err := h.control()
	if err != nil {
		return 0, err
	}
	total := 0
	for first := true; pipe.Phase() == device.PhaseDataOut; first = false {
		n, err := pipe.DataOut(ctx, buf[total:], first, false)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// StallEP0 rejects the current control transfer.
func (h *HAL) StallEP0() error {
	_, pipe, err := h.control()
	if err != nil {
		return err
	}
	pipe.Reject()
	pkg.LogDebug(pkg.ComponentHAL, "EP0 stalled")
	return nil
}

// AckEP0 completes the current control transfer. The controller sends the
// status handshake itself.
func (h *HAL) AckEP0() error {
	_, pipe, err := h.control()
	if err != nil {
		return err
	}
	return pipe.Accept(context.Background())
}

// Read receives one packet from an OUT endpoint.
func (h *HAL) Read(ctx context.Context, address device.EndpointAddress, buf []byte) (int, error) {
	ep, err := h.endpoint(address)
	if err != nil {
		return 0, err
	}
	return ep.Read(ctx, buf)
}

// Write queues one packet on an IN endpoint.
func (h *HAL) Write(ctx context.Context, address device.EndpointAddress, data []byte) (int, error) {
	ep, err := h.endpoint(address)
	if err != nil {
		return 0, err
	}
	if err := ep.Write(ctx, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Stall stalls a data endpoint.
func (h *HAL) Stall(address device.EndpointAddress) error {
	bus, _, err := h.control()
	if err != nil {
		return err
	}
	return bus.SetStalled(address, true)
}

// ClearStall clears a stall on a data endpoint.
func (h *HAL) ClearStall(address device.EndpointAddress) error {
	bus, _, err := h.control()
	if err != nil {
		return err
	}
	return bus.SetStalled(address, false)
}

// IsConnected reports whether the host has reset the device since Start.
func (h *HAL) IsConnected() bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.connected
}

// state returns the connection state and a channel closed on its next
// change.
func (h *HAL) state() (bool, <-chan struct{}) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.connected, h.stateCh
}

// GetSpeed returns the negotiated speed.
func (h *HAL) GetSpeed() hal.Speed {
	switch {
	case !h.IsConnected():
		return hal.SpeedUnknown
	case h.d.Registers().Power().Bit(regs.PowerHSMode):
		return hal.SpeedHigh
	default:
		return hal.SpeedFull
	}
}

// WaitConnect blocks until connected or ctx is canceled. Any number of
// goroutines may wait.
func (h *HAL) WaitConnect(ctx context.Context) error {
	for {
		connected, changed := h.state()
		if connected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		case <-h.closeCh:
			return pkg.ErrNotRunning
		}
	}
}

// WaitDisconnect blocks until disconnected or ctx is canceled.
func (h *HAL) WaitDisconnect(ctx context.Context) error {
	for {
		connected, changed := h.state()
		if !connected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		case <-h.closeCh:
			return nil
		}
	}
}
