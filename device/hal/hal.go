package hal

import (
	"context"

	"github.com/ardnew/musb/device"
)

// Speed represents the USB connection speed.
type Speed uint8

// USB speed constants (USB 2.0 Specification).
const (
	SpeedUnknown Speed = iota // Not connected or unknown
	SpeedLow                  // Low Speed (1.5 Mbit/s)
	SpeedFull                 // Full Speed (12 Mbit/s)
	SpeedHigh                 // High Speed (480 Mbit/s)
)

// String returns a human-readable speed name.
func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "Low Speed"
	case SpeedFull:
		return "Full Speed"
	case SpeedHigh:
		return "High Speed"
	default:
		return "Unknown"
	}
}

// EndpointConfig describes a data endpoint of a device configuration.
type EndpointConfig struct {
	Address       device.EndpointAddress
	Type          device.EndpointType
	MaxPacketSize uint16
	Interval      uint8 // interrupt/isochronous polling interval
}

// DeviceHAL is the contract between a USB device stack and a controller
// driver. The stack owns the USB protocol: it parses setup packets, answers
// standard requests and decides when endpoints are configured. The driver
// moves packets.
//
// Implementations must be safe for concurrent use by one goroutine per
// endpoint plus one for EP0.
type DeviceHAL interface {
	// Init prepares the controller. The context bounds initialization only.
	Init(ctx context.Context) error

	// Start attaches to the bus.
	Start() error

	// Stop detaches from the bus and releases the controller.
	Stop() error

	// SetAddress programs the address assigned by SET_ADDRESS. Called after
	// the request has been acknowledged.
	SetAddress(address uint8) error

	// ConfigureEndpoints arms the endpoints of the active configuration and
	// disarms the rest. An empty slice disarms every data endpoint.
	ConfigureEndpoints(endpoints []EndpointConfig) error

	// ReadSetup blocks until a setup packet arrives.
	ReadSetup(ctx context.Context, out *device.SetupPacket) error

	// WriteEP0 sends the IN data stage of the current control transfer.
	WriteEP0(ctx context.Context, data []byte) error

	// ReadEP0 receives the OUT data stage of the current control transfer
	// and returns its length.
	ReadEP0(ctx context.Context, buf []byte) (int, error)

	// StallEP0 rejects the current control transfer.
	StallEP0() error

	// AckEP0 completes the status stage of the current control transfer.
	AckEP0() error

	// Read blocks until a packet arrives on an OUT endpoint.
	Read(ctx context.Context, address device.EndpointAddress, buf []byte) (int, error)

	// Write blocks until data is queued on an IN endpoint.
	Write(ctx context.Context, address device.EndpointAddress, data []byte) (int, error)

	// Stall stalls a data endpoint.
	Stall(address device.EndpointAddress) error

	// ClearStall clears a stall and resets the data toggle.
	ClearStall(address device.EndpointAddress) error

	// IsConnected reports whether a host has reset the device since Start.
	IsConnected() bool

	// GetSpeed returns the negotiated USB connection speed.
	GetSpeed() Speed

	// WaitConnect blocks until IsConnected is true.
	WaitConnect(ctx context.Context) error

	// WaitDisconnect blocks until IsConnected is false.
	WaitDisconnect(ctx context.Context) error
}
