package device

import "fmt"

// EndpointType is the USB transfer type of an endpoint (USB 2.0 Spec Table 9-13).
type EndpointType uint8

// Endpoint transfer types.
const (
	EndpointTypeControl     EndpointType = 0x00
	EndpointTypeIsochronous EndpointType = 0x01
	EndpointTypeBulk        EndpointType = 0x02
	EndpointTypeInterrupt   EndpointType = 0x03
)

// String returns the transfer type name.
func (t EndpointType) String() string {
	switch t {
	case EndpointTypeControl:
		return "control"
	case EndpointTypeIsochronous:
		return "isochronous"
	case EndpointTypeBulk:
		return "bulk"
	case EndpointTypeInterrupt:
		return "interrupt"
	default:
		return fmt.Sprintf("EndpointType(%d)", uint8(t))
	}
}

// Direction is the direction of an endpoint as seen from the host.
type Direction uint8

// Endpoint directions.
const (
	DirectionOut Direction = 0x00 // Host to device, RX on the controller
	DirectionIn  Direction = 0x80 // Device to host, TX on the controller
)

// String returns "in" or "out".
func (d Direction) String() string {
	if d == DirectionIn {
		return "in"
	}
	return "out"
}

// EndpointAddress is a USB endpoint address: index in bits 0-3, direction
// in bit 7.
type EndpointAddress uint8

// NewEndpointAddress returns the address of endpoint index in direction d.
func NewEndpointAddress(index int, d Direction) EndpointAddress {
	return EndpointAddress(uint8(index)&0x0F | uint8(d))
}

// Index returns the endpoint number (0-15).
func (a EndpointAddress) Index() int { return int(a & 0x0F) }

// Direction returns the endpoint direction.
func (a EndpointAddress) Direction() Direction { return Direction(a & 0x80) }

// IsIn reports whether a is an IN endpoint.
func (a EndpointAddress) IsIn() bool { return a.Direction() == DirectionIn }

// String returns the address in the form "ep1in".
func (a EndpointAddress) String() string {
	return fmt.Sprintf("ep%d%s", a.Index(), a.Direction())
}
