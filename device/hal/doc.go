// Package hal defines the boundary between a USB device stack and a
// controller driver.
//
// A stack drives enumeration through [DeviceHAL]: it reads setup packets,
// answers them over EP0, and arms data endpoints once the host selects a
// configuration. The driver behind the interface only moves packets and
// reports bus state.
//
// The MUSB implementation lives in [github.com/ardnew/musb/device/hal/musb].
package hal
