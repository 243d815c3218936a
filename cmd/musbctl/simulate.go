package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ardnew/musb/device"
	"github.com/ardnew/musb/device/hal"
	"github.com/ardnew/musb/device/hal/musb"
	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/profile"
	"github.com/ardnew/musb/sim"
)

var simulateCommand = &cli.Command{
	Name:  "simulate",
	Usage: "Enumerates a simulated controller and echoes one bulk packet",
	Description: `Attaches the driver to a simulated MUSB core built from the profile,
then plays the host: GET_DESCRIPTOR, SET_ADDRESS, SET_CONFIGURATION and a bulk
OUT/IN round trip answered by a minimal echo device.`,
	Action: simulate,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "profile",
			Usage: "Builtin profile name or profile file",
			Value: "py32f403",
		},
		&cli.UintFlag{
			Name:  "mps",
			Usage: "EP0 max packet size (8, 16, 32, 64)",
			Value: 64,
		},
		&cli.StringFlag{
			Name:  "message",
			Usage: "Payload sent through the echo endpoints",
			Value: "hello, musb",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Abort the simulation after this long",
			Value: 5 * time.Second,
		},
	},
}

const (
	echoOut device.EndpointAddress = 0x01
	echoIn  device.EndpointAddress = 0x82
	echoMPS                        = 64

	simAddress = 7
)

var echoEndpoints = []hal.EndpointConfig{
	{Address: echoOut, Type: device.EndpointTypeBulk, MaxPacketSize: echoMPS},
	{Address: echoIn, Type: device.EndpointTypeBulk, MaxPacketSize: echoMPS},
}

func deviceDescriptor(mps0 uint8) []byte {
	return []byte{
		18, device.DescriptorTypeDevice,
		0x00, 0x02, // bcdUSB 2.00
		0xFF, 0x00, 0x00, // vendor specific
		mps0,
		0x09, 0x12, 0x01, 0x00, // idVendor, idProduct
		0x00, 0x01, // bcdDevice
		0, 0, 0, // no strings
		1, // one configuration
	}
}

func simulate(ctx *cli.Context) error {
	p, err := profile.Resolve(ctx.String("profile"))
	if err != nil {
		return err
	}
	l, err := p.RegisterLayout()
	if err != nil {
		return err
	}
	mps0 := ctx.Uint("mps")
	msg := []byte(ctx.String("message"))
	if len(msg) == 0 || len(msg) > echoMPS {
		return fmt.Errorf("message must be 1 to %d bytes", echoMPS)
	}

	c := sim.New(sim.Config{Layout: l, Endpoints: p.NumEndpoints()})
	d, err := device.New(c.Registers(), p)
	if err != nil {
		return err
	}
	c.SetIRQ(d.OnInterrupt)

	h := musb.New(d, musb.Config{ControlMaxPacketSize: uint16(mps0), Endpoints: echoEndpoints})
	runCtx, cancel := context.WithTimeout(ctx.Context, ctx.Duration("timeout"))
	defer cancel()
	if err := h.Init(runCtx); err != nil {
		return err
	}
	if err := h.Start(); err != nil {
		return err
	}

	out := ctx.App.Writer
	fmt.Fprintf(out, "profile %s: %s layout, %v FIFO, %d endpoints\n", p.Name, p.Layout, p.FIFO, p.NumEndpoints())

	e := &echoDevice{hal: h, desc: deviceDescriptor(uint8(mps0)), configured: make(chan struct{})}
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return e.serveControl(gctx) })
	g.Go(func() error { return e.serveEcho(gctx) })

	hostErr := runHost(gctx, out, c, h, e, int(mps0), msg)
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err := h.Stop(); err != nil {
		return err
	}
	if hostErr != nil {
		return hostErr
	}
	fmt.Fprintf(out, "device address %d, %d data stages ended\n", c.Address(), c.DataEnds())
	return nil
}

// echoDevice is the smallest device stack that enumerates: it answers the
// three requests the simulated host sends and stalls everything else.
type echoDevice struct {
	hal        hal.DeviceHAL
	desc       []byte
	configured chan struct{}
}

func (e *echoDevice) serveControl(ctx context.Context) error {
	if err := e.hal.WaitConnect(ctx); err != nil {
		return err
	}
	var setup device.SetupPacket
	for {
		if err := e.hal.ReadSetup(ctx, &setup); err != nil {
			if errors.Is(err, pkg.ErrMalformedSetup) {
				continue
			}
			return err
		}
		switch {
		case !setup.IsStandard():
			e.hal.StallEP0()

		case setup.Request == device.RequestGetDescriptor && setup.Value>>8 == device.DescriptorTypeDevice:
			n := min(int(setup.Length), len(e.desc))
			if err := e.hal.WriteEP0(ctx, e.desc[:n]); err != nil {
				return err
			}

		case setup.Request == device.RequestSetAddress:
			if err := e.hal.AckEP0(); err != nil {
				return err
			}
			if err := e.hal.SetAddress(uint8(setup.Value)); err != nil {
				return err
			}

		case setup.Request == device.RequestSetConfiguration && setup.Value == 1:
			if err := e.hal.ConfigureEndpoints(echoEndpoints); err != nil {
				return err
			}
			if err := e.hal.AckEP0(); err != nil {
				return err
			}
			close(e.configured)

		default:
			e.hal.StallEP0()
		}
	}
}

func (e *echoDevice) serveEcho(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.configured:
	}
	buf := make([]byte, echoMPS)
	for {
		n, err := e.hal.Read(ctx, echoOut, buf)
		if err != nil {
			return err
		}
		if _, err := e.hal.Write(ctx, echoIn, buf[:n]); err != nil {
			return err
		}
	}
}

// retry repeats a host transaction while the device NAKs it.
func retry(ctx context.Context, fn func() error) error {
	for {
		err := fn()
		if !errors.Is(err, sim.ErrNAK) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func runHost(ctx context.Context, out io.Writer, c *sim.Controller, h *musb.HAL, e *echoDevice, mps0 int, msg []byte) error {
	c.BusReset()
	if err := h.WaitConnect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	fmt.Fprintf(out, "bus reset, %v\n", h.GetSpeed())

	var req device.SetupPacket
	device.GetDescriptorSetup(&req, device.DescriptorTypeDevice, 0, 64)
	c.Setup(req.Bytes())
	var desc []byte
	for {
		var pkt []byte
		if err := retry(ctx, func() (err error) {
			pkt, err = c.In(0)
			return err
		}); err != nil {
			return fmt.Errorf("get descriptor: %w", err)
		}
		desc = append(desc, pkt...)
		if len(pkt) < mps0 || len(desc) >= int(req.Length) {
			break
		}
	}
	if err := retry(ctx, c.Status); err != nil {
		return fmt.Errorf("get descriptor status: %w", err)
	}
	fmt.Fprintf(out, "device descriptor: % x\n", desc)

	device.SetAddressSetup(&req, simAddress)
	c.Setup(req.Bytes())
	if err := retry(ctx, c.Status); err != nil {
		return fmt.Errorf("set address status: %w", err)
	}
	fmt.Fprintf(out, "set address %d\n", simAddress)

	device.SetConfigurationSetup(&req, 1)
	c.Setup(req.Bytes())
	if err := retry(ctx, c.Status); err != nil {
		return fmt.Errorf("set configuration status: %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.configured:
	}
	fmt.Fprintln(out, "configured")

	if err := retry(ctx, func() error { return c.Out(echoOut.Index(), msg) }); err != nil {
		return fmt.Errorf("bulk out: %w", err)
	}
	var echo []byte
	if err := retry(ctx, func() (err error) {
		echo, err = c.In(echoIn.Index())
		return err
	}); err != nil {
		return fmt.Errorf("bulk in: %w", err)
	}
	if !bytes.Equal(echo, msg) {
		return fmt.Errorf("echo mismatch: sent %q, received %q", msg, echo)
	}
	fmt.Fprintf(out, "echo %q\n", echo)
	return nil
}
