package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"periph.io/x/periph/host"

	"github.com/ardnew/musb/profile"
	"github.com/ardnew/musb/regs"
	"github.com/ardnew/musb/regs/mmio"
)

var readconfCommand = &cli.Command{
	Name:  "readconf",
	Usage: "Reads the configuration registers of a controller through /dev/mem",
	Description: `Maps the controller register window and decodes CONFIGDATA, FIFOSIZE,
EPINFO and RAMINFO. With --emit, prints the profile derived from them.`,
	Action: readConfig,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "base",
			Usage: "Physical base address of the register window",
		},
		&cli.StringFlag{
			Name:  "layout",
			Usage: "Register layout (std, mini)",
			Value: "std",
		},
		&cli.StringFlag{
			Name:  "profile",
			Usage: "Take base address and layout from this profile",
		},
		&cli.StringFlag{
			Name:  "emit",
			Usage: "Print the derived profile in this encoding (yaml, toml)",
		},
	},
}

func readConfig(ctx *cli.Context) error {
	var (
		base   uint64
		layout = ctx.String("layout")
		name   = "hardware"
	)
	if s := ctx.String("profile"); s != "" {
		p, err := profile.Resolve(s)
		if err != nil {
			return err
		}
		base, layout, name = p.BaseAddress, p.Layout, p.Name
	}
	if s := ctx.String("base"); s != "" {
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid base address %q: %v", s, err)
		}
		base = v
	}
	if base == 0 {
		return fmt.Errorf("no base address; use --base or --profile")
	}
	l, ok := regs.LayoutByName(layout)
	if !ok {
		return fmt.Errorf("unknown layout %q", layout)
	}

	if _, err := host.Init(); err != nil {
		return err
	}
	w, err := mmio.MapLayout(base, l)
	if err != nil {
		return err
	}
	defer w.Close()

	cfg, err := profile.ReadCoreConfig(regs.New(w, l))
	if err != nil {
		return err
	}
	printCoreConfig(ctx, cfg)

	if enc := ctx.String("emit"); enc != "" {
		f, err := parseFormat(enc)
		if err != nil {
			return err
		}
		p, err := cfg.Profile(name, l)
		if err != nil {
			return err
		}
		data, err := profile.Marshal(p, f)
		if err != nil {
			return err
		}
		_, err = ctx.App.Writer.Write(data)
		return err
	}
	return nil
}

func printCoreConfig(ctx *cli.Context, c *profile.CoreConfig) {
	w := ctx.App.Writer
	fmt.Fprintf(w, "dynamic FIFO:    %v\n", c.DynamicFIFO)
	fmt.Fprintf(w, "soft connect:    %v\n", c.SoftConnect)
	fmt.Fprintf(w, "big endian:      %v\n", c.BigEndian)
	fmt.Fprintf(w, "UTMI+ 16-bit:    %v\n", c.UTMIWide)
	fmt.Fprintf(w, "bulk split/amal: %v/%v\n", c.MPTx, c.MPRx)
	fmt.Fprintf(w, "HB ISO tx/rx:    %v/%v\n", c.HBTx, c.HBRx)
	if c.EPInfoZero {
		fmt.Fprintln(w, "endpoints:       EPINFO reads zero")
	} else {
		fmt.Fprintf(w, "endpoints:       %d tx, %d rx\n", c.TxEndpoints, c.RxEndpoints)
	}
	if c.RAMInfoZero {
		fmt.Fprintln(w, "FIFO RAM:        RAMINFO reads zero")
	} else {
		fmt.Fprintf(w, "FIFO RAM:        %d bytes, %d DMA channels\n", c.RAMSize(), c.DMAChannels)
	}
	for i := 1; i < c.NumEndpoints(); i++ {
		rx := strconv.Itoa(int(c.RxFIFOSizes[i]))
		if c.RxFIFOSizes[i] == profile.SharedFIFO {
			rx = "shared"
		}
		fmt.Fprintf(w, "  ep%-2d FIFO tx %5d  rx %6s\n", i, c.TxFIFOSizes[i], rx)
	}
}
