package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/ardnew/musb/profile"
)

var (
	profilesCommand = &cli.Command{
		Name:   "profiles",
		Usage:  "Lists the builtin controller profiles",
		Action: listProfiles,
	}
	showCommand = &cli.Command{
		Name:      "show",
		Usage:     "Prints a builtin or file profile",
		ArgsUsage: "<name|file>",
		Action:    showProfile,
		Flags:     []cli.Flag{formatFlag},
	}
	validateCommand = &cli.Command{
		Name:      "validate",
		Usage:     "Checks a profile file",
		ArgsUsage: "<file>",
		Action:    validateProfile,
	}
)

var formatFlag = &cli.StringFlag{
	Name:  "format",
	Usage: "Output encoding (yaml, toml)",
	Value: "yaml",
}

func parseFormat(name string) (profile.Format, error) {
	switch name {
	case "yaml", "yml":
		return profile.FormatYAML, nil
	case "toml":
		return profile.FormatTOML, nil
	}
	return 0, fmt.Errorf("unknown format %q", name)
}

func listProfiles(ctx *cli.Context) error {
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLAYOUT\tFIFO\tENDPOINTS\tDESCRIPTION")
	for _, name := range profile.Builtins() {
		p, err := profile.Builtin(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%d\t%s\n", p.Name, p.Layout, p.FIFO, p.NumEndpoints(), p.Description)
	}
	return w.Flush()
}

func getProfileArg(ctx *cli.Context) (*profile.Profile, error) {
	if ctx.NArg() != 1 {
		return nil, fmt.Errorf("need exactly one profile argument")
	}
	return profile.Resolve(ctx.Args().First())
}

func showProfile(ctx *cli.Context) error {
	f, err := parseFormat(ctx.String(formatFlag.Name))
	if err != nil {
		return err
	}
	p, err := getProfileArg(ctx)
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

func validateProfile(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("need exactly one profile file")
	}
	path := ctx.Args().First()
	p, err := profile.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "%s: profile %q ok, %d endpoints\n", path, p.Name, p.NumEndpoints())
	return nil
}
