package profile

import (
	"fmt"
	"sort"

	"github.com/ardnew/musb/pkg"
)

var builtins = map[string]*Profile{
	"py32f07x": {
		Name:        "py32f07x",
		Description: "Puya PY32F07x, mini MUSB core with fixed FIFOs",
		Layout:      "mini",
		BaseAddress: 0x40005c00,
		FIFO:        FIFOFixed,
		DoubleFlush: true,
		Endpoints: []Endpoint{
			{RXTX, 64},
			{RXTX, 64},
			{RXTX, 128},
			{RXTX, 128},
			{RXTX, 128},
			{RXTX, 512},
		},
	},
	"py32f403": {
		Name:        "py32f403",
		Description: "Puya PY32F403, MUSB core with fixed 64-byte FIFOs",
		Layout:      "std",
		BaseAddress: 0x40005c00,
		FIFO:        FIFOFixed,
		DoubleFlush: true,
		Endpoints:   uniform(8, 64),
	},
	"std-8bep-2048": {
		Name:          "std-8bep-2048",
		Description:   "Generic MUSB core, 8 endpoints, 2048 bytes of dynamic FIFO RAM",
		Layout:        "std",
		FIFO:          FIFODynamic,
		TotalFIFOSize: 2048,
		DoubleFlush:   true,
		Endpoints:     uniform(8, 0),
	},
}

func uniform(n int, size uint16) []Endpoint {
	eps := make([]Endpoint, n)
	for i := range eps {
		eps[i] = Endpoint{Direction: RXTX, FIFOSize: size}
	}
	return eps
}

// Builtin returns a copy of the named builtin profile.
func Builtin(name string) (*Profile, error) {
	p, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", pkg.ErrUnknownProfile, name)
	}
	return p.Clone(), nil
}

// Builtins returns the names of all builtin profiles, sorted.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
