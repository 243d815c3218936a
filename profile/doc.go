// Package profile describes MUSB-based chips.
//
// A Profile carries what the driver needs to know about a controller that
// cannot be discovered at run time on every part: the number of endpoint
// slots, the direction capability and FIFO capacity of each slot, whether
// FIFOs are fixed at synthesis or partitioned by software from shared RAM,
// and which register layout the silicon uses.
//
// Profiles come from three places:
//
//   - Builtins for known parts: py32f07x, py32f403 and std-8bep-2048.
//   - YAML or TOML files, selected by extension:
//
//     name: my-soc
//     layout: std
//     fifo: dynamic
//     total_fifo_size: 4096
//     endpoints:
//     - direction: rxtx
//     - direction: tx
//
//   - The configuration registers of a live core, via ReadCoreConfig.
//
// Every profile is validated before use.
package profile
