// Package pkg provides shared utilities for the musb driver.
//
// This package contains common functionality used by the register layer,
// the device-mode driver core and its framework adapters:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error values for allocation, transfer and protocol failures
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with driver-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogDebug(pkg.ComponentAlloc, "endpoint allocated", "index", 1)
//
// # Errors
//
// Errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrEpUsed) {
//	    // Pick another endpoint index
//	}
package pkg
