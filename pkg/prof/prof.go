// Package prof records runtime profiles around a driver run.
//
// A [Session] starts CPU profiling and enables block and mutex sampling as
// requested by its [Config]. Stop ends CPU profiling and writes the snapshot
// profiles:
//
//	s, err := prof.Start(prof.Config{CPU: "cpu.prof", Mutex: "mutex.prof"})
//	...
//	defer s.Stop()
package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
)

// ErrActive indicates a session is already running.
var ErrActive = errors.New("profiling session already active")

// Profile names a pprof snapshot profile.
type Profile string

// Snapshot profiles.
const (
	ProfileHeap      Profile = "heap"
	ProfileAllocs    Profile = "allocs"
	ProfileGoroutine Profile = "goroutine"
	ProfileBlock     Profile = "block"
	ProfileMutex     Profile = "mutex"
)

// Config names the output file of each profile. Empty paths are skipped.
type Config struct {
	CPU       string
	Heap      string
	Goroutine string
	Block     string
	Mutex     string
}

// Enabled reports whether any profile is requested.
func (c Config) Enabled() bool {
	return c != Config{}
}

// Session is an active profiling run.
type Session struct {
	cfg Config
	cpu *os.File
}

var (
	mu     sync.Mutex
	active *Session
)

// Start begins a session. Only one session may run at a time.
func Start(cfg Config) (*Session, error) {
	mu.Lock()
	defer mu.Unlock()
	if active != nil {
		return nil, ErrActive
	}

	s := &Session{cfg: cfg}
	if cfg.CPU != "" {
		f, err := os.Create(cfg.CPU)
		if err != nil {
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		s.cpu = f
	}
	if cfg.Block != "" {
		runtime.SetBlockProfileRate(1)
	}
	if cfg.Mutex != "" {
		runtime.SetMutexProfileFraction(1)
	}
	active = s
	return s, nil
}

// Stop ends the session and writes the requested snapshots. It returns the
// first error encountered; later profiles are still written.
func (s *Session) Stop() error {
	mu.Lock()
	defer mu.Unlock()
	if active != s {
		return nil
	}
	active = nil

	var errs []error
	if s.cpu != nil {
		pprof.StopCPUProfile()
		errs = append(errs, s.cpu.Close())
	}
	if s.cfg.Heap != "" {
		runtime.GC()
		errs = append(errs, write(ProfileHeap, s.cfg.Heap))
	}
	if s.cfg.Goroutine != "" {
		errs = append(errs, write(ProfileGoroutine, s.cfg.Goroutine))
	}
	if s.cfg.Block != "" {
		errs = append(errs, write(ProfileBlock, s.cfg.Block))
		runtime.SetBlockProfileRate(0)
	}
	if s.cfg.Mutex != "" {
		errs = append(errs, write(ProfileMutex, s.cfg.Mutex))
		runtime.SetMutexProfileFraction(0)
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func write(p Profile, path string) error {
	pp := pprof.Lookup(string(p))
	if pp == nil {
		return fmt.Errorf("%s profile: unknown", p)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%s profile: %w", p, err)
	}
	if err := pp.WriteTo(f, 0); err != nil {
		f.Close()
		return fmt.Errorf("%s profile: %w", p, err)
	}
	return f.Close()
}
