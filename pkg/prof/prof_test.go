package prof

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Error("zero Config is enabled")
	}
	if !(Config{Heap: "heap.prof"}).Enabled() {
		t.Error("Config with a heap path is not enabled")
	}
}

func TestSession(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CPU:       filepath.Join(dir, "cpu.prof"),
		Heap:      filepath.Join(dir, "heap.prof"),
		Goroutine: filepath.Join(dir, "goroutine.prof"),
		Block:     filepath.Join(dir, "block.prof"),
		Mutex:     filepath.Join(dir, "mutex.prof"),
	}

	s, err := Start(cfg)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := Start(Config{}); !errors.Is(err, ErrActive) {
		t.Errorf("second Start() error = %v, want ErrActive", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("repeated Stop() error = %v", err)
	}

	for _, path := range []string{cfg.CPU, cfg.Heap, cfg.Goroutine, cfg.Block, cfg.Mutex} {
		fi, err := os.Stat(path)
		if err != nil {
			t.Errorf("profile %s not written: %v", filepath.Base(path), err)
			continue
		}
		if fi.Size() == 0 {
			t.Errorf("profile %s is empty", filepath.Base(path))
		}
	}

	// A new session may start once the first has stopped.
	s, err = Start(Config{})
	if err != nil {
		t.Fatalf("Start() after Stop error = %v", err)
	}
	s.Stop()
}

func TestStartBadPath(t *testing.T) {
	_, err := Start(Config{CPU: filepath.Join(t.TempDir(), "missing", "cpu.prof")})
	if err == nil {
		t.Fatal("Start() with unwritable path succeeded")
	}
	s, err := Start(Config{})
	if err != nil {
		t.Fatalf("Start() after failed Start error = %v", err)
	}
	s.Stop()
}
