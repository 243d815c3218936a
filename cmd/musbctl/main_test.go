package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app.Writer = &buf
	t.Cleanup(func() { app.Writer = os.Stdout })
	err := app.Run(append([]string{"musbctl", "--verbosity", "0"}, args...))
	return buf.String(), err
}

func TestVerbosityLevel(t *testing.T) {
	tests := []struct {
		v    int
		want slog.Level
	}{
		{-1, slog.LevelError},
		{0, slog.LevelError},
		{1, slog.LevelWarn},
		{2, slog.LevelInfo},
		{3, slog.LevelDebug},
		{9, slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := verbosityLevel(tt.v); got != tt.want {
			t.Errorf("verbosityLevel(%d) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestProfilesCommand(t *testing.T) {
	out, err := run(t, "profiles")
	if err != nil {
		t.Fatalf("profiles error = %v", err)
	}
	for _, name := range []string{"py32f07x", "py32f403", "std-8bep-2048"} {
		if !strings.Contains(out, name) {
			t.Errorf("profiles output missing %q:\n%s", name, out)
		}
	}
}

func TestShowValidate(t *testing.T) {
	out, err := run(t, "show", "--format", "toml", "py32f07x")
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	if !strings.Contains(out, `name = "py32f07x"`) {
		t.Fatalf("show output:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "chip.toml")
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, "validate", path)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "ok") {
		t.Errorf("validate output = %q", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("name: x\nlayout: wide\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "validate", bad); err == nil {
		t.Error("validate accepted an invalid profile")
	}
}

func TestSimulate(t *testing.T) {
	for _, tc := range []struct {
		profile string
		mps     string
	}{
		{"py32f403", "64"},
		{"py32f07x", "8"},
		{"std-8bep-2048", "16"},
	} {
		t.Run(tc.profile, func(t *testing.T) {
			out, err := run(t, "simulate", "--profile", tc.profile, "--mps", tc.mps, "--message", "ping")
			if err != nil {
				t.Fatalf("simulate error = %v\n%s", err, out)
			}
			for _, want := range []string{"device descriptor: 12 01", "set address 7", "configured", `echo "ping"`, "device address 7"} {
				if !strings.Contains(out, want) {
					t.Errorf("simulate output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestProfilingFlags(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.prof")
	heap := filepath.Join(dir, "heap.prof")
	if _, err := run(t, "--cpuprofile", cpu, "--memprofile", heap, "profiles"); err != nil {
		t.Fatalf("profiles error = %v", err)
	}
	for _, path := range []string{cpu, heap} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("profile not written: %v", err)
		}
	}
}
