package pkg

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	defer SetLogLevel(original)

	tests := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogLevel(tt.level)
			if got := GetLogLevel(); got != tt.level {
				t.Errorf("GetLogLevel() = %v, want %v", got, tt.level)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger.Info("fifo assigned", "component", string(ComponentAlloc), "ep", 2)

	out := buf.String()
	for _, want := range []string{"msg=\"fifo assigned\"", "component=alloc", "ep=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output %q missing %q", out, want)
		}
	}
}

func TestNewLoggerDefaultLevel(t *testing.T) {
	original := GetLogLevel()
	defer SetLogLevel(original)
	SetLogLevel(slog.LevelWarn)

	var buf bytes.Buffer
	logger := NewLogger(&buf, nil)
	logger.Info("suppressed")
	logger.Warn("setup end")
	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("info record written at the default level: %s", out)
	}
	if !strings.Contains(out, "setup end") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger.Info("phase change", "component", string(ComponentControl), "phase", "data-in")

	out := buf.String()
	for _, want := range []string{`"msg":"phase change"`, `"component":"control"`, `"phase":"data-in"`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON output %q missing %s", out, want)
		}
	}
}

func TestLogDebug(t *testing.T) {
	var buf bytes.Buffer
	original := DefaultLogger
	defer func() { DefaultLogger = original }()

	SetLogLevel(slog.LevelDebug)
	SetLogger(NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogDebug(ComponentAlloc, "debug message", "key", "value")
	output := buf.String()
	if !strings.Contains(output, "debug message") {
		t.Errorf("debug log missing message: %s", output)
	}
	if !strings.Contains(output, "component=alloc") {
		t.Errorf("debug log missing component: %s", output)
	}
}

func TestLogInfo(t *testing.T) {
	var buf bytes.Buffer
	original := DefaultLogger
	defer func() { DefaultLogger = original }()

	SetLogLevel(slog.LevelDebug)
	defer SetLogLevel(slog.LevelWarn)
	SetLogger(NewLogger(&buf, nil))

	LogInfo(ComponentBus, "info message")
	output := buf.String()
	if !strings.Contains(output, "info message") {
		t.Errorf("info log missing message: %s", output)
	}
	if !strings.Contains(output, "component=bus") {
		t.Errorf("info log missing component: %s", output)
	}
}

func TestLogWarn(t *testing.T) {
	var buf bytes.Buffer
	original := DefaultLogger
	defer func() { DefaultLogger = original }()

	SetLogger(NewLogger(&buf, nil))

	LogWarn(ComponentControl, "warn message")
	output := buf.String()
	if !strings.Contains(output, "warn message") {
		t.Errorf("warn log missing message: %s", output)
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	original := DefaultLogger
	defer func() { DefaultLogger = original }()

	SetLogger(NewLogger(&buf, nil))

	LogError(ComponentHAL, "error message")
	output := buf.String()
	if !strings.Contains(output, "error message") {
		t.Errorf("error log missing message: %s", output)
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	original := DefaultLogger
	defer func() { DefaultLogger = original }()

	customLogger := NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	SetLogger(customLogger)

	LogInfo(ComponentDriver, "custom logger test")
	if !strings.Contains(buf.String(), "custom logger test") {
		t.Error("custom logger not used")
	}
}

func TestSetLoggerNil(t *testing.T) {
	original := DefaultLogger
	defer func() { DefaultLogger = original }()

	SetLogger(nil)
	if DefaultLogger == nil {
		t.Fatal("SetLogger(nil) left a nil logger")
	}
	// Must not panic.
	LogError(ComponentIRQ, "discarded")
}

func TestEnabled(t *testing.T) {
	original := DefaultLogger
	originalLevel := GetLogLevel()
	defer func() {
		DefaultLogger = original
		SetLogLevel(originalLevel)
	}()

	var buf bytes.Buffer
	SetLogLevel(slog.LevelWarn)
	SetLogger(NewLogger(&buf, nil))

	if Enabled(slog.LevelDebug) {
		t.Error("Enabled(Debug) = true at warn level")
	}
	if !Enabled(slog.LevelError) {
		t.Error("Enabled(Error) = false at warn level")
	}

	SetLogLevel(slog.LevelDebug)
	if !Enabled(slog.LevelDebug) {
		t.Error("Enabled(Debug) = false after SetLogLevel(Debug)")
	}
}

func TestSetLogOutput(t *testing.T) {
	original := DefaultLogger
	originalLevel := GetLogLevel()
	defer func() {
		DefaultLogger = original
		SetLogLevel(originalLevel)
	}()
	SetLogLevel(slog.LevelInfo)

	tests := []struct {
		name   string
		format LogFormat
		want   string
	}{
		{"text", LogFormatText, "component=regs"},
		{"json", LogFormatJSON, `"component":"regs"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetLogOutput(&buf, tt.format)
			LogInfo(ComponentRegs, "output test")
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want substring %q", buf.String(), tt.want)
			}
		})
	}
}

func TestParseLogFormat(t *testing.T) {
	tests := []struct {
		name   string
		want   LogFormat
		wantOK bool
	}{
		{"", LogFormatText, true},
		{"text", LogFormatText, true},
		{"json", LogFormatJSON, true},
		{"yaml", LogFormatText, false},
	}

	for _, tt := range tests {
		got, ok := ParseLogFormat(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseLogFormat(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}
