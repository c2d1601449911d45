package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"", InfoLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"fatal", FatalLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestDefaultLoggerJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewJSONLogger(&buf)
	child := l.WithFields(Fields{"component": "stft"})
	child.Info("ready", Fields{"num_bins": 257})
	child.Error(errors.New("bad shape"), "forward failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["msg"] != "ready" || rec["component"] != "stft" || rec["num_bins"] != float64(257) {
		t.Errorf("record = %v", rec)
	}

	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["level"] != "ERROR" || rec["error"] != "bad shape" {
		t.Errorf("error record = %v", rec)
	}
}

func TestDefaultLoggerLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewTextLogger(&buf)
	child := l.WithFields(Fields{"component": "mel"})

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info: %q", buf.String())
	}

	// children share the parent's level
	l.SetLevel(DebugLevel)
	child.Debug("shown")
	if !strings.Contains(buf.String(), "shown") || !strings.Contains(buf.String(), "component=mel") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestDefaultLoggerFatalExits(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewTextLogger(&buf)
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal(errors.New("disk gone"), "cannot continue")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(buf.String(), "level=FATAL") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewTextLogger(&buf)

	ctx := ContextWithFields(context.Background(), Fields{"utt": "a01"})
	ctx = ContextWithFields(ctx, Fields{"worker": 3})
	l.WithContext(ctx).Info("done")

	out := buf.String()
	if !strings.Contains(out, "utt=a01") || !strings.Contains(out, "worker=3") {
		t.Fatalf("output = %q", out)
	}
}

func TestNoOpLogger(t *testing.T) {
	t.Parallel()

	var l Logger = &NoOpLogger{}
	if l.WithFields(Fields{"a": 1}) != l {
		t.Fatal("NoOpLogger.WithFields should return itself")
	}
	l.Fatal(errors.New("ignored"), "ignored")
}
