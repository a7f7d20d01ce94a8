package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestSetFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		_ = SetFormat("text")
		SetLevel("info")
		SetOutput(os.Stderr)
	})

	if err := SetFormat("json"); err != nil {
		t.Fatal(err)
	}
	SetLevel("warn")

	Info("hidden")
	Warn("segment skipped", "line", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.HasPrefix(out, "{") || !strings.Contains(out, "segment skipped") || !strings.Contains(out, `"line"`) {
		t.Errorf("unexpected json output: %q", out)
	}
}

func TestSetFormatUnknown(t *testing.T) {
	if err := SetFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
