package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestWithPrefixTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	InitConsole(&buf)
	defer func() { Logger = nil }()

	WithPrefix("NVD").Warn("fetch failed", "error", "boom")

	out := buf.String()
	if !strings.Contains(out, "NVD") {
		t.Errorf("expected prefixed output, got %q", out)
	}
	if !strings.Contains(out, "fetch failed") {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestWithPrefixBeforeInit(t *testing.T) {
	Logger = nil

	l := WithPrefix("orphan")
	if l == nil {
		t.Fatal("expected a usable logger before Init")
	}
	l.Info("discarded quietly")
}
