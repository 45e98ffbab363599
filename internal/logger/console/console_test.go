package console

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Params{Output: &buf})

	l.Debug("hidden")
	l.Info("shown", "regions", 16)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered at info level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "regions=16") {
		t.Errorf("info line missing: %q", out)
	}
}

func TestDebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	l := New(Params{Output: &buf, Debug: true})
	l.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug output, got %q", buf.String())
	}
}
