package logger

import (
	"fmt"
	"testing"
)

type recorder struct {
	lines []string
}

func (r *recorder) rec(level, msg string, kv ...any) {
	r.lines = append(r.lines, fmt.Sprintf("%s %s %v", level, msg, kv))
}

func (r *recorder) Debug(msg string, kv ...any) { r.rec("DEBUG", msg, kv...) }
func (r *recorder) Info(msg string, kv ...any)  { r.rec("INFO", msg, kv...) }
func (r *recorder) Warn(msg string, kv ...any)  { r.rec("WARN", msg, kv...) }
func (r *recorder) Error(msg string, kv ...any) { r.rec("ERROR", msg, kv...) }

func TestNoBackendIsNoop(t *testing.T) {
	Reset()
	Info("nothing happens", "k", 1)
}

func TestDispatchToAllBackends(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	defer Reset()

	Info("built graph", "nodes", 3)
	Warn("geocoder unavailable")

	for _, r := range []*recorder{a, b} {
		if len(r.lines) != 2 {
			t.Fatalf("expected 2 lines, got %d: %v", len(r.lines), r.lines)
		}
		if r.lines[0] != "INFO built graph [nodes 3]" {
			t.Errorf("unexpected first line %q", r.lines[0])
		}
	}
}
