package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sharckhai/neo-command/internal/vocab"
)

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Params{}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("New() error = %v, want ErrNoAPIKey", err)
	}
	if _, err := New(Params{APIKey: "sk-test"}); err != nil {
		t.Errorf("New() error = %v", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt(vocab.Equipment, []string{"sono machine", "bed"}, []string{"ultrasound", "x_ray"})
	for _, want := range []string{
		"classifying medical equipment terms",
		`"ultrasound"`,
		"1. sono machine\n2. bed\n",
		"JSON object",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestParseResponse(t *testing.T) {
	items := []string{"sono machine", "bed", "scanner", "missing"}
	candidates := []string{"ultrasound", "ct_scanner"}

	tests := []struct {
		name     string
		response string
	}{
		{"plain", `{"sono machine": "ultrasound", "bed": null, "scanner": "NONE"}`},
		{"fenced", "```json\n{\"sono machine\": \"ultrasound\", \"bed\": \"hospital_bed\"}\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse(tt.response, items, candidates)
			if err != nil {
				t.Fatalf("parseResponse() error = %v", err)
			}
			if got["sono machine"] != "ultrasound" {
				t.Errorf("sono machine = %q", got["sono machine"])
			}
			for _, item := range items[1:] {
				if v, ok := got[item]; !ok || v != "" {
					t.Errorf("%s = %q, %v; want explicit no-match", item, v, ok)
				}
			}
		})
	}

	if _, err := parseResponse("not json", items, candidates); err == nil {
		t.Error("expected error for non-JSON response")
	}
}

func TestClassifyRetries(t *testing.T) {
	c := newClassifier(Params{RateLimit: 1000, MaxTries: 3, Backoff: time.Millisecond})
	calls := 0
	c.complete = func(context.Context, string) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("503")
		}
		return `{"echo machine": "ultrasound"}`, nil
	}

	got, err := c.Classify(context.Background(), vocab.Equipment, []string{"echo machine"}, []string{"ultrasound"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got["echo machine"] != "ultrasound" || calls != 2 {
		t.Errorf("Classify() = %v after %d calls", got, calls)
	}
}

func TestClassifyGivesUp(t *testing.T) {
	c := newClassifier(Params{RateLimit: 1000, MaxTries: 2, Backoff: time.Millisecond})
	c.complete = func(context.Context, string) (string, error) {
		return "", errors.New("down")
	}
	if _, err := c.Classify(context.Background(), vocab.Capabilities, []string{"x"}, []string{"y"}); err == nil {
		t.Error("expected error after exhausting retries")
	}
}

func TestClassifyEmpty(t *testing.T) {
	c := newClassifier(Params{})
	c.complete = func(context.Context, string) (string, error) {
		t.Fatal("should not call model for empty batch")
		return "", nil
	}
	got, err := c.Classify(context.Background(), vocab.Equipment, nil, []string{"y"})
	if err != nil || len(got) != 0 {
		t.Errorf("Classify(nil) = %v, %v", got, err)
	}
}
