package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type record struct {
	ID    string   `json:"id"`
	Items []string `json:"items,omitempty"`
}

func TestReadJSONLMissingFile(t *testing.T) {
	got, err := ReadJSONL[record](filepath.Join(t.TempDir(), "missing.jsonl"))
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestWriteReadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "entities.jsonl")
	recs := []record{{ID: "a", Items: []string{"MRI"}}, {ID: "b"}}

	if err := WriteJSONL(path, recs); err != nil {
		t.Fatalf("WriteJSONL() error = %v", err)
	}
	if err := AppendJSONL(path, record{ID: "c"}); err != nil {
		t.Fatalf("AppendJSONL() error = %v", err)
	}

	got, err := ReadJSONL[record](path)
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if len(got) != 3 || got[0].Items[0] != "MRI" || got[2].ID != "c" {
		t.Errorf("unexpected records %+v", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}
}

func TestReadJSONLSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\":\"a\"}\n\n{\"id\":\"b\"}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadJSONL[record](path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %d records, want 2", len(got))
	}
}

func TestReadJSONLReportsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\":\"a\"}\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := ReadJSONL[record](path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if want := "parsing line 2"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q should mention %q", err, want)
	}
}
