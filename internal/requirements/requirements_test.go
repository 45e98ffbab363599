package requirements_test

import (
	"reflect"
	"testing"

	"github.com/sharckhai/neo-command/internal/requirements"
	"github.com/sharckhai/neo-command/internal/vocab"
)

func TestLoad(t *testing.T) {
	tbl, err := requirements.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if n := len(tbl.Capabilities()); n != 35 {
		t.Errorf("expected 35 capabilities, got %d", n)
	}

	want := []string{"operating_theatre", "anesthesia_machine", "autoclave", "blood_bank", "patient_monitor"}
	if got := tbl.Required("cesarean_section"); !reflect.DeepEqual(got, want) {
		t.Errorf("cesarean_section required = %v, want %v", got, want)
	}
	if got := tbl.Required("vaccination"); len(got) != 0 {
		t.Errorf("vaccination should require nothing, got %v", got)
	}
	if got := tbl.Required("no_such_capability"); got != nil {
		t.Errorf("unknown capability should return nil, got %v", got)
	}
}

func TestTableMatchesVocabulary(t *testing.T) {
	tbl, err := requirements.Load()
	if err != nil {
		t.Fatal(err)
	}
	v, err := vocab.Load()
	if err != nil {
		t.Fatal(err)
	}
	err = tbl.Validate(
		func(k string) bool { return v.Has(vocab.Capabilities, k) },
		func(k string) bool { return v.Has(vocab.Equipment, k) },
	)
	if err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestNew(t *testing.T) {
	tbl := requirements.New(
		requirements.Requirement{Capability: "b", Required: []string{"x"}},
		requirements.Requirement{Capability: "a", Required: []string{"y", "z"}},
	)
	if got := tbl.Capabilities(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Capabilities() = %v", got)
	}
	r, ok := tbl.Get("a")
	if !ok || len(r.Required) != 2 {
		t.Errorf("Get(a) = %+v, %v", r, ok)
	}
}
