// Package requirements holds the static capability to equipment table the
// inference engine derives LACKS and COULD_SUPPORT edges from.
package requirements

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed data/requirements.yaml
var requirementsYAML []byte

// Requirement lists the equipment a capability depends on.
type Requirement struct {
	Capability  string   `yaml:"-" json:"capability"`
	Required    []string `yaml:"required" json:"required"`
	Recommended []string `yaml:"recommended" json:"recommended"`
}

// Table maps capability keys to their requirements.
type Table struct {
	byCapability map[string]*Requirement
	keys         []string
}

// Load returns the embedded requirements table.
func Load() (*Table, error) {
	return Parse(requirementsYAML)
}

// Parse decodes a requirements document.
func Parse(data []byte) (*Table, error) {
	raw := make(map[string]*Requirement)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing requirements: %w", err)
	}
	t := &Table{byCapability: raw}
	for capKey, r := range raw {
		if r == nil {
			r = &Requirement{}
			raw[capKey] = r
		}
		r.Capability = capKey
		t.keys = append(t.keys, capKey)
	}
	sort.Strings(t.keys)
	return t, nil
}

// New builds a table from explicit requirements. Used by tests and callers
// that assemble rules programmatically.
func New(reqs ...Requirement) *Table {
	t := &Table{byCapability: make(map[string]*Requirement, len(reqs))}
	for i := range reqs {
		r := reqs[i]
		t.byCapability[r.Capability] = &r
		t.keys = append(t.keys, r.Capability)
	}
	sort.Strings(t.keys)
	return t
}

// Capabilities returns all capability keys in sorted order.
func (t *Table) Capabilities() []string {
	return t.keys
}

// Get returns the requirement entry for a capability.
func (t *Table) Get(capability string) (*Requirement, bool) {
	r, ok := t.byCapability[capability]
	return r, ok
}

// Required returns the required equipment for a capability, or nil.
func (t *Table) Required(capability string) []string {
	if r, ok := t.byCapability[capability]; ok {
		return r.Required
	}
	return nil
}

// Validate checks that every key in the table is known to the given
// predicates.
func (t *Table) Validate(isCapability, isEquipment func(string) bool) error {
	for _, capKey := range t.keys {
		if !isCapability(capKey) {
			return fmt.Errorf("requirements: unknown capability %q", capKey)
		}
		r := t.byCapability[capKey]
		for _, eq := range append(append([]string{}, r.Required...), r.Recommended...) {
			if !isEquipment(eq) {
				return fmt.Errorf("requirements: capability %q references unknown equipment %q", capKey, eq)
			}
		}
	}
	return nil
}
