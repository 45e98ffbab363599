// Package vocab maps free-text equipment and capability mentions onto the
// canonical vocabulary the graph reasons about.
package vocab

import (
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

//go:embed data/vocabulary.yaml
var vocabularyYAML []byte

// Domain selects one of the two canonical tables.
type Domain string

const (
	Equipment    Domain = "equipment"
	Capabilities Domain = "capabilities"
)

// Valid reports whether d names a known table.
func (d Domain) Valid() bool {
	return d == Equipment || d == Capabilities
}

// Phrase-match and fallback confidences.
const (
	PhraseConfidence   = 0.8
	FallbackConfidence = 0.6
)

// Entry is one canonical vocabulary item.
type Entry struct {
	Key        string   `yaml:"-" json:"key"`
	Display    string   `yaml:"display" json:"display_name"`
	Category   string   `yaml:"category" json:"category"`
	Complexity string   `yaml:"complexity,omitempty" json:"complexity,omitempty"`
	Aliases    []string `yaml:"aliases" json:"aliases,omitempty"`
}

type aliasPattern struct {
	alias string
	key   string
	re    *regexp.Regexp
}

type table struct {
	entries map[string]*Entry
	keys    []string
	index   []aliasPattern
}

// Vocabulary holds both canonical tables and their compiled alias indexes.
type Vocabulary struct {
	tables  map[Domain]*table
	version string
}

type document struct {
	Equipment    map[string]*Entry `yaml:"equipment"`
	Capabilities map[string]*Entry `yaml:"capabilities"`
}

// Load returns the embedded canonical vocabulary.
func Load() (*Vocabulary, error) {
	return Parse(vocabularyYAML)
}

// Parse decodes and indexes a vocabulary document.
func Parse(data []byte) (*Vocabulary, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing vocabulary: %w", err)
	}
	if len(doc.Equipment) == 0 || len(doc.Capabilities) == 0 {
		return nil, fmt.Errorf("vocabulary must define equipment and capabilities")
	}

	v := &Vocabulary{tables: map[Domain]*table{
		Equipment:    buildTable(doc.Equipment),
		Capabilities: buildTable(doc.Capabilities),
	}}

	keys := append(append([]string{}, v.tables[Equipment].keys...), v.tables[Capabilities].keys...)
	raw, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("encoding vocabulary keys: %w", err)
	}
	sum := blake2b.Sum256(raw)
	v.version = hex.EncodeToString(sum[:])[:8]
	return v, nil
}

// buildTable indexes aliases longest-first so specific phrases win over
// their substrings. Each alias also matches with an "s" or "es" suffix.
func buildTable(entries map[string]*Entry) *table {
	t := &table{entries: entries}
	for key, e := range entries {
		e.Key = key
		t.keys = append(t.keys, key)
	}
	sort.Strings(t.keys)

	for _, key := range t.keys {
		for _, alias := range entries[key].Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias == "" {
				continue
			}
			t.index = append(t.index, aliasPattern{
				alias: alias,
				key:   key,
				re:    regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(alias) + `(?:e?s)?\b`),
			})
		}
	}
	sort.SliceStable(t.index, func(i, j int) bool {
		return len(t.index[i].alias) > len(t.index[j].alias)
	})
	return t
}

// Version identifies the key set. Cached classifications made under a
// different version are ignored.
func (v *Vocabulary) Version() string {
	return v.version
}

// Keys returns the sorted canonical keys of a table.
func (v *Vocabulary) Keys(d Domain) []string {
	t, ok := v.tables[d]
	if !ok {
		return nil
	}
	return t.keys
}

// Entry looks up a canonical entry.
func (v *Vocabulary) Entry(d Domain, key string) (*Entry, bool) {
	t, ok := v.tables[d]
	if !ok {
		return nil, false
	}
	e, ok := t.entries[key]
	return e, ok
}

// Has reports whether key is canonical in d.
func (v *Vocabulary) Has(d Domain, key string) bool {
	_, ok := v.Entry(d, key)
	return ok
}

// Entries returns all entries of a table in key order.
func (v *Vocabulary) Entries(d Domain) []*Entry {
	t, ok := v.tables[d]
	if !ok {
		return nil
	}
	out := make([]*Entry, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.entries[k])
	}
	return out
}

// Match returns every canonical key whose alias occurs in text, each once,
// in alias-length order.
func (v *Vocabulary) Match(d Domain, text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	t, ok := v.tables[d]
	if !ok {
		return nil
	}
	var found []string
	seen := make(map[string]bool)
	for _, p := range t.index {
		if seen[p.key] {
			continue
		}
		if p.re.MatchString(text) {
			seen[p.key] = true
			found = append(found, p.key)
		}
	}
	return found
}

// TextKey is the cache key for a raw phrase: a blake2b digest of the
// lowercased, trimmed text.
func TextKey(raw string) string {
	sum := blake2b.Sum256([]byte(strings.ToLower(strings.TrimSpace(raw))))
	return hex.EncodeToString(sum[:])
}
