package query

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sharckhai/neo-command/internal/geo"
	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/vocab"
)

// Summary holds graph-wide counts.
type Summary struct {
	TotalNodes int                    `json:"total_nodes"`
	TotalEdges int                    `json:"total_edges"`
	NodeCounts map[graph.NodeType]int `json:"node_counts"`
	EdgeCounts map[graph.EdgeType]int `json:"edge_counts"`
}

// GraphSummary returns node and edge counts by type.
func (e *Engine) GraphSummary() Summary {
	return Summary{
		TotalNodes: e.g.NumNodes(),
		TotalEdges: e.g.NumEdges(),
		NodeCounts: e.g.NodeCounts(),
		EdgeCounts: e.g.EdgeCounts(),
	}
}

// Overview scopes.
const (
	ScopeNational  = "national"
	ScopeRegion    = "region"
	ScopeSpecialty = "specialty"
)

var scopes = []string{ScopeNational, ScopeRegion, ScopeSpecialty}

const topSpecialties = 15

// OverviewResult is the result of Overview. Exactly one of the scoped
// sections is set.
type OverviewResult struct {
	Scope          string                   `json:"scope"`
	Stats          *Summary                 `json:"graph_stats,omitempty"`
	Population     int                      `json:"population,omitempty"`
	PopPerFacility int                      `json:"population_per_facility,omitempty"`
	Regions        []RegionSummary          `json:"regions,omitempty"`
	TopSpecialties []SpecialtyCount         `json:"top_specialties,omitempty"`
	Region         *RegionDetail            `json:"region,omitempty"`
	Specialty      *SpecialtyOverviewResult `json:"specialty,omitempty"`
}

// Overview explores the landscape at national, region or specialty scope.
// Region and specialty scopes need key.
func (e *Engine) Overview(scope, key string) (*OverviewResult, error) {
	res := &OverviewResult{Scope: scope}
	switch scope {
	case ScopeNational:
		s := e.GraphSummary()
		res.Stats = &s
		res.Population = e.country.TotalPopulation()
		res.PopPerFacility = int(geo.Round(float64(res.Population)/float64(max(s.NodeCounts[graph.NodeFacility], 1)), 0))
		res.Regions = e.ListRegions()
		specs := e.ListSpecialties()
		res.TopSpecialties = specs[:min(topSpecialties, len(specs))]
	case ScopeRegion:
		if key == "" {
			return nil, missing("key")
		}
		d, err := e.RegionDetails(key)
		if err != nil {
			return nil, err
		}
		res.Region = d
	case ScopeSpecialty:
		if key == "" {
			return nil, missing("key")
		}
		s, err := e.SpecialtyOverview(key)
		if err != nil {
			return nil, err
		}
		res.Specialty = s
	case "":
		return nil, missing("scope")
	default:
		return nil, invalid("scope", scope, scopes)
	}
	return res, nil
}

// Term domains for ResolveTerms and ListVocabulary.
const (
	DomainCapabilities = "capabilities"
	DomainEquipment    = "equipment"
	DomainSpecialties  = "specialties"
)

var termDomains = []string{DomainCapabilities, DomainEquipment, DomainSpecialties}

// Retrieval strategies chosen by ResolveTerms.
const (
	StrategyGraph   = "graph"
	StrategyRawText = "raw_text"
	StrategyMixed   = "mixed"
)

// Coverage ratio bounds for the retrieval strategy.
const (
	graphCoverage   = 0.7
	rawTextCoverage = 0.2
)

// Specialty term scores.
const (
	specialtyExact     = 0.9
	specialtySubstring = 0.7
)

// VocabItem is one canonical term.
type VocabItem struct {
	Key      string `json:"key"`
	Display  string `json:"display"`
	Category string `json:"category,omitempty"`
}

// Vocabulary lists canonical terms per domain.
type Vocabulary struct {
	Capabilities []VocabItem `json:"capabilities,omitempty"`
	Equipment    []VocabItem `json:"equipment,omitempty"`
	Specialties  []VocabItem `json:"specialties,omitempty"`
}

// ListVocabulary lists the canonical terms of one domain, or all domains
// when domain is empty. Specialties come from the graph.
func (e *Engine) ListVocabulary(domain string) (*Vocabulary, error) {
	if domain != "" && !contains(termDomains, domain) {
		return nil, invalid("domain", domain, termDomains)
	}
	v := &Vocabulary{}
	items := func(d vocab.Domain) []VocabItem {
		var out []VocabItem
		for _, en := range e.vocab.Entries(d) {
			out = append(out, VocabItem{Key: en.Key, Display: en.Display, Category: en.Category})
		}
		return out
	}
	if domain == "" || domain == DomainCapabilities {
		v.Capabilities = items(vocab.Capabilities)
	}
	if domain == "" || domain == DomainEquipment {
		v.Equipment = items(vocab.Equipment)
	}
	if domain == "" || domain == DomainSpecialties {
		for _, s := range e.g.Nodes(graph.NodeSpecialty) {
			v.Specialties = append(v.Specialties, VocabItem{Key: graph.KeyOf(s.ID), Display: s.Name()})
		}
		sort.Slice(v.Specialties, func(i, j int) bool { return v.Specialties[i].Key < v.Specialties[j].Key })
	}
	return v, nil
}

// TermMatch maps one user term to a canonical key.
type TermMatch struct {
	Term       string  `json:"term"`
	Key        string  `json:"key"`
	Confidence float64 `json:"confidence"`
	Domain     string  `json:"domain"`
}

// Resolution is the result of ResolveTerms.
type Resolution struct {
	Mapped     []TermMatch `json:"mapped"`
	Unmapped   []string    `json:"unmapped"`
	Coverage   float64     `json:"coverage_ratio"`
	Strategy   string      `json:"strategy"`
	Vocabulary *Vocabulary `json:"vocabulary,omitempty"`
}

var camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

type specialtyTerm struct {
	term, key string
}

// specialtyIndex returns lowercase lookup terms for every specialty node,
// sorted for deterministic substring matching.
func (e *Engine) specialtyIndex() []specialtyTerm {
	seen := make(map[string]bool)
	var out []specialtyTerm
	add := func(term, key string) {
		if term != "" && !seen[term] {
			seen[term] = true
			out = append(out, specialtyTerm{term, key})
		}
	}
	for _, s := range e.g.Nodes(graph.NodeSpecialty) {
		key := graph.KeyOf(s.ID)
		add(strings.ToLower(key), key)
		add(strings.ToLower(camelBoundary.ReplaceAllString(key, "$1 $2")), key)
		add(strings.ToLower(s.Name()), key)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].term < out[j].term })
	return out
}

func matchSpecialty(term string, index []specialtyTerm) (string, float64, bool) {
	t := strings.ToLower(strings.TrimSpace(term))
	if t == "" {
		return "", 0, false
	}
	for _, st := range index {
		if st.term == t {
			return st.key, specialtyExact, true
		}
	}
	for _, st := range index {
		if strings.Contains(st.term, t) || strings.Contains(t, st.term) {
			return st.key, specialtySubstring, true
		}
	}
	return "", 0, false
}

// ResolveTerms maps natural-language terms onto capability, equipment and
// specialty keys and picks a retrieval strategy from the share of terms
// mapped: graph at 0.7 or more, raw_text at 0.2 or less, otherwise mixed.
func (e *Engine) ResolveTerms(terms []string, domain string, showVocabulary bool) (*Resolution, error) {
	if len(terms) == 0 {
		return nil, missing("terms")
	}
	if domain != "" && !contains(termDomains, domain) {
		return nil, invalid("domain", domain, termDomains)
	}
	want := func(d string) bool { return domain == "" || domain == d }
	index := e.specialtyIndex()

	res := &Resolution{Mapped: []TermMatch{}, Unmapped: []string{}}
	for _, term := range terms {
		var found []TermMatch
		if want(DomainCapabilities) {
			for _, k := range e.vocab.Match(vocab.Capabilities, term) {
				found = append(found, TermMatch{term, k, vocab.PhraseConfidence, DomainCapabilities})
			}
		}
		if want(DomainEquipment) {
			for _, k := range e.vocab.Match(vocab.Equipment, term) {
				found = append(found, TermMatch{term, k, vocab.PhraseConfidence, DomainEquipment})
			}
		}
		if want(DomainSpecialties) {
			if k, conf, ok := matchSpecialty(term, index); ok {
				found = append(found, TermMatch{term, k, conf, DomainSpecialties})
			}
		}
		if len(found) == 0 {
			res.Unmapped = append(res.Unmapped, term)
			continue
		}
		res.Mapped = append(res.Mapped, found...)
	}

	ratio := float64(len(terms)-len(res.Unmapped)) / float64(len(terms))
	res.Coverage = geo.Round(ratio, 2)
	switch {
	case ratio >= graphCoverage:
		res.Strategy = StrategyGraph
	case ratio <= rawTextCoverage:
		res.Strategy = StrategyRawText
	default:
		res.Strategy = StrategyMixed
	}

	if showVocabulary {
		v, err := e.ListVocabulary(domain)
		if err != nil {
			return nil, err
		}
		res.Vocabulary = v
	}
	return res, nil
}
