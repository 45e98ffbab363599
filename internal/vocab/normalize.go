package vocab

import (
	"context"
	"strings"
	"sync"

	"github.com/sharckhai/neo-command/internal/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultBatchSize is the number of phrases sent to the classifier per call.
const DefaultBatchSize = 20

// Match is one normalized mention.
type Match struct {
	Key         string  `json:"key"`
	Confidence  float64 `json:"confidence"`
	Raw         string  `json:"raw_text"`
	SourceField string  `json:"source_field,omitempty"`
}

// Cache persists fallback classifications. A stored key of "" records an
// explicit no-match. Implementations must be append-only: Store never
// replaces an existing entry.
type Cache interface {
	Lookup(ctx context.Context, version string, d Domain, textKey string) (key string, found bool, err error)
	Store(ctx context.Context, version string, d Domain, textKey, raw, key string) error
}

// Classifier maps phrases the alias index could not match onto candidate
// keys. Missing or empty answers mean no match.
type Classifier interface {
	Classify(ctx context.Context, d Domain, items []string, candidates []string) (map[string]string, error)
}

// Normalizer turns raw list items into canonical matches.
type Normalizer struct {
	vocab       *Vocabulary
	cache       Cache
	classifier  Classifier
	batchSize   int
	parallelism int
	flight      singleflight.Group
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithCache sets the fallback classification cache.
func WithCache(c Cache) Option {
	return func(n *Normalizer) { n.cache = c }
}

// WithClassifier sets the fallback classifier.
func WithClassifier(c Classifier) Option {
	return func(n *Normalizer) { n.classifier = c }
}

// WithBatchSize sets the classifier batch size.
func WithBatchSize(size int) Option {
	return func(n *Normalizer) {
		if size > 0 {
			n.batchSize = size
		}
	}
}

// WithParallelism bounds concurrent classifier batches during Prime.
func WithParallelism(p int) Option {
	return func(n *Normalizer) {
		if p > 0 {
			n.parallelism = p
		}
	}
}

// NewNormalizer creates a Normalizer. Without a cache, classifications are
// kept in memory for the life of the Normalizer.
func NewNormalizer(v *Vocabulary, opts ...Option) *Normalizer {
	n := &Normalizer{
		vocab:       v,
		batchSize:   DefaultBatchSize,
		parallelism: 4,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.cache == nil {
		n.cache = NewMemoryCache()
	}
	return n
}

// Vocabulary returns the underlying vocabulary.
func (n *Normalizer) Vocabulary() *Vocabulary {
	return n.vocab
}

// MatchText returns phrase matches found anywhere in text.
func (n *Normalizer) MatchText(d Domain, text string) []Match {
	keys := n.vocab.Match(d, text)
	out := make([]Match, 0, len(keys))
	for _, k := range keys {
		out = append(out, Match{Key: k, Confidence: PhraseConfidence, Raw: text})
	}
	return out
}

// NormalizeList normalizes a list of raw items. Phrase matches come first at
// PhraseConfidence. Items with no phrase match go through the cache and then
// the classifier, yielding FallbackConfidence matches. Items that resolve to
// nothing are dropped.
func (n *Normalizer) NormalizeList(ctx context.Context, d Domain, items []string, sourceField string) []Match {
	var out []Match
	var unmatched []string

	for _, raw := range items {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if keys := n.vocab.Match(d, raw); len(keys) > 0 {
			for _, k := range keys {
				out = append(out, Match{Key: k, Confidence: PhraseConfidence, Raw: raw, SourceField: sourceField})
			}
			continue
		}

		key, found := n.lookup(ctx, d, raw)
		switch {
		case !found:
			unmatched = append(unmatched, raw)
		case key != "":
			out = append(out, Match{Key: key, Confidence: FallbackConfidence, Raw: raw, SourceField: sourceField})
		}
	}

	if len(unmatched) == 0 || n.classifier == nil {
		return out
	}

	for start := 0; start < len(unmatched); start += n.batchSize {
		end := min(start+n.batchSize, len(unmatched))
		batch := unmatched[start:end]
		resolved := n.classifyBatch(ctx, d, batch)
		for _, raw := range batch {
			if key := resolved[raw]; key != "" {
				out = append(out, Match{Key: key, Confidence: FallbackConfidence, Raw: raw, SourceField: sourceField})
			}
		}
	}
	return out
}

// Prime classifies every distinct phrase in items that has neither a phrase
// match nor a cached answer, so later NormalizeList calls only read the
// cache. It returns the number of phrases sent to the classifier.
func (n *Normalizer) Prime(ctx context.Context, d Domain, items []string) (int, error) {
	if n.classifier == nil {
		return 0, nil
	}

	seen := make(map[string]bool)
	var pending []string
	for _, raw := range items {
		raw = strings.TrimSpace(raw)
		lk := strings.ToLower(raw)
		if raw == "" || seen[lk] {
			continue
		}
		seen[lk] = true
		if len(n.vocab.Match(d, raw)) > 0 {
			continue
		}
		if _, found := n.lookup(ctx, d, raw); found {
			continue
		}
		pending = append(pending, raw)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.parallelism)
	for start := 0; start < len(pending); start += n.batchSize {
		batch := pending[start:min(start+n.batchSize, len(pending))]
		g.Go(func() error {
			n.classifyBatch(gctx, d, batch)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	logger.Debug("primed classification cache", "domain", d, "phrases", len(pending))
	return len(pending), nil
}

func (n *Normalizer) lookup(ctx context.Context, d Domain, raw string) (string, bool) {
	key, found, err := n.cache.Lookup(ctx, n.vocab.Version(), d, TextKey(raw))
	if err != nil {
		logger.Warn("classification cache lookup failed", "error", err)
		return "", false
	}
	if found && key != "" && !n.vocab.Has(d, key) {
		return "", false
	}
	return key, found
}

// classifyBatch resolves a batch through the classifier and records every
// answer, including explicit no-matches. Classifier failures resolve to no
// match for this run and are not cached. Identical concurrent batches share
// one classifier call.
func (n *Normalizer) classifyBatch(ctx context.Context, d Domain, batch []string) map[string]string {
	flightKey := string(d) + ":" + TextKey(strings.Join(batch, "\x00"))
	v, _, _ := n.flight.Do(flightKey, func() (any, error) {
		resolved := make(map[string]string, len(batch))

		var todo []string
		for _, raw := range batch {
			if key, found := n.lookup(ctx, d, raw); found {
				resolved[raw] = key
			} else {
				todo = append(todo, raw)
			}
		}
		if len(todo) == 0 {
			return resolved, nil
		}

		answers, err := n.classifier.Classify(ctx, d, todo, n.vocab.Keys(d))
		if err != nil {
			logger.Warn("classifier failed, treating batch as unmatched", "domain", d, "items", len(todo), "error", err)
			return resolved, nil
		}

		for _, raw := range todo {
			key := answers[raw]
			if !n.vocab.Has(d, key) {
				key = ""
			}
			resolved[raw] = key
			if err := n.cache.Store(ctx, n.vocab.Version(), d, TextKey(raw), raw, key); err != nil {
				logger.Warn("classification cache store failed", "error", err)
			}
		}
		return resolved, nil
	})
	return v.(map[string]string)
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func memKey(version string, d Domain, textKey string) string {
	return version + "|" + string(d) + "|" + textKey
}

// Lookup implements Cache.
func (m *MemoryCache) Lookup(_ context.Context, version string, d Domain, textKey string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.entries[memKey(version, d, textKey)]
	return key, ok, nil
}

// Store implements Cache.
func (m *MemoryCache) Store(_ context.Context, version string, d Domain, textKey, _ string, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(version, d, textKey)
	if _, exists := m.entries[k]; !exists {
		m.entries[k] = key
	}
	return nil
}

// Len returns the number of cached entries.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
