// Package classify maps phrases the alias index could not match onto
// canonical vocabulary keys with a chat completion model.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"github.com/sharckhai/neo-command/internal/retry"
	"github.com/sharckhai/neo-command/internal/vocab"
)

const (
	// DefaultModel is the classifier model.
	DefaultModel = "gpt-4o-mini"

	// DefaultRateLimit is requests per second.
	DefaultRateLimit = 2.0

	// DefaultMaxTries bounds attempts per batch.
	DefaultMaxTries = 3

	noneAnswer = "NONE"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("classifier API key not configured")

// Params configures a Classifier.
type Params struct {
	APIKey    string
	BaseURL   string
	Model     string
	RateLimit float64
	MaxTries  int
	Backoff   time.Duration
}

// Classifier implements vocab.Classifier.
type Classifier struct {
	model    string
	limiter  *rate.Limiter
	maxTries int
	backoff  time.Duration
	complete func(ctx context.Context, prompt string) (string, error)
}

var _ vocab.Classifier = (*Classifier)(nil)

// New creates a classifier. It returns ErrNoAPIKey when p.APIKey is empty.
func New(p Params) (*Classifier, error) {
	if p.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	opts := []option.RequestOption{
		option.WithAPIKey(p.APIKey),
		option.WithMaxRetries(0),
	}
	if p.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.BaseURL))
	}
	client := openai.NewClient(opts...)

	c := newClassifier(p)
	c.complete = func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       openai.ChatModel(c.model),
			Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
			Temperature: openai.Float(0),
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("empty completion")
		}
		return resp.Choices[0].Message.Content, nil
	}
	return c, nil
}

func newClassifier(p Params) *Classifier {
	if p.Model == "" {
		p.Model = DefaultModel
	}
	if p.RateLimit <= 0 {
		p.RateLimit = DefaultRateLimit
	}
	if p.MaxTries <= 0 {
		p.MaxTries = DefaultMaxTries
	}
	if p.Backoff <= 0 {
		p.Backoff = time.Second
	}
	return &Classifier{
		model:    p.Model,
		limiter:  rate.NewLimiter(rate.Limit(p.RateLimit), 1),
		maxTries: p.MaxTries,
		backoff:  p.Backoff,
	}
}

// Classify sends one batch and returns item -> key. Items the model left
// unmatched, or matched to a key outside candidates, map to "".
func (c *Classifier) Classify(ctx context.Context, d vocab.Domain, items []string, candidates []string) (map[string]string, error) {
	if len(items) == 0 {
		return map[string]string{}, nil
	}
	prompt := buildPrompt(d, items, candidates)

	content, err := retry.Do(ctx, c.maxTries, c.backoff, func(ctx context.Context) (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
		return c.complete(ctx, prompt)
	})
	if err != nil {
		return nil, fmt.Errorf("classifying %d %s items: %w", len(items), d, err)
	}
	return parseResponse(content, items, candidates)
}

func buildPrompt(d vocab.Domain, items, candidates []string) string {
	keys, _ := json.MarshalIndent(candidates, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "You are classifying medical %s terms.\n", d)
	b.WriteString("For each item below, map it to the BEST matching canonical key from this list, ")
	fmt.Fprintf(&b, "or respond '%s' if no good match exists.\n\n", noneAnswer)
	fmt.Fprintf(&b, "Canonical keys:\n%s\n\nItems to classify:\n", keys)
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	b.WriteString("\nRespond with a JSON object mapping each item (exact text) to its canonical key or null. ")
	b.WriteString(`Example: {"item text": "canonical_key", "other item": null}`)
	return b.String()
}

func parseResponse(response string, items, candidates []string) (map[string]string, error) {
	text := strings.TrimSpace(response)
	if strings.HasPrefix(text, "```") {
		text = extractFromCodeBlock(text)
	}

	var raw map[string]*string
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parsing classifier response as JSON: %w", err)
	}

	valid := make(map[string]bool, len(candidates))
	for _, k := range candidates {
		valid[k] = true
	}
	out := make(map[string]string, len(items))
	for _, item := range items {
		v := raw[item]
		if v != nil && *v != noneAnswer && valid[*v] {
			out[item] = *v
		} else {
			out[item] = ""
		}
	}
	return out, nil
}

// extractFromCodeBlock strips a surrounding markdown code fence.
func extractFromCodeBlock(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.Join(lines[1:end], "\n")
}
