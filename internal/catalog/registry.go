// Package catalog holds the static model registry and the cost estimator.
package catalog

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Provider names accepted by llm.NewClient.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// DefaultModel is used when neither a flag nor the config names a model.
const DefaultModel = "gpt-3.5-turbo"

// Profile describes one model: who serves it, what it costs and how its
// prompts are tokenized. Profiles are values and never change after the
// registry is built.
type Profile struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Provider    string          `json:"provider"`
	PricePer1K  decimal.Decimal `json:"price_per_1k"`
	// Tokenizer names a BPE encoding (e.g. "cl100k_base"). Empty means the
	// encoding is derived from ID.
	Tokenizer string `json:"tokenizer,omitempty"`
	// ContextWindow is the most tokens the model accepts per request. Zero
	// means unknown.
	ContextWindow int `json:"context_window,omitempty"`
}

// Registry is a read-only table of profiles keyed by model id.
type Registry struct {
	profiles map[string]Profile
	order    []string
}

// NewRegistry builds a registry. Duplicate or empty ids are rejected.
func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("registry: profile %q has no id", p.DisplayName)
		}
		if _, dup := r.profiles[p.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate model id %q", p.ID)
		}
		if p.PricePer1K.IsNegative() {
			return nil, fmt.Errorf("registry: model %q has a negative price", p.ID)
		}
		r.profiles[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	return r, nil
}

// Lookup returns the profile for a model id.
func (r *Registry) Lookup(id string) (Profile, bool) {
	p, ok := r.profiles[id]
	return p, ok
}

// Profiles returns every profile in registration order.
func (r *Registry) Profiles() []Profile {
	out := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.profiles[id])
	}
	return out
}

// IDs returns the sorted model ids.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	sort.Strings(ids)
	return ids
}

// Prices are prompt-side USD per 1000 tokens.
var builtin = []Profile{
	{ID: "gpt-3.5-turbo", DisplayName: "GPT-3.5 Turbo", Provider: ProviderOpenAI, PricePer1K: decimal.RequireFromString("0.002"), ContextWindow: 16385},
	{ID: "gpt-4", DisplayName: "GPT-4", Provider: ProviderOpenAI, PricePer1K: decimal.RequireFromString("0.03"), ContextWindow: 8192},
	{ID: "gpt-4-32k", DisplayName: "GPT-4 32K", Provider: ProviderOpenAI, PricePer1K: decimal.RequireFromString("0.06"), Tokenizer: "cl100k_base", ContextWindow: 32768},
	{ID: "gpt-4o", DisplayName: "GPT-4o", Provider: ProviderOpenAI, PricePer1K: decimal.RequireFromString("0.0025"), ContextWindow: 128000},
	{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", Provider: ProviderOpenAI, PricePer1K: decimal.RequireFromString("0.00015"), Tokenizer: "o200k_base", ContextWindow: 128000},
	{ID: "claude-sonnet-4-20250514", DisplayName: "Claude Sonnet 4", Provider: ProviderAnthropic, PricePer1K: decimal.RequireFromString("0.003"), ContextWindow: 200000},
	{ID: "claude-3-5-haiku-latest", DisplayName: "Claude 3.5 Haiku", Provider: ProviderAnthropic, PricePer1K: decimal.RequireFromString("0.0008"), ContextWindow: 200000},
	{ID: "llama3.1", DisplayName: "Llama 3.1 (Ollama)", Provider: ProviderOllama, PricePer1K: decimal.Zero, ContextWindow: 131072},
}

// Default returns the built-in registry.
func Default() *Registry {
	r, err := NewRegistry(builtin...)
	if err != nil {
		panic(err) // builtin table is static
	}
	return r
}
