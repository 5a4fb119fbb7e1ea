package tokenizer

import (
	"fmt"
	"strings"
	"sync"
)

// Tokenizer counts tokens the way a model family does.
type Tokenizer interface {
	// CountTokens returns the number of tokens in text.
	CountTokens(text string) (int, error)

	// MaxTokens returns the context size of the model.
	MaxTokens() int

	Name() string
}

var (
	registry   = make(map[string]Tokenizer)
	registryMu sync.RWMutex
)

// Register binds a tokenizer to a model name or model-name prefix.
func Register(model string, t Tokenizer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[model] = t
}

// Get returns the tokenizer registered for model. An exact match wins,
// then the longest registered prefix ("gpt-4o" matches "gpt-4o-mini").
func Get(model string) (Tokenizer, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if t, ok := registry[model]; ok {
		return t, nil
	}

	var (
		best    Tokenizer
		bestLen int
	)
	for prefix, t := range registry {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = t, len(prefix)
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no tokenizer registered for model: %s", model)
	}
	return best, nil
}

// ForModel returns the registered tokenizer for model, falling back to the
// character-count estimator.
func ForModel(model string) Tokenizer {
	t, err := Get(model)
	if err != nil {
		return NewEstimator(model, 0)
	}
	return t
}

// Count is CountTokens that degrades to the estimator when t fails, for
// callers that only need a budget figure.
func Count(t Tokenizer, text string) int {
	if t != nil {
		if n, err := t.CountTokens(text); err == nil {
			return n
		}
	}
	n, _ := NewEstimator("", 0).CountTokens(text)
	return n
}
