package generator

import "context"

// LLMClient abstracts the completion backend so it can be swapped/mocked.
// CompleteStream invokes onDelta for every incremental text fragment (nil
// is allowed for blocking use) and returns the full accumulated text.
type LLMClient interface {
	CompleteStream(ctx context.Context, prompt Prompt, onDelta func(delta string) error) (string, error)
}

// LLMSettings is the base configuration handed to concrete clients.
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}
