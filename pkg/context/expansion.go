package context

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vaultpilot/vaultpilot/pkg/llms"
)

// QueryExpander rewrites a terse tool-call query into a richer retrieval
// query before the vault is searched.
type QueryExpander interface {
	Expand(ctx context.Context, query string) (string, error)
}

// LLMQueryExpander asks the model for a better retrieval query.
type LLMQueryExpander struct {
	provider llms.LLMProvider
}

func NewLLMQueryExpander(provider llms.LLMProvider) *LLMQueryExpander {
	return &LLMQueryExpander{provider: provider}
}

func (e *LLMQueryExpander) Expand(ctx context.Context, query string) (string, error) {
	prompt := fmt.Sprintf(`Rewrite the following note-search query to maximize recall: expand abbreviations, add close synonyms, keep it under 30 words.

Query: %s

Return only a JSON object of the form {"query": "..."} with no additional text.`, query)

	text, err := collectResponse(ctx, e.provider, []llms.Message{
		{Role: llms.RoleUser, Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("query expansion failed: %w", err)
	}

	expanded, err := parseExpandedQuery(text)
	if err != nil || strings.TrimSpace(expanded) == "" {
		// The model went off-script; the original query is still usable.
		return query, nil
	}
	return expanded, nil
}

// HeuristicQueryExpander is the no-model fallback: it strips filler words so
// the query carries only content terms.
type HeuristicQueryExpander struct{}

var fillerWords = map[string]bool{
	"the": true, "a": true, "an": true, "my": true, "please": true,
	"find": true, "search": true, "for": true, "about": true, "me": true,
	"show": true, "notes": true, "note": true,
}

func (HeuristicQueryExpander) Expand(_ context.Context, query string) (string, error) {
	var kept []string
	for _, word := range strings.Fields(query) {
		if !fillerWords[strings.ToLower(strings.Trim(word, ".,!?"))] {
			kept = append(kept, word)
		}
	}
	if len(kept) == 0 {
		return query, nil
	}
	return strings.Join(kept, " "), nil
}

func parseExpandedQuery(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}

	var payload struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return "", fmt.Errorf("failed to parse expansion: %w", err)
	}
	return payload.Query, nil
}

// collectResponse runs one non-tool model call to completion and returns the
// text.
func collectResponse(ctx context.Context, provider llms.LLMProvider, messages []llms.Message) (string, error) {
	chunks := make(chan llms.StreamChunk, 64)
	assembler := llms.NewResponseAssembler()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range chunks {
			assembler.Feed(chunk)
		}
	}()

	err := provider.GenerateStreaming(ctx, messages, nil, chunks)
	close(chunks)
	<-done
	if err != nil {
		return "", err
	}
	return assembler.Text(), nil
}
