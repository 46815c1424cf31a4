package context

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"github.com/vaultpilot/vaultpilot/pkg/llms"
)

const defaultEncoding = "cl100k_base"

// TokenBudgeter trims prior turns so the history fits a token budget.
type TokenBudgeter struct {
	encoding *tiktoken.Tiktoken
}

func NewTokenBudgeter() *TokenBudgeter {
	encoding, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		// Counting falls back to a bytes/4 estimate.
		slog.Warn("Failed to load token encoding, using estimate", "encoding", defaultEncoding, "error", err)
		encoding = nil
	}
	return &TokenBudgeter{encoding: encoding}
}

// CountTokens measures one string.
func (b *TokenBudgeter) CountTokens(text string) int {
	if b.encoding == nil {
		return len(text) / 4
	}
	return len(b.encoding.Encode(text, nil, nil))
}

// TrimHistory drops the oldest turns until the remainder fits the budget.
// Turns are dropped whole; a budget too small for even the newest turn
// yields an empty history.
func (b *TokenBudgeter) TrimHistory(history []llms.Message, budget int) []llms.Message {
	if budget <= 0 || len(history) == 0 {
		return nil
	}

	total := 0
	// Walk newest to oldest, keeping while the budget holds.
	keepFrom := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := b.CountTokens(history[i].Content) + 4
		if total+cost > budget {
			break
		}
		total += cost
		keepFrom = i
	}

	if keepFrom == len(history) {
		return nil
	}
	if keepFrom > 0 {
		slog.Debug("Trimmed history to token budget", "dropped", keepFrom, "kept", len(history)-keepFrom, "tokens", total)
	}
	return history[keepFrom:]
}
