package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectMode(t *testing.T) {
	tests := []struct {
		name         string
		message      string
		toolsEnabled bool
		want         Mode
	}{
		{"vault phrase routes to QA", "What does my note on budgets say?", true, ModeRetrievalQA},
		{"vault phrase case-insensitive", "BASED ON MY NOTES, what changed?", true, ModeRetrievalQA},
		{"search phrase", "search my notes for the offsite agenda", true, ModeRetrievalQA},
		{"in my vault mid-sentence", "is there anything in my vault about travel?", true, ModeRetrievalQA},
		{"plural notes phrase", "what do my notes say about Q3?", true, ModeRetrievalQA},
		{"from my notes", "summarize the action items from my notes", true, ModeRetrievalQA},
		{"according to my notes", "according to my notes, when is the renewal?", true, ModeRetrievalQA},
		{"plain question goes to agent", "what time is it in Tokyo?", true, ModeToolAgent},
		{"tools disabled degrades to chat", "what time is it in Tokyo?", false, ModeSimpleChat},
		{"QA wins over disabled tools", "search my notes for travel", false, ModeRetrievalQA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMode(tt.message, tt.toolsEnabled))
		})
	}
}
