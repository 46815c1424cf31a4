package llms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderToolCatalog(t *testing.T) {
	rendered := RenderToolCatalog([]ToolDefinition{
		{Name: "vault_search", Description: "Search notes", Parameters: map[string]any{"type": "object"}},
	})

	assert.Contains(t, rendered, "vault_search")
	assert.Contains(t, rendered, "Search notes")
	assert.Contains(t, rendered, "```tool")

	assert.Empty(t, RenderToolCatalog(nil))
}

func TestParseTextToolCalls(t *testing.T) {
	text := "Let me look that up.\n```tool\n{\"name\": \"vault_search\", \"arguments\": {\"query\": \"standup\"}}\n```\nChecking now."

	calls, kept := ParseTextToolCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "vault_search", calls[0].Name)
	assert.Equal(t, "standup", calls[0].Args["query"])
	assert.Equal(t, "Let me look that up.\n\nChecking now.", kept)
}

func TestParseTextToolCallsMultiple(t *testing.T) {
	text := "```tool\n{\"name\": \"a\", \"arguments\": {}}\n```\n```tool\n{\"name\": \"b\"}\n```"

	calls, kept := ParseTextToolCalls(text)
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].Name)
	assert.Equal(t, "b", calls[1].Name)
	assert.NotNil(t, calls[1].Args, "missing arguments default to an empty map")
	assert.Empty(t, kept)
}

func TestParseTextToolCallsKeepsBadBlocks(t *testing.T) {
	text := "Here is code:\n```tool\nnot json at all\n```\ndone"

	calls, kept := ParseTextToolCalls(text)
	assert.Empty(t, calls)
	assert.True(t, strings.Contains(kept, "not json at all"))
}

func TestParseTextToolCallsNoBlocks(t *testing.T) {
	calls, kept := ParseTextToolCalls("plain answer")
	assert.Empty(t, calls)
	assert.Equal(t, "plain answer", kept)
}
