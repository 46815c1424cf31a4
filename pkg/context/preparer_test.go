package context

import (
	"context"
	"testing"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultpilot/vaultpilot/pkg/llms"
	"github.com/vaultpilot/vaultpilot/pkg/schema"
	"github.com/vaultpilot/vaultpilot/pkg/tools"
)

func newTestPreparer(t *testing.T) (*Preparer, *tools.Registry) {
	t.Helper()
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(&tools.ToolDefinition{
		Meta: tools.ToolMetadata{
			ID:            "current_time",
			Description:   "time",
			AlwaysEnabled: true,
		},
		Schema:  schema.NoParams(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) { return "now", nil },
	}))
	require.NoError(t, registry.Register(&tools.ToolDefinition{
		Meta: tools.ToolMetadata{
			ID:                       "vault_search",
			Description:              "search",
			AlwaysEnabled:            true,
			RequiresVault:            true,
			CustomPromptInstructions: "Prefer recent notes when searching.",
		},
		Schema:  schema.NoParams(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) { return "", nil },
	}))

	store, err := NewDocumentStore(DocumentStoreConfig{}, chromem.EmbeddingFunc(fixedEmbedding))
	require.NoError(t, err)
	require.NoError(t, store.Index(context.Background(), Note{
		Path:       "notes/offsite.md",
		Title:      "Offsite",
		Content:    "Agenda: roadmap, hiring.",
		ModifiedAt: time.Now(),
	}))

	return NewPreparer(PreparerConfig{}, registry, NewRetriever(RetrieverConfig{}, store)), registry
}

func nativeCaps() llms.Capabilities {
	return llms.Capabilities{NativeToolCalling: true, MultiPartContent: true}
}

func TestPrepareQAModeBindsNoTools(t *testing.T) {
	p, _ := newTestPreparer(t)

	plan, err := p.Prepare(context.Background(), PrepareRequest{
		Message:        "what does my note about the Offsite say?",
		ToolsEnabled:   true,
		VaultAvailable: true,
	}, nativeCaps())
	require.NoError(t, err)

	assert.Equal(t, ModeRetrievalQA, plan.Mode)
	assert.Equal(t, 1, plan.MaxIterations, "QA does exactly one model call")
	assert.Empty(t, plan.Tools)
	assert.NotEmpty(t, plan.RetrievedSources)

	// The retrieval context rides on the final user turn.
	last := plan.Messages[len(plan.Messages)-1]
	assert.Equal(t, llms.RoleUser, last.Role)
	assert.Contains(t, last.Content, "<document>")
	assert.Contains(t, last.Content, "what does my note about the Offsite say?")
}

func TestPrepareAgentModeBindsTools(t *testing.T) {
	p, _ := newTestPreparer(t)

	plan, err := p.Prepare(context.Background(), PrepareRequest{
		Message:        "remind me what time it is",
		ToolsEnabled:   true,
		VaultAvailable: true,
	}, nativeCaps())
	require.NoError(t, err)

	assert.Equal(t, ModeToolAgent, plan.Mode)
	assert.Len(t, plan.Tools, 2)
	assert.False(t, plan.TextualToolProtocol)

	// Custom tool instructions land in the system prompt.
	assert.Contains(t, plan.Messages[0].Content, "Prefer recent notes")
}

func TestPrepareWithoutVaultSkipsVaultTools(t *testing.T) {
	p, _ := newTestPreparer(t)

	plan, err := p.Prepare(context.Background(), PrepareRequest{
		Message:      "remind me what time it is",
		ToolsEnabled: true,
	}, nativeCaps())
	require.NoError(t, err)

	require.Len(t, plan.Tools, 1)
	assert.Equal(t, "current_time", plan.Tools[0].Name)
}

func TestPrepareTextualFallback(t *testing.T) {
	p, _ := newTestPreparer(t)

	plan, err := p.Prepare(context.Background(), PrepareRequest{
		Message:        "remind me what time it is",
		ToolsEnabled:   true,
		VaultAvailable: true,
	}, llms.Capabilities{NativeToolCalling: false})
	require.NoError(t, err)

	assert.True(t, plan.TextualToolProtocol)
	assert.Contains(t, plan.Messages[0].Content, "```tool", "catalog advertised in prompt")
}

func TestPrepareSimpleChat(t *testing.T) {
	p, _ := newTestPreparer(t)

	plan, err := p.Prepare(context.Background(), PrepareRequest{
		Message:      "hello there",
		ToolsEnabled: false,
	}, nativeCaps())
	require.NoError(t, err)

	assert.Equal(t, ModeSimpleChat, plan.Mode)
	assert.Empty(t, plan.Tools)
}

func TestPrepareMemoryFactsAndImages(t *testing.T) {
	p, _ := newTestPreparer(t)

	plan, err := p.Prepare(context.Background(), PrepareRequest{
		Message:      "describe this",
		ToolsEnabled: true,
		MemoryFacts:  []string{"Prefers metric units"},
		Images: []llms.ContentPart{
			{Type: llms.ContentPartTypeImageURL, Data: "https://example.com/a.png"},
		},
	}, nativeCaps())
	require.NoError(t, err)

	assert.Contains(t, plan.Messages[0].Content, "Prefers metric units")

	last := plan.Messages[len(plan.Messages)-1]
	require.Len(t, last.Parts, 2)
	assert.Equal(t, llms.ContentPartTypeText, last.Parts[0].Type)
}
