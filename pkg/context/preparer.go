package context

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaultpilot/vaultpilot/pkg/llms"
	"github.com/vaultpilot/vaultpilot/pkg/tools"
)

// PreparerConfig tunes run preparation.
type PreparerConfig struct {
	// SystemPrompt is the base prompt every run starts from.
	SystemPrompt string `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`

	// HistoryTokenBudget caps prior-turn tokens. Zero means 2000.
	HistoryTokenBudget int `yaml:"history_token_budget,omitempty" json:"history_token_budget,omitempty"`

	// MaxIterations bounds the tool-agent loop. Zero means 8.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

func (c *PreparerConfig) SetDefaults() {
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if c.HistoryTokenBudget == 0 {
		c.HistoryTokenBudget = 2000
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 8
	}
}

const defaultSystemPrompt = "You are a careful assistant for a personal note vault. " +
	"Ground answers in the user's notes when they are provided and say so when they are not."

// PrepareRequest carries everything known about the incoming user turn.
type PrepareRequest struct {
	Message   string
	SessionID string

	// History is the session's prior turns, oldest first.
	History []llms.Message

	// AttachedNote is a note the user explicitly brought into the turn.
	AttachedNote *Note

	// Images attached to the turn, used when the provider supports
	// multi-part content.
	Images []llms.ContentPart

	// MemoryFacts are long-term user facts injected into the system prompt.
	MemoryFacts []string

	// UserEnabledTools is the user's opt-in tool selection.
	UserEnabledTools map[string]bool

	// ToolsEnabled is the global tool-use switch.
	ToolsEnabled bool

	VaultAvailable bool

	// TimeRange scopes QA retrieval when the question names one.
	TimeRange *TimeRange
}

// RunPlan is the prepared input of one agent run.
type RunPlan struct {
	Mode          Mode
	Messages      []llms.Message
	Tools         []llms.ToolDefinition
	MaxIterations int

	// TextualToolProtocol is set when tools are advertised in-prompt
	// because the provider lacks native tool calling.
	TextualToolProtocol bool

	// RetrievedSources carries QA citations straight to the result.
	RetrievedSources []tools.AgentSource

	// RetrievalTruncated reports that the context block was capped.
	RetrievalTruncated bool
}

// Preparer turns a user message into a run plan: mode, messages, bound
// tools, iteration budget.
type Preparer struct {
	cfg       PreparerConfig
	registry  *tools.Registry
	retriever *Retriever
	budgeter  *TokenBudgeter
}

func NewPreparer(cfg PreparerConfig, registry *tools.Registry, retriever *Retriever) *Preparer {
	cfg.SetDefaults()
	return &Preparer{
		cfg:       cfg,
		registry:  registry,
		retriever: retriever,
		budgeter:  NewTokenBudgeter(),
	}
}

// Prepare assembles the run plan for one user turn.
func (p *Preparer) Prepare(ctx context.Context, req PrepareRequest, caps llms.Capabilities) (*RunPlan, error) {
	mode := DetectMode(req.Message, req.ToolsEnabled)

	plan := &RunPlan{
		Mode:          mode,
		MaxIterations: p.cfg.MaxIterations,
	}

	var boundTools []*tools.ToolDefinition
	switch mode {
	case ModeRetrievalQA:
		// One retrieval-grounded call, no tools.
		plan.MaxIterations = 1
	case ModeToolAgent:
		boundTools = p.registry.ResolveEnabled(req.UserEnabledTools, req.VaultAvailable)
		plan.Tools = p.registry.DescribeForModel(req.UserEnabledTools, req.VaultAvailable)
		if !caps.NativeToolCalling {
			plan.TextualToolProtocol = true
		}
	case ModeSimpleChat:
		// Nothing to bind.
	}

	systemPrompt := p.buildSystemPrompt(boundTools, req.MemoryFacts, plan)

	userText, err := p.buildUserTurn(ctx, req, mode, plan)
	if err != nil {
		return nil, err
	}

	messages := make([]llms.Message, 0, len(req.History)+2)
	messages = append(messages, llms.Message{Role: llms.RoleSystem, Content: systemPrompt})
	messages = append(messages, p.budgeter.TrimHistory(req.History, p.cfg.HistoryTokenBudget)...)

	userMsg := llms.Message{Role: llms.RoleUser, Content: userText}
	if len(req.Images) > 0 && caps.MultiPartContent {
		parts := make([]llms.ContentPart, 0, len(req.Images)+1)
		parts = append(parts, llms.ContentPart{Type: llms.ContentPartTypeText, Text: userText})
		parts = append(parts, req.Images...)
		userMsg = llms.Message{Role: llms.RoleUser, Parts: parts}
	}
	messages = append(messages, userMsg)

	plan.Messages = messages
	return plan, nil
}

func (p *Preparer) buildSystemPrompt(boundTools []*tools.ToolDefinition, facts []string, plan *RunPlan) string {
	var b strings.Builder
	b.WriteString(p.cfg.SystemPrompt)

	if len(facts) > 0 {
		b.WriteString("\n\nKnown about the user:\n")
		for _, fact := range facts {
			fmt.Fprintf(&b, "- %s\n", fact)
		}
	}

	for _, def := range boundTools {
		if def.Meta.CustomPromptInstructions != "" {
			b.WriteString("\n\n")
			b.WriteString(def.Meta.CustomPromptInstructions)
		}
	}

	if plan.TextualToolProtocol && len(plan.Tools) > 0 {
		b.WriteString("\n\n")
		b.WriteString(llms.RenderToolCatalog(plan.Tools))
	}
	return b.String()
}

// buildUserTurn assembles the user-facing layers through the envelope so QA
// context, attached notes, and the raw question serialize uniformly.
func (p *Preparer) buildUserTurn(ctx context.Context, req PrepareRequest, mode Mode, plan *RunPlan) (string, error) {
	var envelope Envelope

	if req.AttachedNote != nil {
		envelope.Layers = append(envelope.Layers, Layer{
			Kind:  LayerNote,
			Label: req.AttachedNote.Title,
			Path:  req.AttachedNote.Path,
			Text:  req.AttachedNote.Content,
		})
	}

	if mode == ModeRetrievalQA && p.retriever != nil {
		result, err := p.retriever.Retrieve(ctx, req.Message, req.TimeRange)
		if err != nil {
			return "", fmt.Errorf("failed to prepare retrieval context: %w", err)
		}
		if result.ContextBlock != "" {
			envelope.Add(LayerRetrieved, "vault", result.ContextBlock)
		}
		plan.RetrievedSources = result.Sources
		plan.RetrievalTruncated = result.Truncated
	}

	envelope.Add(LayerRawUser, "", req.Message)
	return envelope.Serialize()
}
