// Package agent runs the iterative tool-calling loop: prepare, stream, act,
// repeat, within iteration and wall-clock budgets.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	vaultcontext "github.com/vaultpilot/vaultpilot/pkg/context"
	"github.com/vaultpilot/vaultpilot/pkg/llms"
	"github.com/vaultpilot/vaultpilot/pkg/memory"
	"github.com/vaultpilot/vaultpilot/pkg/observability"
	"github.com/vaultpilot/vaultpilot/pkg/reasoning"
	"github.com/vaultpilot/vaultpilot/pkg/tools"
)

// Config tunes the run loop.
type Config struct {
	// TimeBudget bounds one run wall-clock, checked at iteration
	// boundaries. Zero means 2 minutes.
	TimeBudget time.Duration `yaml:"time_budget,omitempty" json:"time_budget,omitempty"`

	// StreamChunkSize is how many runes of the final answer go out per
	// update. Zero means 160.
	StreamChunkSize int `yaml:"stream_chunk_size,omitempty" json:"stream_chunk_size,omitempty"`

	// StreamDelay paces final-answer updates. Zero means 15ms.
	StreamDelay time.Duration `yaml:"stream_delay,omitempty" json:"stream_delay,omitempty"`
}

func (c *Config) SetDefaults() {
	if c.TimeBudget == 0 {
		c.TimeBudget = 2 * time.Minute
	}
	if c.StreamChunkSize == 0 {
		c.StreamChunkSize = 160
	}
	if c.StreamDelay == 0 {
		c.StreamDelay = 15 * time.Millisecond
	}
}

// RunRequest is one user turn handed to the agent.
type RunRequest struct {
	Message   string
	SessionID string

	AttachedNote     *vaultcontext.Note
	Images           []llms.ContentPart
	MemoryFacts      []string
	UserEnabledTools map[string]bool
	ToolsEnabled     bool
	VaultAvailable   bool
	TimeRange        *vaultcontext.TimeRange
}

// RunMetadata describes how the run went.
type RunMetadata struct {
	Mode         vaultcontext.Mode
	Iterations   int
	WasTruncated bool
	TokenUsage   int
}

// RunResult is the terminal outcome of one run.
type RunResult struct {
	FinalResponse string
	Sources       []tools.AgentSource
	Metadata      RunMetadata
}

// Agent wires the preparer, the model, the tool layer, and the narrator into
// one run loop.
type Agent struct {
	cfg      Config
	provider llms.LLMProvider
	preparer *vaultcontext.Preparer
	executor *tools.Executor
	expander vaultcontext.QueryExpander
	history  *memory.HistoryStore
}

// New creates an agent. The history store and query expander are optional.
func New(cfg Config, provider llms.LLMProvider, preparer *vaultcontext.Preparer, executor *tools.Executor, expander vaultcontext.QueryExpander, history *memory.HistoryStore) *Agent {
	cfg.SetDefaults()
	if expander == nil {
		expander = vaultcontext.HeuristicQueryExpander{}
	}
	return &Agent{
		cfg:      cfg,
		provider: provider,
		preparer: preparer,
		executor: executor,
		expander: expander,
		history:  history,
	}
}

// Run executes one user turn. The stream callback receives replacement
// renders of the narration plus any answer text produced so far; the
// returned result carries the final response with the reasoning block
// prepended and the deduplicated sources.
func (a *Agent) Run(ctx context.Context, req RunRequest, stream func(string)) (*RunResult, error) {
	if stream == nil {
		stream = func(string) {}
	}
	if strings.TrimSpace(req.Message) == "" {
		slog.Error("Rejected malformed run request", "session", req.SessionID, "reason", "empty message")
		return nil, errors.New("something went wrong preparing your request")
	}

	tracer := observability.Tracer("vaultpilot/agent")
	ctx, span := tracer.Start(ctx, observability.SpanAgentRun)
	defer span.End()

	plan, err := a.preparer.Prepare(ctx, vaultcontext.PrepareRequest{
		Message:          req.Message,
		SessionID:        req.SessionID,
		History:          a.loadHistory(ctx, req.SessionID),
		AttachedNote:     req.AttachedNote,
		Images:           req.Images,
		MemoryFacts:      req.MemoryFacts,
		UserEnabledTools: req.UserEnabledTools,
		ToolsEnabled:     req.ToolsEnabled,
		VaultAvailable:   req.VaultAvailable,
		TimeRange:        req.TimeRange,
	}, a.provider.Capabilities())
	if err != nil {
		slog.Error("Run preparation failed", "session", req.SessionID, "error", err)
		return nil, errors.New("something went wrong preparing your request")
	}
	span.SetAttributes(attribute.String(observability.AttrRunMode, string(plan.Mode)))

	narrator := reasoning.NewNarrator()
	narrator.Start(ctx, stream)

	run := &runState{
		plan:     plan,
		messages: plan.Messages,
		sources:  append([]tools.AgentSource{}, plan.RetrievedSources...),
		narrator: narrator,
		stream:   stream,
		question: req.Message,
	}
	run.metadata.Mode = plan.Mode

	result, err := a.loop(ctx, run)
	if err != nil {
		// Cancellation is not an error: the narrator already rendered the
		// interruption, so finish quietly with what exists.
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			slog.Info("Run cancelled", "session", req.SessionID, "mode", plan.Mode)
			return a.finishPartial(run, ""), nil
		}

		// Caller boundary: every other loop error surfaces as one notice on
		// the stream plus whatever partial answer exists.
		if !narrator.HandledAbort() {
			narrator.Stop()
		}
		stream("Something went wrong while working on your request.")
		slog.Error("Run failed", "session", req.SessionID, "mode", plan.Mode, "error", err)
		return &RunResult{
			FinalResponse: run.partialText,
			Sources:       tools.DeduplicateSources(run.sources),
			Metadata:      run.metadata,
		}, err
	}

	a.persistTurn(ctx, req, result)
	return result, nil
}

type runState struct {
	plan     *vaultcontext.RunPlan
	messages []llms.Message
	sources  []tools.AgentSource
	narrator *reasoning.Narrator
	stream   func(string)
	question string

	metadata    RunMetadata
	partialText string
}

func (a *Agent) loop(ctx context.Context, run *runState) (*RunResult, error) {
	maxIterations := run.plan.MaxIterations
	if maxIterations < 1 {
		maxIterations = 1
	}
	deadline := time.Now().Add(a.cfg.TimeBudget)

	for iteration := 0; iteration < maxIterations; iteration++ {
		// Boundary checks, in order: cancellation, then time budget.
		if ctx.Err() != nil {
			slog.Info("Run cancelled", "iteration", iteration)
			return a.finishPartial(run, ""), nil
		}
		if time.Now().After(deadline) {
			slog.Info("Run hit time budget", "iteration", iteration)
			return a.finishPartial(run, "I ran out of time before finishing. Here is what I have so far."), nil
		}

		run.metadata.Iterations = iteration + 1

		assembler, err := a.streamModelResponse(ctx, run)
		if err != nil {
			return nil, err
		}
		if err := assembler.Err(); err != nil {
			return nil, err
		}

		meta := assembler.Metadata()
		run.metadata.TokenUsage += meta.TokenUsage
		run.metadata.WasTruncated = meta.WasTruncated

		text := assembler.Text()
		toolCalls := assembler.ToolCalls()
		if run.plan.TextualToolProtocol && len(toolCalls) == 0 {
			toolCalls, text = llms.ParseTextToolCalls(text)
		}

		if len(toolCalls) == 0 {
			return a.finishAnswer(ctx, run, text), nil
		}

		assistant := llms.Message{Role: llms.RoleAssistant, Content: text, ToolCalls: toolCalls}
		run.messages = append(run.messages, assistant)
		run.partialText = text

		if iteration > 0 {
			if sentence := firstSentence(text); sentence != "" {
				run.narrator.AddStep(sentence, "", false)
			}
		}

		a.executeToolCalls(ctx, run, toolCalls)
	}

	slog.Info("Run hit iteration budget", "iterations", maxIterations)
	return a.finishPartial(run, "I reached the maximum number of tool calls before finishing. Here is what I have so far."), nil
}

// streamModelResponse performs one model call, feeding the stream into an
// assembler.
func (a *Agent) streamModelResponse(ctx context.Context, run *runState) (*llms.ResponseAssembler, error) {
	chunks := make(chan llms.StreamChunk, 64)
	assembler := llms.NewResponseAssembler()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range chunks {
			assembler.Feed(chunk)
		}
	}()

	var boundTools []llms.ToolDefinition
	if !run.plan.TextualToolProtocol {
		boundTools = run.plan.Tools
	}

	err := a.provider.GenerateStreaming(ctx, run.messages, boundTools, chunks)
	close(chunks)
	<-done
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	return assembler, nil
}

// executeToolCalls runs the iteration's calls sequentially and appends one
// tool-result message per call.
func (a *Agent) executeToolCalls(ctx context.Context, run *runState, calls []llms.ToolCall) {
	for _, call := range calls {
		if call.ID == "" {
			call.ID = uuid.NewString()
		}

		isVaultSearch := call.Name == "vault_search"
		if isVaultSearch {
			a.expandSearchQuery(ctx, run, &call)
		}

		run.narrator.AddStep(describeCall(call), call.Name, false)

		result := a.executor.Execute(ctx, call.Name, call.Args, tools.ExecuteOptions{})

		content := result.Content
		if !result.Success {
			content = result.Error
			run.narrator.AddStep(fmt.Sprintf("%s failed", call.Name), call.Name, true)
		} else {
			if isVaultSearch {
				content = a.absorbSearchResult(run, content)
			}
			run.narrator.AddStep(fmt.Sprintf("Got results from %s", call.Name), call.Name, true)
		}

		run.messages = append(run.messages, llms.Message{
			Role:       llms.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
			Name:       call.Name,
		})
	}
}

// expandSearchQuery enriches the vault_search query before execution. A
// failed expansion is not an error; the original query stands.
func (a *Agent) expandSearchQuery(ctx context.Context, run *runState, call *llms.ToolCall) {
	query, _ := call.Args["query"].(string)
	if query == "" {
		return
	}
	expanded, err := a.expander.Expand(ctx, query)
	if err != nil || expanded == "" {
		slog.Debug("Query expansion skipped", "query", query, "error", err)
		return
	}
	args := make(map[string]any, len(call.Args))
	for k, v := range call.Args {
		args[k] = v
	}
	args["query"] = expanded
	call.Args = args
}

// absorbSearchResult pulls citation sources out of a local-search payload
// and reshapes the content so the question follows the retrieved context.
func (a *Agent) absorbSearchResult(run *runState, content string) string {
	var payload tools.LocalSearchPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil || payload.Type != tools.LocalSearchType {
		return content
	}

	var b strings.Builder
	b.WriteString("<vault_search>\n")
	for _, doc := range payload.Documents {
		run.sources = append(run.sources, tools.AgentSource{
			Title: doc.Title,
			Path:  doc.Path,
			Score: doc.Score,
		})
		fmt.Fprintf(&b, "<document>\n<title>%s</title>\n<path>%s</path>\n<content>\n%s\n</content>\n</document>\n", doc.Title, doc.Path, doc.Content)
	}
	b.WriteString("</vault_search>\n\n")
	fmt.Fprintf(&b, "The user's question: %s", run.question)
	return b.String()
}

// finishAnswer streams the final answer in paced chunks and assembles the
// result.
func (a *Agent) finishAnswer(ctx context.Context, run *runState, text string) *RunResult {
	run.narrator.Stop()
	run.messages = append(run.messages, llms.Message{Role: llms.RoleAssistant, Content: text})

	runes := []rune(text)
	for start := 0; start < len(runes); start += a.cfg.StreamChunkSize {
		if ctx.Err() != nil {
			break
		}
		end := start + a.cfg.StreamChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		run.narrator.AppendAnswer(string(runes[start:end]))
		if end < len(runes) {
			time.Sleep(a.cfg.StreamDelay)
		}
	}

	return &RunResult{
		FinalResponse: run.narrator.Render() + text,
		Sources:       tools.DeduplicateSources(run.sources),
		Metadata:      run.metadata,
	}
}

// finishPartial ends a run that exhausted a budget or was cancelled. The
// notice is empty for cancellation; the narrator already rendered the
// interruption when it handled the abort.
func (a *Agent) finishPartial(run *runState, notice string) *RunResult {
	if !run.narrator.HandledAbort() {
		run.narrator.Stop()
	}
	final := run.partialText
	if notice != "" {
		if final != "" {
			final = notice + "\n\n" + final
		} else {
			final = notice
		}
		run.narrator.AppendAnswer(final)
	}

	return &RunResult{
		FinalResponse: run.narrator.Render() + final,
		Sources:       tools.DeduplicateSources(run.sources),
		Metadata:      run.metadata,
	}
}

func (a *Agent) loadHistory(ctx context.Context, sessionID string) []llms.Message {
	if a.history == nil || sessionID == "" {
		return nil
	}
	turns, err := a.history.PriorTurns(ctx, sessionID, 0)
	if err != nil {
		slog.Warn("Failed to load history", "session", sessionID, "error", err)
		return nil
	}
	return turns
}

func (a *Agent) persistTurn(ctx context.Context, req RunRequest, result *RunResult) {
	if a.history == nil || req.SessionID == "" {
		return
	}
	if err := a.history.Append(ctx, req.SessionID, llms.Message{Role: llms.RoleUser, Content: req.Message}); err != nil {
		slog.Warn("Failed to persist user turn", "session", req.SessionID, "error", err)
		return
	}
	if err := a.history.Append(ctx, req.SessionID, llms.Message{Role: llms.RoleAssistant, Content: result.FinalResponse}); err != nil {
		slog.Warn("Failed to persist assistant turn", "session", req.SessionID, "error", err)
	}
}

// describeCall renders one narration line for a tool call.
func describeCall(call llms.ToolCall) string {
	if query, ok := call.Args["query"].(string); ok && query != "" {
		return fmt.Sprintf("Searching for %q", query)
	}
	return fmt.Sprintf("Running %s", call.Name)
}

// firstSentence extracts the leading sentence of the model's pre-tool prose.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			return strings.TrimSpace(text[:i+1])
		}
	}
	if len([]rune(text)) > 120 {
		return string([]rune(text)[:120])
	}
	return text
}
