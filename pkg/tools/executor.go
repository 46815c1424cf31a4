package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vaultpilot/vaultpilot/pkg/observability"
	"github.com/vaultpilot/vaultpilot/pkg/schema"
)

// ExecutionResult is what a tool invocation produced, shaped for feeding back
// to the model: failures are data, not Go errors.
type ExecutionResult struct {
	Success  bool          `json:"success"`
	Content  string        `json:"content,omitempty"`
	Error    string        `json:"error,omitempty"`
	ToolName string        `json:"tool_name"`
	Elapsed  time.Duration `json:"elapsed"`
}

// ExecuteOptions tunes one invocation.
type ExecuteOptions struct {
	// Timeout overrides the tool's own limit for this call. Zero keeps the
	// tool's declared timeout (or the default).
	Timeout time.Duration
}

// Executor validates arguments and runs tool handlers under a deadline.
type Executor struct {
	registry *Registry
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute looks up, validates, and runs one tool call. Handler panics are not
// recovered; handlers are trusted code. The handler never runs when argument
// validation fails.
func (e *Executor) Execute(ctx context.Context, id string, args map[string]any, opts ExecuteOptions) ExecutionResult {
	started := time.Now()

	def, exists := e.registry.Get(id)
	if !exists {
		return ExecutionResult{
			Success:  false,
			Error:    fmt.Sprintf("tool '%s' not found", id),
			ToolName: id,
			Elapsed:  time.Since(started),
		}
	}

	if result := schema.Validate(def.Schema, args); !result.OK {
		return ExecutionResult{
			Success:  false,
			Error:    "Invalid arguments: " + result.Message,
			ToolName: id,
			Elapsed:  time.Since(started),
		}
	}

	timeout := def.EffectiveTimeout()
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tracer := observability.Tracer("vaultpilot/tools")
	execCtx, span := tracer.Start(execCtx, observability.SpanToolExecution)
	span.SetAttributes(
		attribute.String(observability.AttrToolName, id),
		attribute.String(observability.AttrToolSource, def.Meta.Source),
	)
	defer span.End()

	// The handler runs off to the side so a handler that ignores its context
	// cannot hold the call past the deadline. The goroutine is abandoned on
	// timeout; its late result is dropped.
	type handlerResult struct {
		output any
		err    error
	}
	resultCh := make(chan handlerResult, 1)
	go func() {
		output, err := def.Handler(execCtx, args)
		resultCh <- handlerResult{output: output, err: err}
	}()

	var output any
	var err error
	select {
	case res := <-resultCh:
		output, err = res.output, res.err
	case <-execCtx.Done():
		err = execCtx.Err()
	}
	elapsed := time.Since(started)

	if err != nil {
		message := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			message = fmt.Sprintf("tool '%s' timed out after %dms", id, timeout.Milliseconds())
		}
		span.SetStatus(codes.Error, message)
		slog.Warn("Tool execution failed", "tool", id, "error", message, "elapsed", elapsed)
		return ExecutionResult{
			Success:  false,
			Error:    message,
			ToolName: id,
			Elapsed:  elapsed,
		}
	}

	content, err := serializeOutput(output)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return ExecutionResult{
			Success:  false,
			Error:    fmt.Sprintf("tool '%s' returned an unserializable result: %v", id, err),
			ToolName: id,
			Elapsed:  elapsed,
		}
	}

	slog.Debug("Tool executed", "tool", id, "elapsed", elapsed)
	return ExecutionResult{
		Success:  true,
		Content:  content,
		ToolName: id,
		Elapsed:  elapsed,
	}
}

func serializeOutput(output any) (string, error) {
	switch v := output.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}

// DeduplicateSources collapses duplicate citations. The key is the lowercased
// path, falling back to the lowercased title; the first occurrence keeps its
// position and the highest score wins. Idempotent.
func DeduplicateSources(sources []AgentSource) []AgentSource {
	if len(sources) <= 1 {
		return sources
	}

	index := make(map[string]int, len(sources))
	deduped := make([]AgentSource, 0, len(sources))

	for _, source := range sources {
		key := strings.ToLower(source.Path)
		if key == "" {
			key = strings.ToLower(source.Title)
		}
		if key == "" {
			deduped = append(deduped, source)
			continue
		}

		if at, seen := index[key]; seen {
			if source.Score > deduped[at].Score {
				deduped[at].Score = source.Score
			}
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, source)
	}
	return deduped
}
