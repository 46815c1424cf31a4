package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultpilot/vaultpilot/pkg/schema"
)

func TestExecuteNotFound(t *testing.T) {
	exec := NewExecutor(NewRegistry())

	result := exec.Execute(context.Background(), "missing", nil, ExecuteOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not found")
	assert.Equal(t, "missing", result.ToolName)
}

func TestExecuteValidationFailureSkipsHandler(t *testing.T) {
	r := NewRegistry()
	invoked := false
	require.NoError(t, r.Register(&ToolDefinition{
		Meta: ToolMetadata{ID: "strict"},
		Schema: &schema.ObjectSchema{
			Properties: map[string]*schema.FieldSchema{
				"query": schema.String("required input"),
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			invoked = true
			return "ran", nil
		},
	}))

	result := NewExecutor(r).Execute(context.Background(), "strict", map[string]any{}, ExecuteOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Invalid arguments:")
	assert.False(t, invoked, "handler must not run on validation failure")
}

func TestExecuteStringPassthrough(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ToolDefinition{
		Meta:   ToolMetadata{ID: "echo"},
		Schema: schema.NoParams(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return "plain text", nil
		},
	}))

	result := NewExecutor(r).Execute(context.Background(), "echo", nil, ExecuteOptions{})
	require.True(t, result.Success)
	assert.Equal(t, "plain text", result.Content)
	assert.Greater(t, result.Elapsed, time.Duration(0))
}

func TestExecuteSerializesStructuredOutput(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ToolDefinition{
		Meta:   ToolMetadata{ID: "structured"},
		Schema: schema.NoParams(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"count": 3}, nil
		},
	}))

	result := NewExecutor(r).Execute(context.Background(), "structured", nil, ExecuteOptions{})
	require.True(t, result.Success)
	assert.JSONEq(t, `{"count": 3}`, result.Content)
}

func TestExecuteHandlerError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ToolDefinition{
		Meta:   ToolMetadata{ID: "failing"},
		Schema: schema.NoParams(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		},
	}))

	result := NewExecutor(r).Execute(context.Background(), "failing", nil, ExecuteOptions{})
	assert.False(t, result.Success)
	assert.Equal(t, "backend unavailable", result.Error)
}

func TestExecuteTimeout(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ToolDefinition{
		Meta:   ToolMetadata{ID: "slow", Timeout: 30 * time.Millisecond},
		Schema: schema.NoParams(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return "done", nil
			}
		},
	}))

	result := NewExecutor(r).Execute(context.Background(), "slow", nil, ExecuteOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "timed out after 30ms")
}

func TestExecuteOptionTimeoutOverrides(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ToolDefinition{
		Meta:   ToolMetadata{ID: "slow"},
		Schema: schema.NoParams(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))

	result := NewExecutor(r).Execute(context.Background(), "slow", nil, ExecuteOptions{Timeout: 20 * time.Millisecond})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "timed out after 20ms")
}

func TestExecuteOptionTimeoutExtendsPastToolTimeout(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ToolDefinition{
		Meta:   ToolMetadata{ID: "briefly-slow", Timeout: 10 * time.Millisecond},
		Schema: schema.NoParams(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(50 * time.Millisecond):
				return "done", nil
			}
		},
	}))

	// The per-call timeout wins outright, even when larger than the tool's.
	result := NewExecutor(r).Execute(context.Background(), "briefly-slow", nil, ExecuteOptions{Timeout: time.Second})
	require.True(t, result.Success)
	assert.Equal(t, "done", result.Content)
}

func TestEffectiveTimeoutHonorsDeclaredValue(t *testing.T) {
	long := &ToolDefinition{Meta: ToolMetadata{ID: "long", Timeout: 60 * time.Second}}
	assert.Equal(t, 60*time.Second, long.EffectiveTimeout())

	unset := &ToolDefinition{Meta: ToolMetadata{ID: "unset"}}
	assert.Equal(t, DefaultTimeout, unset.EffectiveTimeout())
}

func TestExecuteBoundsContextIgnoringHandler(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ToolDefinition{
		Meta:   ToolMetadata{ID: "stubborn", Timeout: 50 * time.Millisecond},
		Schema: schema.NoParams(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			// Ignores its context entirely.
			time.Sleep(2 * time.Second)
			return "too late", nil
		},
	}))

	started := time.Now()
	result := NewExecutor(r).Execute(context.Background(), "stubborn", nil, ExecuteOptions{})
	wall := time.Since(started)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "timed out after 50ms")
	assert.Less(t, wall, time.Second, "Execute must return at the deadline, not the handler's pace")
}

func TestDeduplicateSources(t *testing.T) {
	sources := []AgentSource{
		{Title: "Standup", Path: "notes/standup.md", Score: 0.4},
		{Title: "Roadmap", Path: "notes/roadmap.md", Score: 0.9},
		{Title: "Standup duplicate", Path: "Notes/Standup.md", Score: 0.8},
		{Title: "roadmap", Path: "", Score: 0.1},
	}

	deduped := DeduplicateSources(sources)
	require.Len(t, deduped, 3)

	// First occurrence keeps its position; the best score survives.
	assert.Equal(t, "notes/standup.md", deduped[0].Path)
	assert.InDelta(t, 0.8, deduped[0].Score, 1e-9)
	assert.Equal(t, "notes/roadmap.md", deduped[1].Path)

	// Pathless entries fall back to title keying; "roadmap" is distinct from
	// the path-keyed entry.
	assert.Equal(t, "roadmap", deduped[2].Title)

	// Idempotent.
	assert.Equal(t, deduped, DeduplicateSources(deduped))
}

func TestDeduplicateSourcesEmptyKeyKept(t *testing.T) {
	sources := []AgentSource{{Score: 0.1}, {Score: 0.2}}
	assert.Len(t, DeduplicateSources(sources), 2)
}
