// Package llms defines the provider-neutral model contract: the message
// sequence sent each iteration, tool bindings, and the incremental event
// stream a provider yields.
package llms

import (
	"context"
	"errors"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type ContentPartType string

const (
	ContentPartTypeText        ContentPartType = "text"
	ContentPartTypeImageURL    ContentPartType = "image_url"
	ContentPartTypeImageBase64 ContentPartType = "image_base64"
)

type ContentPart struct {
	Type      ContentPartType `json:"type"`
	Text      string          `json:"text,omitempty"`
	MediaType string          `json:"media_type,omitempty"`
	Data      string          `json:"data,omitempty"`
}

// Message is one turn of the conversation sent to the model. Ordering is
// append-only and significant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`

	// Parts carries multi-part user content for providers that support it.
	Parts []ContentPart `json:"parts,omitempty"`

	// ToolCalls is set on assistant messages requesting tool invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and Name are set on tool-result messages.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"arguments"`
}

// ToolDefinition is the wire-format tool description bound to a model call.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ChunkType string

const (
	ChunkText          ChunkType = "text"
	ChunkToolCallDelta ChunkType = "tool_call_delta"
	ChunkToolCall      ChunkType = "tool_call"
	ChunkDone          ChunkType = "done"
)

// Finish reasons a provider may report on the done chunk.
const (
	FinishReasonStop      = "stop"
	FinishReasonLength    = "length"
	FinishReasonToolCalls = "tool_calls"
	FinishReasonMalformed = "malformed_function_call"
)

// StreamChunk is one event of a provider's incremental response stream.
// Tool-call name and argument text may arrive in fragments keyed by position
// index; ResponseAssembler reassembles them.
type StreamChunk struct {
	Type ChunkType

	Text string

	// Fragmented tool-call delivery.
	Index     int
	ID        string
	NameDelta string
	ArgsDelta string

	// Complete tool-call delivery.
	ToolCall *ToolCall

	// Terminal metadata.
	Tokens       int
	FinishReason string
}

// ResponseMetadata is the terminal metadata of one model response.
type ResponseMetadata struct {
	WasTruncated bool `json:"was_truncated"`
	TokenUsage   int  `json:"token_usage"`
}

// Capabilities reports what a provider supports. When NativeToolCalling is
// false, callers fall back to the textual tool-call protocol.
type Capabilities struct {
	NativeToolCalling bool
	MultiPartContent  bool
}

// ErrMalformedFunctionCall is surfaced when the provider signals that its
// native tool-calling output could not be parsed. It is a hard error for the
// run, never retried silently.
var ErrMalformedFunctionCall = errors.New("model returned a malformed function call")

// LLMProvider is the opaque model capability: an ordered message list plus
// optional tool bindings in, an incremental event stream out. The provider
// must stop sending and return promptly once ctx is cancelled.
type LLMProvider interface {
	GetModelName() string
	Capabilities() Capabilities
	GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition, out chan<- StreamChunk) error
}
