package llms

import (
	"encoding/json"
	"sort"
	"strings"
)

// ResponseAssembler reassembles one streamed model response: text deltas are
// concatenated, tool-call fragments are accumulated by position index until
// the stream ends. Providers that deliver complete tool calls feed them
// through unchanged.
type ResponseAssembler struct {
	text    strings.Builder
	partial map[int]*partialCall
	order   []int
	tokens  int
	finish  string
}

type partialCall struct {
	id       string
	name     strings.Builder
	args     strings.Builder
	complete *ToolCall
}

func NewResponseAssembler() *ResponseAssembler {
	return &ResponseAssembler{
		partial: make(map[int]*partialCall),
	}
}

// Feed consumes one stream chunk.
func (a *ResponseAssembler) Feed(chunk StreamChunk) {
	switch chunk.Type {
	case ChunkText:
		a.text.WriteString(chunk.Text)

	case ChunkToolCallDelta:
		pc := a.at(chunk.Index)
		if chunk.ID != "" {
			pc.id = chunk.ID
		}
		pc.name.WriteString(chunk.NameDelta)
		pc.args.WriteString(chunk.ArgsDelta)

	case ChunkToolCall:
		if chunk.ToolCall != nil {
			pc := a.at(chunk.Index)
			pc.complete = chunk.ToolCall
		}

	case ChunkDone:
		a.tokens = chunk.Tokens
		a.finish = strings.ToLower(chunk.FinishReason)
	}
}

func (a *ResponseAssembler) at(index int) *partialCall {
	pc, exists := a.partial[index]
	if !exists {
		pc = &partialCall{}
		a.partial[index] = pc
		a.order = append(a.order, index)
	}
	return pc
}

// Text returns the accumulated assistant text.
func (a *ResponseAssembler) Text() string {
	return a.text.String()
}

// ToolCalls returns the assembled tool calls in position order. Argument
// fragments that do not parse as JSON yield an empty argument map; schema
// validation downstream reports the problem to the model.
func (a *ResponseAssembler) ToolCalls() []ToolCall {
	if len(a.order) == 0 {
		return nil
	}

	sorted := make([]int, len(a.order))
	copy(sorted, a.order)
	sort.Ints(sorted)

	calls := make([]ToolCall, 0, len(sorted))
	for _, index := range sorted {
		pc := a.partial[index]
		if pc.complete != nil {
			calls = append(calls, *pc.complete)
			continue
		}

		call := ToolCall{
			ID:   pc.id,
			Name: pc.name.String(),
			Args: map[string]any{},
		}
		if raw := pc.args.String(); raw != "" {
			var args map[string]any
			if err := json.Unmarshal([]byte(raw), &args); err == nil {
				call.Args = args
			}
		}
		calls = append(calls, call)
	}
	return calls
}

// Metadata returns the terminal response metadata.
func (a *ResponseAssembler) Metadata() ResponseMetadata {
	return ResponseMetadata{
		WasTruncated: a.finish == FinishReasonLength,
		TokenUsage:   a.tokens,
	}
}

// Err reports the provider failure signal carried in the finish reason, if
// any.
func (a *ResponseAssembler) Err() error {
	if a.finish == FinishReasonMalformed {
		return ErrMalformedFunctionCall
	}
	return nil
}
