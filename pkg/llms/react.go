package llms

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Textual tool-call fallback for providers without native tool calling: the
// tool catalog is rendered into the system prompt and the model is asked to
// emit fenced JSON blocks, which ParseTextToolCalls extracts from its output.

const toolFence = "```tool"

// RenderToolCatalog renders the tool catalog and the textual calling
// protocol for inclusion in a system prompt.
func RenderToolCatalog(tools []ToolDefinition) string {
	if len(tools) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Available tools\n\n")
	b.WriteString("To call a tool, emit a fenced block of the form:\n\n")
	b.WriteString("```tool\n{\"name\": \"<tool name>\", \"arguments\": {...}}\n```\n\n")
	b.WriteString("Emit one block per call. When you have the final answer, reply without tool blocks.\n\n")

	for _, tool := range tools {
		params, _ := json.Marshal(tool.Parameters)
		fmt.Fprintf(&b, "- %s: %s\n  parameters: %s\n", tool.Name, tool.Description, params)
	}
	return b.String()
}

// ParseTextToolCalls extracts textual tool calls from model output. It
// returns the parsed calls in order of appearance and the text with the
// blocks removed. Blocks that do not parse are left in the text untouched.
func ParseTextToolCalls(text string) ([]ToolCall, string) {
	var calls []ToolCall
	var kept strings.Builder

	rest := text
	for {
		start := strings.Index(rest, toolFence)
		if start < 0 {
			kept.WriteString(rest)
			break
		}

		bodyStart := start + len(toolFence)
		end := strings.Index(rest[bodyStart:], "```")
		if end < 0 {
			kept.WriteString(rest)
			break
		}

		body := strings.TrimSpace(rest[bodyStart : bodyStart+end])

		var envelope struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(body), &envelope); err != nil || envelope.Name == "" {
			// Not a tool call after all; keep the block verbatim.
			kept.WriteString(rest[:bodyStart+end+3])
		} else {
			kept.WriteString(rest[:start])
			args := envelope.Arguments
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, ToolCall{Name: envelope.Name, Args: args})
		}

		rest = rest[bodyStart+end+3:]
	}

	return calls, strings.TrimSpace(kept.String())
}
