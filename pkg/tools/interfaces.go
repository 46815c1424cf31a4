// Package tools holds the tool registry, the permission and execution layer,
// and the built-in tool set.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/vaultpilot/vaultpilot/pkg/schema"
)

// ToolCategory groups tools for bulk enable/disable and provider replacement.
type ToolCategory string

const (
	CategorySearch           ToolCategory = "search"
	CategoryTime             ToolCategory = "time"
	CategoryFile             ToolCategory = "file"
	CategoryMedia            ToolCategory = "media"
	CategoryExternalProvider ToolCategory = "external-provider"
	CategoryMemory           ToolCategory = "memory"
	CategoryCustom           ToolCategory = "custom"
)

// Permission is the capability level a tool demands from the session.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAdmin Permission = "admin"
)

// DefaultTimeout bounds a single tool execution when neither the tool nor the
// caller asks for less.
const DefaultTimeout = 30 * time.Second

// ToolMetadata describes a tool independently of its behavior.
type ToolMetadata struct {
	// ID is the unique, stable registry key; re-registration overwrites.
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name"`
	Description string       `json:"description"`
	Category    ToolCategory `json:"category"`

	// AlwaysEnabled tools are bound to every agent run regardless of user
	// selection. Others are opt-in.
	AlwaysEnabled bool `json:"always_enabled,omitempty"`

	// RequiresVault tools are skipped entirely when no vault is open.
	RequiresVault bool `json:"requires_vault,omitempty"`

	// Permission defaults to read.
	Permission Permission `json:"permission,omitempty"`

	// Timeout of zero means DefaultTimeout.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Background tools run without narrating progress to the user.
	Background bool `json:"background,omitempty"`

	// AnnotatedFileOnly restricts the tool to files the session has
	// explicitly attached.
	AnnotatedFileOnly bool `json:"annotated_file_only,omitempty"`

	// CustomPromptInstructions is appended to the system prompt whenever
	// the tool is bound.
	CustomPromptInstructions string `json:"custom_prompt_instructions,omitempty"`

	// Source names the provider that registered the tool ("builtin" or an
	// MCP server name). Used for batch replacement.
	Source string `json:"source,omitempty"`
}

// Handler executes the tool. The returned value is serialized for the model:
// strings pass through, everything else is JSON-encoded.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// ToolDefinition is a registered tool: metadata, input schema, behavior.
type ToolDefinition struct {
	Meta    ToolMetadata
	Schema  *schema.ObjectSchema
	Handler Handler

	// WireSchema carries a pre-built JSON-schema map for tools whose schema
	// arrives over the wire (MCP). When set it is advertised to the model
	// as-is and argument validation is left to the serving side.
	WireSchema map[string]any
}

// EffectiveTimeout is the tool's declared timeout, falling back to the
// default when none is set. A per-call override takes precedence over both;
// see ExecuteOptions.
func (d *ToolDefinition) EffectiveTimeout() time.Duration {
	if d.Meta.Timeout > 0 {
		return d.Meta.Timeout
	}
	return DefaultTimeout
}

// CapabilityContext is what the session can offer a tool at permission-check
// time.
type CapabilityContext struct {
	VaultAvailable     bool
	HasWritePermission bool
	IsAnnotatedFile    bool
}

// PermissionCheckResult explains an allow/deny decision.
type PermissionCheckResult struct {
	Allowed  bool
	Reason   string
	Required Permission
}

// AgentSource is one retrieved document surfaced to the user as a citation.
type AgentSource struct {
	Title       string  `json:"title"`
	Path        string  `json:"path,omitempty"`
	Score       float64 `json:"score,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
}

// ToolError wraps failures of the tool layer with the component and action
// that produced them.
type ToolError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

func NewToolError(component, action, message string, err error) *ToolError {
	return &ToolError{Component: component, Action: action, Message: message, Err: err}
}
