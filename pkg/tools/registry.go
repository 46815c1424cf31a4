package tools

import (
	"fmt"
	"log/slog"

	"github.com/vaultpilot/vaultpilot/pkg/llms"
	"github.com/vaultpilot/vaultpilot/pkg/registry"
	"github.com/vaultpilot/vaultpilot/pkg/schema"
)

// Registry is the single source of truth for available tools. Registration
// order is preserved and determines tool-binding order.
type Registry struct {
	tools *registry.OrderedRegistry[*ToolDefinition]
}

func NewRegistry() *Registry {
	return &Registry{
		tools: registry.NewOrderedRegistry[*ToolDefinition](),
	}
}

// Register adds or overwrites one tool. The ID is the registry key; the
// permission defaults to read.
func (r *Registry) Register(def *ToolDefinition) error {
	if def == nil || def.Meta.ID == "" {
		return NewToolError("registry", "register", "tool definition requires an ID", nil)
	}
	if def.Handler == nil {
		return NewToolError("registry", "register", fmt.Sprintf("tool '%s' has no handler", def.Meta.ID), nil)
	}
	if def.Meta.Permission == "" {
		def.Meta.Permission = PermissionRead
	}
	r.tools.Put(def.Meta.ID, def)
	slog.Debug("Registered tool", "tool", def.Meta.ID, "category", def.Meta.Category, "source", def.Meta.Source)
	return nil
}

// RegisterMany registers a batch, stopping on the first failure.
func (r *Registry) RegisterMany(defs []*ToolDefinition) error {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Unregister(id string) bool {
	return r.tools.Remove(id)
}

func (r *Registry) Get(id string) (*ToolDefinition, bool) {
	return r.tools.Get(id)
}

func (r *Registry) List() []*ToolDefinition {
	return r.tools.List()
}

func (r *Registry) Count() int {
	return r.tools.Count()
}

// ResolveEnabled returns the tools bound to a run: always-enabled tools first
// in registration order, then user-enabled opt-in tools. Tools requiring a
// vault are skipped when none is available.
func (r *Registry) ResolveEnabled(userEnabled map[string]bool, vaultAvailable bool) []*ToolDefinition {
	var always, optIn []*ToolDefinition
	for _, def := range r.tools.List() {
		if def.Meta.RequiresVault && !vaultAvailable {
			continue
		}
		if def.Meta.AlwaysEnabled {
			always = append(always, def)
		} else if userEnabled[def.Meta.ID] {
			optIn = append(optIn, def)
		}
	}
	return append(always, optIn...)
}

// CheckPermission decides whether the session may invoke a tool. It fails
// closed: an unknown tool is denied, and each gate is checked in a fixed
// order so the reason is deterministic.
func (r *Registry) CheckPermission(id string, caps CapabilityContext) PermissionCheckResult {
	def, exists := r.tools.Get(id)
	if !exists {
		return PermissionCheckResult{
			Allowed: false,
			Reason:  fmt.Sprintf("tool '%s' is not registered", id),
		}
	}

	required := def.Meta.Permission
	if required == "" {
		required = PermissionRead
	}

	if def.Meta.RequiresVault && !caps.VaultAvailable {
		return PermissionCheckResult{
			Allowed:  false,
			Reason:   fmt.Sprintf("tool '%s' requires an open vault", id),
			Required: required,
		}
	}

	if required != PermissionRead && !caps.HasWritePermission {
		return PermissionCheckResult{
			Allowed:  false,
			Reason:   fmt.Sprintf("tool '%s' requires %s permission", id, required),
			Required: required,
		}
	}

	if def.Meta.AnnotatedFileOnly && !caps.IsAnnotatedFile {
		return PermissionCheckResult{
			Allowed:  false,
			Reason:   fmt.Sprintf("tool '%s' only operates on annotated files", id),
			Required: required,
		}
	}

	return PermissionCheckResult{Allowed: true, Required: required}
}

// ClearByCategory removes every tool the predicate matches and returns how
// many were removed.
func (r *Registry) ClearByCategory(match func(ToolCategory) bool) int {
	return r.tools.RemoveWhere(func(_ string, def *ToolDefinition) bool {
		return match(def.Meta.Category)
	})
}

// RemoveSource drops every tool a provider registered. Combined with
// RegisterMany this gives atomic-enough batch replacement on reconnect.
func (r *Registry) RemoveSource(source string) int {
	removed := r.tools.RemoveWhere(func(_ string, def *ToolDefinition) bool {
		return def.Meta.Source == source
	})
	if removed > 0 {
		slog.Info("Removed tool source", "source", source, "tools", removed)
	}
	return removed
}

// DescribeForModel renders the enabled tools as wire-format definitions for
// a model call.
func (r *Registry) DescribeForModel(userEnabled map[string]bool, vaultAvailable bool) []llms.ToolDefinition {
	enabled := r.ResolveEnabled(userEnabled, vaultAvailable)
	defs := make([]llms.ToolDefinition, 0, len(enabled))
	for _, def := range enabled {
		params := def.WireSchema
		if params == nil {
			params = schema.ToExecutionSchema(def.Schema)
		}
		defs = append(defs, llms.ToolDefinition{
			Name:        def.Meta.ID,
			Description: def.Meta.Description,
			Parameters:  params,
		})
	}
	return defs
}
