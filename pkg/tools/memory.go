package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaultpilot/vaultpilot/pkg/schema"
)

// MemoryWriter persists long-term facts about the user.
type MemoryWriter interface {
	Upsert(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// NewMemoryUpdateTool creates the memory_update tool. It runs in the
// background: the narrator does not surface its progress.
func NewMemoryUpdateTool(store MemoryWriter) *ToolDefinition {
	return &ToolDefinition{
		Meta: ToolMetadata{
			ID:          "memory_update",
			DisplayName: "Update memory",
			Description: "Remember or forget a long-term fact about the user. Use a short stable key and a concise value.",
			Category:    CategoryMemory,
			Permission:  PermissionWrite,
			Background:  true,
		},
		Schema: &schema.ObjectSchema{
			Properties: map[string]*schema.FieldSchema{
				"action": schema.Enum("Whether to store or remove the fact", "remember", "forget"),
				"key":    schema.String("Short stable identifier for the fact"),
				"value":  schema.String("The fact to remember; ignored when forgetting").Opt(),
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			action, _ := args["action"].(string)
			key, _ := args["key"].(string)
			value, _ := args["value"].(string)

			key = strings.TrimSpace(key)
			if key == "" {
				return nil, fmt.Errorf("key must not be empty")
			}

			switch action {
			case "remember":
				if strings.TrimSpace(value) == "" {
					return nil, fmt.Errorf("value must not be empty when remembering")
				}
				if err := store.Upsert(ctx, key, value); err != nil {
					return nil, fmt.Errorf("failed to store memory: %w", err)
				}
				return fmt.Sprintf("Remembered '%s'.", key), nil
			case "forget":
				if err := store.Delete(ctx, key); err != nil {
					return nil, fmt.Errorf("failed to remove memory: %w", err)
				}
				return fmt.Sprintf("Forgot '%s'.", key), nil
			default:
				return nil, fmt.Errorf("unknown action '%s'", action)
			}
		},
	}
}
