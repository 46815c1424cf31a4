package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/vaultpilot/vaultpilot/pkg/schema"
)

// NewCurrentTimeTool creates the current_time tool. Always enabled; lets the
// model anchor relative dates.
func NewCurrentTimeTool() *ToolDefinition {
	return &ToolDefinition{
		Meta: ToolMetadata{
			ID:            "current_time",
			DisplayName:   "Current time",
			Description:   "Get the current date and time, optionally in a named IANA timezone.",
			Category:      CategoryTime,
			AlwaysEnabled: true,
			Permission:    PermissionRead,
			Timeout:       5 * time.Second,
		},
		Schema: &schema.ObjectSchema{
			Properties: map[string]*schema.FieldSchema{
				"timezone": schema.String("IANA timezone name, e.g. Europe/Berlin (default: local)").Opt(),
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			now := time.Now()
			if tz, ok := args["timezone"].(string); ok && tz != "" {
				loc, err := time.LoadLocation(tz)
				if err != nil {
					return nil, fmt.Errorf("unknown timezone '%s'", tz)
				}
				now = now.In(loc)
			}
			return map[string]any{
				"iso":      now.Format(time.RFC3339),
				"weekday":  now.Weekday().String(),
				"timezone": now.Location().String(),
			}, nil
		},
	}
}
