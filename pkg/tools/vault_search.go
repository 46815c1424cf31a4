package tools

import (
	"context"
	"fmt"

	"github.com/vaultpilot/vaultpilot/pkg/schema"
)

// LocalSearchType tags vault_search payloads so the agent loop can extract
// sources and rewrap the result for the model.
const LocalSearchType = "local_search"

// SearchDocument is one retrieved note chunk in a vault_search payload.
type SearchDocument struct {
	Title   string  `json:"title"`
	Path    string  `json:"path"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// LocalSearchPayload is the wire shape of a vault_search result.
type LocalSearchPayload struct {
	Type      string           `json:"type"`
	Query     string           `json:"query"`
	Documents []SearchDocument `json:"documents"`
}

// NoteSearcher retrieves note chunks relevant to a free-text query.
type NoteSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchDocument, error)
}

const defaultSearchLimit = 10

// NewVaultSearchTool wires the vault's note index as a model-invokable search
// tool.
func NewVaultSearchTool(searcher NoteSearcher) *ToolDefinition {
	return &ToolDefinition{
		Meta: ToolMetadata{
			ID:            "vault_search",
			DisplayName:   "Vault search",
			Description:   "Search the user's notes for passages relevant to a query. Returns matching note excerpts with titles and paths.",
			Category:      CategorySearch,
			AlwaysEnabled: true,
			RequiresVault: true,
			Permission:    PermissionRead,
		},
		Schema: &schema.ObjectSchema{
			Properties: map[string]*schema.FieldSchema{
				"query": schema.String("What to search for in the vault"),
				"limit": schema.Integer("Maximum number of results (default 10)").WithBounds(1, 50).Opt(),
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)

			limit := defaultSearchLimit
			if raw, ok := args["limit"].(float64); ok && raw > 0 {
				limit = int(raw)
			}

			docs, err := searcher.Search(ctx, query, limit)
			if err != nil {
				return nil, fmt.Errorf("vault search failed: %w", err)
			}
			if docs == nil {
				docs = []SearchDocument{}
			}

			return LocalSearchPayload{
				Type:      LocalSearchType,
				Query:     query,
				Documents: docs,
			}, nil
		},
	}
}
