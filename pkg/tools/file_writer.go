package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vaultpilot/vaultpilot/pkg/schema"
)

// NoteWriterConfig bounds what write_note may touch.
type NoteWriterConfig struct {
	// VaultRoot is the directory all paths resolve under. Required.
	VaultRoot string `yaml:"vault_root,omitempty"`

	// MaxFileSize caps note content in bytes. Zero means 1MB.
	MaxFileSize int `yaml:"max_file_size,omitempty"`
}

func (c *NoteWriterConfig) SetDefaults() {
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 1 << 20
	}
}

// NewWriteNoteTool creates the write_note tool. Paths are confined to the
// vault root and must carry a .md extension; writes outside the vault are
// rejected before touching the filesystem.
func NewWriteNoteTool(cfg NoteWriterConfig) *ToolDefinition {
	cfg.SetDefaults()

	return &ToolDefinition{
		Meta: ToolMetadata{
			ID:            "write_note",
			DisplayName:   "Write note",
			Description:   "Create a new note or overwrite an existing note in the vault with the given markdown content.",
			Category:      CategoryFile,
			RequiresVault: true,
			Permission:    PermissionWrite,
		},
		Schema: &schema.ObjectSchema{
			Properties: map[string]*schema.FieldSchema{
				"path":      schema.String("Note path relative to the vault root, ending in .md"),
				"content":   schema.String("Markdown content of the note"),
				"overwrite": schema.Boolean("Replace the note if it already exists (default false)").Opt(),
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			relPath, _ := args["path"].(string)
			content, _ := args["content"].(string)
			overwrite, _ := args["overwrite"].(bool)

			resolved, err := resolveVaultPath(cfg.VaultRoot, relPath)
			if err != nil {
				return nil, err
			}
			if len(content) > cfg.MaxFileSize {
				return nil, fmt.Errorf("note content exceeds maximum size of %d bytes", cfg.MaxFileSize)
			}

			if _, err := os.Stat(resolved); err == nil && !overwrite {
				return nil, fmt.Errorf("note '%s' already exists; pass overwrite to replace it", relPath)
			}

			if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create note directory: %w", err)
			}
			if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
				return nil, fmt.Errorf("failed to write note: %w", err)
			}

			return map[string]any{
				"path":  relPath,
				"bytes": len(content),
			}, nil
		},
	}
}

func resolveVaultPath(root, relPath string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("no vault root configured")
	}
	if relPath == "" {
		return "", fmt.Errorf("path must not be empty")
	}
	if !strings.HasSuffix(strings.ToLower(relPath), ".md") {
		return "", fmt.Errorf("path must end in .md")
	}

	resolved := filepath.Join(root, filepath.Clean(relPath))
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve vault root: %w", err)
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to resolve note path: %w", err)
	}
	if resolvedAbs != rootAbs && !strings.HasPrefix(resolvedAbs, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("path '%s' escapes the vault", relPath)
	}
	return resolvedAbs, nil
}
