// Package config loads and validates the vaultpilot YAML configuration.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vaultpilot/vaultpilot/pkg/agent"
	vaultcontext "github.com/vaultpilot/vaultpilot/pkg/context"
	"github.com/vaultpilot/vaultpilot/pkg/llms"
	"github.com/vaultpilot/vaultpilot/pkg/tools"
)

// BoolPtr returns a pointer to the given bool value.
func BoolPtr(b bool) *bool {
	return &b
}

// Config is the root configuration.
type Config struct {
	// Vault is the root directory of the user's notes. Empty disables
	// vault-dependent tools.
	Vault string `yaml:"vault,omitempty" json:"vault,omitempty" jsonschema:"title=Vault Directory,description=Root directory of the markdown vault"`

	// DataDir holds the sqlite databases and the vector index. Defaults
	// to ".vaultpilot" under the vault (or the working directory when no
	// vault is configured).
	DataDir string `yaml:"data_dir,omitempty" json:"data_dir,omitempty" jsonschema:"title=Data Directory,description=Directory for databases and the vector index"`

	// ToolsEnabled is the global tool-use switch. Defaults to true.
	ToolsEnabled *bool `yaml:"tools_enabled,omitempty" json:"tools_enabled,omitempty" jsonschema:"title=Tools Enabled,default=true"`

	// EnabledTools is the user's opt-in selection of non-default tools.
	EnabledTools []string `yaml:"enabled_tools,omitempty" json:"enabled_tools,omitempty" jsonschema:"title=Enabled Tools,description=Opt-in list of non-default tool IDs"`

	// EmbeddingModel names the embedding model used for the vault index.
	EmbeddingModel string `yaml:"embedding_model,omitempty" json:"embedding_model,omitempty" jsonschema:"title=Embedding Model,default=text-embedding-3-small"`

	LLM       llms.OpenAIConfig                `yaml:"llm,omitempty" json:"llm,omitempty"`
	Agent     agent.Config                     `yaml:"agent,omitempty" json:"agent,omitempty"`
	Preparer  vaultcontext.PreparerConfig      `yaml:"preparer,omitempty" json:"preparer,omitempty"`
	Store     vaultcontext.DocumentStoreConfig `yaml:"store,omitempty" json:"store,omitempty"`
	Retriever vaultcontext.RetrieverConfig     `yaml:"retriever,omitempty" json:"retriever,omitempty"`
	WebFetch  tools.WebFetchConfig             `yaml:"web_fetch,omitempty" json:"web_fetch,omitempty"`
	MCP       []tools.MCPConfig                `yaml:"mcp,omitempty" json:"mcp,omitempty"`
	Logging   LoggingConfig                    `yaml:"logging,omitempty" json:"logging,omitempty"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"enum=text,enum=json,default=text"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

func (c *Config) SetDefaults() {
	if c.DataDir == "" {
		if c.Vault != "" {
			c.DataDir = c.Vault + "/.vaultpilot"
		} else {
			c.DataDir = ".vaultpilot"
		}
	}
	if c.ToolsEnabled == nil {
		c.ToolsEnabled = BoolPtr(true)
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "text-embedding-3-small"
	}
	c.LLM.SetDefaults()
	c.Agent.SetDefaults()
	c.Preparer.SetDefaults()
	c.Store.SetDefaults()
	c.Retriever.SetDefaults()
	c.WebFetch.SetDefaults()
	c.Logging.SetDefaults()
}

func (c *Config) Validate() error {
	if c.Vault != "" {
		info, err := os.Stat(c.Vault)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path '%s' is not a directory", c.Vault)
		}
	}
	if c.LLM.Host == "" {
		return fmt.Errorf("llm host is required")
	}
	seen := map[string]bool{}
	for _, mcp := range c.MCP {
		if mcp.Name == "" {
			return fmt.Errorf("mcp server entries require a name")
		}
		if seen[mcp.Name] {
			return fmt.Errorf("duplicate mcp server name '%s'", mcp.Name)
		}
		seen[mcp.Name] = true
	}
	return nil
}

// EnabledToolSet converts the opt-in list to the lookup shape the registry
// takes.
func (c *Config) EnabledToolSet() map[string]bool {
	set := make(map[string]bool, len(c.EnabledTools))
	for _, id := range c.EnabledTools {
		set[id] = true
	}
	return set
}

// Load reads a config file, expanding ${ENV_VAR} references. A missing path
// yields the defaults. A .env file next to the working directory is loaded
// first when present.
func Load(path string) (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		expanded := expandEnvVars(string(raw))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envVarPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
}

func expandEnvVars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.withDefault.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})

	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.braced.FindStringSubmatch(match)
		return os.Getenv(parts[1])
	})

	return s
}
