package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/philippgille/chromem-go"

	"github.com/vaultpilot/vaultpilot/pkg/agent"
	"github.com/vaultpilot/vaultpilot/pkg/config"
	vaultcontext "github.com/vaultpilot/vaultpilot/pkg/context"
	"github.com/vaultpilot/vaultpilot/pkg/llms"
	"github.com/vaultpilot/vaultpilot/pkg/memory"
	"github.com/vaultpilot/vaultpilot/pkg/tools"
)

// appRuntime bundles everything a command needs to run the agent.
type appRuntime struct {
	cfg      *config.Config
	agent    *agent.Agent
	store    *vaultcontext.DocumentStore
	registry *tools.Registry

	db       *sql.DB
	longterm *memory.LongTermStore
	mcps     []*tools.MCPProvider
}

// buildRuntime assembles the full stack from configuration: sqlite stores,
// the vector index, the tool registry with builtins and MCP servers, and
// the agent itself.
func buildRuntime(ctx context.Context, cfg *config.Config) (*appRuntime, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := memory.Open(filepath.Join(cfg.DataDir, "vaultpilot.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	history, err := memory.NewHistoryStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	longterm, err := memory.NewLongTermStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	store, err := openDocumentStore(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	provider := llms.NewOpenAIProvider(cfg.LLM)

	registry := tools.NewRegistry()
	builtins := []*tools.ToolDefinition{
		tools.NewCurrentTimeTool(),
		tools.NewVaultSearchTool(store),
		tools.NewWebFetchTool(cfg.WebFetch),
		tools.NewMemoryUpdateTool(longterm),
	}
	if cfg.Vault != "" {
		builtins = append(builtins, tools.NewWriteNoteTool(tools.NoteWriterConfig{VaultRoot: cfg.Vault}))
	}
	for _, def := range builtins {
		if err := registry.Register(def); err != nil {
			db.Close()
			return nil, err
		}
	}

	var mcps []*tools.MCPProvider
	for _, mcpCfg := range cfg.MCP {
		mcp, err := tools.NewMCPProvider(mcpCfg)
		if err != nil {
			slog.Warn("Skipping MCP server", "server", mcpCfg.Name, "error", err)
			continue
		}
		if err := mcp.Connect(ctx, registry); err != nil {
			slog.Warn("MCP server unavailable", "server", mcpCfg.Name, "error", err)
			continue
		}
		mcps = append(mcps, mcp)
	}

	retriever := vaultcontext.NewRetriever(cfg.Retriever, store)
	preparer := vaultcontext.NewPreparer(cfg.Preparer, registry, retriever)
	expander := vaultcontext.NewLLMQueryExpander(provider)

	a := agent.New(cfg.Agent, provider, preparer, tools.NewExecutor(registry), expander, history)

	return &appRuntime{
		cfg:      cfg,
		agent:    a,
		store:    store,
		registry: registry,
		db:       db,
		longterm: longterm,
		mcps:     mcps,
	}, nil
}

func openDocumentStore(cfg *config.Config) (*vaultcontext.DocumentStore, error) {
	storeCfg := cfg.Store
	if storeCfg.PersistPath == "" {
		storeCfg.PersistPath = filepath.Join(cfg.DataDir, "index")
	}

	embed := chromem.NewEmbeddingFuncOpenAICompat(
		cfg.LLM.Host,
		cfg.LLM.APIKey,
		cfg.EmbeddingModel,
		nil,
	)
	return vaultcontext.NewDocumentStore(storeCfg, embed)
}

func agentRequest(rt *appRuntime, sessionID string, toolsEnabled bool, message string, facts []string) agent.RunRequest {
	return agent.RunRequest{
		Message:          message,
		SessionID:        sessionID,
		MemoryFacts:      facts,
		UserEnabledTools: rt.cfg.EnabledToolSet(),
		ToolsEnabled:     toolsEnabled,
		VaultAvailable:   rt.cfg.Vault != "",
	}
}

// loadMemoryFacts flattens the long-term store for the system prompt. A
// failed read just means an un-personalized turn.
func loadMemoryFacts(ctx context.Context, rt *appRuntime) []string {
	facts, err := rt.longterm.List(ctx)
	if err != nil {
		slog.Warn("Failed to load memory facts", "error", err)
		return nil
	}
	out := make([]string, 0, len(facts))
	for _, fact := range facts {
		out = append(out, fmt.Sprintf("%s: %s", fact.Key, fact.Value))
	}
	return out
}

func (rt *appRuntime) Close() {
	for _, mcp := range rt.mcps {
		if err := mcp.Close(); err != nil {
			slog.Warn("Failed to close MCP server", "server", mcp.Name(), "error", err)
		}
	}
	if err := rt.db.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}
