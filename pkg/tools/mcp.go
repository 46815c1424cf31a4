package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vaultpilot/vaultpilot/pkg/httpclient"
)

const (
	mcpProtocolVersion = "2024-11-05"
	mcpClientName      = "vaultpilot"
	mcpClientVersion   = "1.0.0"

	// DefaultSSETimeout bounds reading one SSE response.
	DefaultSSETimeout = 5 * time.Minute
)

// MCPConfig configures one MCP server connection.
type MCPConfig struct {
	// Name identifies the server; registered tools carry it as their Source.
	Name string `yaml:"name" json:"name"`

	// URL for HTTP transports (sse, streamable-http).
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Command plus Args/Env for the stdio transport.
	Command string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Filter limits which server tools are exposed. Empty means all.
	Filter []string `yaml:"filter,omitempty" json:"filter,omitempty"`

	MaxRetries int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	SSETimeout time.Duration `yaml:"sse_timeout,omitempty" json:"sse_timeout,omitempty"`
}

// MCPProvider connects to one MCP server and registers its tools as a batch.
// Reconnecting replaces the batch: tools that disappeared server-side are
// dropped from the registry.
type MCPProvider struct {
	cfg MCPConfig

	mu          sync.Mutex
	stdioClient *client.Client
	httpClient  *httpclient.Client
	sessionID   string
	filter      map[string]bool
}

func NewMCPProvider(cfg MCPConfig) (*MCPProvider, error) {
	if cfg.Name == "" {
		return nil, NewToolError("mcp", "configure", "server name is required", nil)
	}
	if cfg.URL == "" && cfg.Command == "" {
		return nil, NewToolError("mcp", "configure", "either url or command is required", nil)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.SSETimeout == 0 {
		cfg.SSETimeout = DefaultSSETimeout
	}

	var filter map[string]bool
	if len(cfg.Filter) > 0 {
		filter = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filter[name] = true
		}
	}

	return &MCPProvider{cfg: cfg, filter: filter}, nil
}

func (p *MCPProvider) Name() string { return p.cfg.Name }

// Connect establishes the connection, discovers the server's tools, and
// swaps them into the registry in place of any previous batch from this
// server.
func (p *MCPProvider) Connect(ctx context.Context, registry *Registry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var defs []*ToolDefinition
	var err error
	if p.cfg.Command != "" {
		defs, err = p.connectStdio(ctx)
	} else {
		defs, err = p.connectHTTP(ctx)
	}
	if err != nil {
		return NewToolError("mcp", "connect", fmt.Sprintf("server '%s'", p.cfg.Name), err)
	}

	registry.RemoveSource(p.cfg.Name)
	if err := registry.RegisterMany(defs); err != nil {
		return err
	}

	slog.Info("Connected to MCP server", "server", p.cfg.Name, "tools", len(defs))
	return nil
}

// Close shuts down the stdio subprocess, if any.
func (p *MCPProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdioClient != nil {
		err := p.stdioClient.Close()
		p.stdioClient = nil
		return err
	}
	return nil
}

func (p *MCPProvider) connectStdio(ctx context.Context) ([]*ToolDefinition, error) {
	if p.stdioClient != nil {
		_ = p.stdioClient.Close()
		p.stdioClient = nil
	}

	mcpClient, err := client.NewStdioMCPClient(p.cfg.Command, envList(p.cfg.Env), p.cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: mcpClientName, Version: mcpClientVersion}
	initReq.Params.ProtocolVersion = mcpProtocolVersion
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("failed to initialize MCP: %w", err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	p.stdioClient = mcpClient

	var defs []*ToolDefinition
	for _, remote := range listResp.Tools {
		if p.filter != nil && !p.filter[remote.Name] {
			continue
		}
		defs = append(defs, p.wrapTool(remote.Name, remote.Description, stdioSchema(remote.InputSchema)))
	}
	return defs, nil
}

func (p *MCPProvider) connectHTTP(ctx context.Context) ([]*ToolDefinition, error) {
	p.httpClient = httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		httpclient.WithMaxRetries(p.cfg.MaxRetries),
		httpclient.WithBaseDelay(2*time.Second),
	)

	initResp, err := p.rpc(ctx, "initialize", map[string]any{
		"protocolVersion": mcpProtocolVersion,
		"clientInfo":      map[string]any{"name": mcpClientName, "version": mcpClientVersion},
		"capabilities":    map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MCP: %w", err)
	}
	if initResp.Error != nil {
		return nil, fmt.Errorf("MCP init error: %s", initResp.Error.Message)
	}

	listResp, err := p.rpc(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	if listResp.Error != nil {
		return nil, fmt.Errorf("MCP list error: %s", listResp.Error.Message)
	}

	resultMap, ok := listResp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from tools/list")
	}
	toolsList, ok := resultMap["tools"].([]any)
	if !ok {
		return nil, fmt.Errorf("missing tools in tools/list response")
	}

	var defs []*ToolDefinition
	for _, raw := range toolsList {
		toolMap, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		desc, _ := toolMap["description"].(string)
		if name == "" || (p.filter != nil && !p.filter[name]) {
			continue
		}
		wireSchema, _ := toolMap["inputSchema"].(map[string]any)
		defs = append(defs, p.wrapTool(name, desc, wireSchema))
	}
	return defs, nil
}

func (p *MCPProvider) wrapTool(name, description string, wireSchema map[string]any) *ToolDefinition {
	return &ToolDefinition{
		Meta: ToolMetadata{
			ID:          name,
			DisplayName: name,
			Description: description,
			Category:    CategoryExternalProvider,
			Permission:  PermissionRead,
			Source:      p.cfg.Name,
		},
		WireSchema: wireSchema,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return p.call(ctx, name, args)
		},
	}
}

func (p *MCPProvider) call(ctx context.Context, name string, args map[string]any) (any, error) {
	p.mu.Lock()
	stdio := p.stdioClient
	p.mu.Unlock()

	if stdio != nil {
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args

		resp, err := stdio.CallTool(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("MCP call failed: %w", err)
		}
		return flattenMCPContent(resp)
	}

	resp, err := p.rpc(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, fmt.Errorf("MCP call failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("MCP error: %s", resp.Error.Message)
	}
	return resp.Result, nil
}

func flattenMCPContent(result *mcp.CallToolResult) (string, error) {
	var b strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			b.WriteString(text.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("%s", b.String())
	}
	return b.String(), nil
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpc sends one JSON-RPC request over HTTP; SSE responses are read until the
// first complete message.
func (p *MCPProvider) rpc(ctx context.Context, method string, params any) (*jsonRPCResponse, error) {
	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if p.sessionID != "" {
		httpReq.Header.Set("mcp-session-id", p.sessionID)
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if sid := httpResp.Header.Get("mcp-session-id"); sid != "" {
		p.sessionID = sid
	}

	if httpResp.StatusCode != http.StatusOK {
		responseBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("HTTP error %d: %s", httpResp.StatusCode, string(responseBody))
	}

	if strings.Contains(httpResp.Header.Get("Content-Type"), "text/event-stream") {
		return p.readSSEResponse(httpResp)
	}

	responseBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var resp jsonRPCResponse
	if err := json.Unmarshal(responseBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// readSSEResponse reads the first complete JSON-RPC message from an SSE body.
func (p *MCPProvider) readSSEResponse(httpResp *http.Response) (*jsonRPCResponse, error) {
	type result struct {
		response *jsonRPCResponse
		err      error
	}
	resultChan := make(chan result, 1)

	go func() {
		reader := bufio.NewReader(httpResp.Body)
		var data strings.Builder

		flush := func() *jsonRPCResponse {
			if data.Len() == 0 {
				return nil
			}
			var resp jsonRPCResponse
			if err := json.Unmarshal([]byte(data.String()), &resp); err != nil {
				data.Reset()
				return nil
			}
			return &resp
		}

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				break
			}
			line = strings.TrimSpace(line)

			if line == "" {
				if resp := flush(); resp != nil {
					resultChan <- result{response: resp}
					return
				}
				continue
			}
			if strings.HasPrefix(line, "data:") {
				data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			}
		}

		if resp := flush(); resp != nil {
			resultChan <- result{response: resp}
			return
		}
		resultChan <- result{err: fmt.Errorf("SSE stream ended without complete message")}
	}()

	select {
	case res := <-resultChan:
		return res.response, res.err
	case <-time.After(p.cfg.SSETimeout):
		return nil, fmt.Errorf("timed out waiting for SSE response")
	}
}

func envList(env map[string]string) []string {
	result := make([]string, 0, len(env))
	for key, value := range env {
		result = append(result, key+"="+value)
	}
	return result
}

func stdioSchema(input mcp.ToolInputSchema) map[string]any {
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil
	}
	return out
}
