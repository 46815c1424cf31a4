package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vaultpilot/vaultpilot/pkg/httpclient"
)

// OpenAIProvider speaks the OpenAI chat-completions protocol, which most
// self-hosted gateways (Ollama, vLLM, LiteLLM) also expose.
type OpenAIProvider struct {
	config     OpenAIConfig
	httpClient *httpclient.Client
}

type OpenAIConfig struct {
	Host        string        `yaml:"host" json:"host,omitempty" jsonschema:"title=API Host,default=https://api.openai.com/v1"`
	APIKey      string        `yaml:"api_key" json:"api_key,omitempty" jsonschema:"title=API Key"`
	Model       string        `yaml:"model" json:"model,omitempty" jsonschema:"title=Model,default=gpt-4o"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,default=4096"`
	Temperature float64       `yaml:"temperature" json:"temperature,omitempty" jsonschema:"title=Temperature"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout,omitempty"`

	// NativeToolCalling is off for gateways that proxy models without
	// function-calling support; the textual protocol is used instead.
	NativeToolCalling *bool `yaml:"native_tool_calling" json:"native_tool_calling,omitempty" jsonschema:"title=Native Tool Calling,default=true"`
}

func (c *OpenAIConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "gpt-4o"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}
	if c.NativeToolCalling == nil {
		enabled := true
		c.NativeToolCalling = &enabled
	}
}

func NewOpenAIProvider(config OpenAIConfig, opts ...httpclient.Option) *OpenAIProvider {
	config.SetDefaults()
	return &OpenAIProvider{
		config:     config,
		httpClient: httpclient.New(opts...),
	}
}

func (p *OpenAIProvider) GetModelName() string {
	return p.config.Model
}

func (p *OpenAIProvider) Capabilities() Capabilities {
	return Capabilities{
		NativeToolCalling: p.config.NativeToolCalling == nil || *p.config.NativeToolCalling,
		MultiPartContent:  true,
	}
}

type openAIRequest struct {
	Model         string          `json:"model"`
	Messages      []openAIMessage `json:"messages"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	Temperature   float64         `json:"temperature"`
	Stream        bool            `json:"stream"`
	StreamOptions *streamOptions  `json:"stream_options,omitempty"`
	Tools         []openAITool    `json:"tools,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    any              `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIToolCall struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type openAIStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content   string           `json:"content,omitempty"`
			ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *openAIError `json:"error,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// GenerateStreaming sends one chat-completions request and translates SSE
// events into stream chunks. It always emits a final ChunkDone unless the
// request itself fails.
func (p *OpenAIProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition, out chan<- StreamChunk) error {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	request := p.buildRequest(messages, tools)
	requestBody, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Host+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if apiErr := parseErrorBody(body); apiErr != nil {
			return fmt.Errorf("API request failed with status %d: %s (type: %s, code: %s)",
				resp.StatusCode, apiErr.Message, apiErr.Type, apiErr.Code)
		}
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return p.consumeStream(ctx, resp.Body, out)
}

func (p *OpenAIProvider) buildRequest(messages []Message, tools []ToolDefinition) openAIRequest {
	request := openAIRequest{
		Model:         p.config.Model,
		Messages:      make([]openAIMessage, 0, len(messages)),
		MaxTokens:     p.config.MaxTokens,
		Temperature:   p.config.Temperature,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}

	for _, msg := range messages {
		request.Messages = append(request.Messages, toOpenAIMessage(msg))
	}

	for _, tool := range tools {
		request.Tools = append(request.Tools, openAITool{
			Type: "function",
			Function: openAIToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return request
}

func toOpenAIMessage(msg Message) openAIMessage {
	wire := openAIMessage{
		Role:       msg.Role,
		ToolCallID: msg.ToolCallID,
		Name:       msg.Name,
	}

	if len(msg.Parts) > 0 {
		parts := make([]openAIContentPart, 0, len(msg.Parts))
		for _, part := range msg.Parts {
			switch part.Type {
			case ContentPartTypeImageURL:
				parts = append(parts, openAIContentPart{
					Type:     "image_url",
					ImageURL: &openAIImageURL{URL: part.Data},
				})
			case ContentPartTypeImageBase64:
				parts = append(parts, openAIContentPart{
					Type:     "image_url",
					ImageURL: &openAIImageURL{URL: fmt.Sprintf("data:%s;base64,%s", part.MediaType, part.Data)},
				})
			default:
				parts = append(parts, openAIContentPart{Type: "text", Text: part.Text})
			}
		}
		wire.Content = parts
	} else {
		wire.Content = msg.Content
	}

	for index, call := range msg.ToolCalls {
		args, _ := json.Marshal(call.Args)
		wireCall := openAIToolCall{
			Index: index,
			ID:    call.ID,
			Type:  "function",
		}
		wireCall.Function.Name = call.Name
		wireCall.Function.Arguments = string(args)
		wire.ToolCalls = append(wire.ToolCalls, wireCall)
	}
	return wire
}

func (p *OpenAIProvider) consumeStream(ctx context.Context, body io.Reader, out chan<- StreamChunk) error {
	reader := bufio.NewReader(body)

	totalTokens := 0
	finishReason := ""

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 || !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		line = line[6:]

		if bytes.Equal(line, []byte("[DONE]")) {
			break
		}

		var streamResp openAIStreamResponse
		if err := json.Unmarshal(line, &streamResp); err != nil {
			continue
		}

		if streamResp.Error != nil {
			return fmt.Errorf("API error: %s", streamResp.Error.Message)
		}
		if streamResp.Usage != nil {
			totalTokens = streamResp.Usage.TotalTokens
		}
		if len(streamResp.Choices) == 0 {
			continue
		}
		choice := streamResp.Choices[0]

		if choice.Delta.Content != "" {
			out <- StreamChunk{Type: ChunkText, Text: choice.Delta.Content}
		}

		for _, call := range choice.Delta.ToolCalls {
			out <- StreamChunk{
				Type:      ChunkToolCallDelta,
				Index:     call.Index,
				ID:        call.ID,
				NameDelta: call.Function.Name,
				ArgsDelta: call.Function.Arguments,
			}
		}

		if choice.FinishReason != "" {
			finishReason = strings.ToLower(choice.FinishReason)
		}
	}

	out <- StreamChunk{
		Type:         ChunkDone,
		Tokens:       totalTokens,
		FinishReason: finishReason,
	}
	return nil
}

func parseErrorBody(body []byte) *openAIError {
	var envelope struct {
		Error *openAIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	return envelope.Error
}
