package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vaultpilot/vaultpilot/pkg/httpclient"
	"github.com/vaultpilot/vaultpilot/pkg/schema"
)

// WebFetchConfig bounds web_fetch requests.
type WebFetchConfig struct {
	Timeout         time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxRetries      int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	MaxResponseSize int64         `yaml:"max_response_size,omitempty" json:"max_response_size,omitempty"`
	DeniedHosts     []string      `yaml:"denied_hosts,omitempty" json:"denied_hosts,omitempty"`
	UserAgent       string        `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
}

func (c *WebFetchConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 20 * time.Second
	}
	if c.MaxResponseSize == 0 {
		c.MaxResponseSize = 2 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "vaultpilot/1.0"
	}
}

// NewWebFetchTool creates the web_fetch tool: GET a public http(s) URL and
// return the body text, truncated to the configured size.
func NewWebFetchTool(cfg WebFetchConfig) *ToolDefinition {
	cfg.SetDefaults()

	client := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
	)

	return &ToolDefinition{
		Meta: ToolMetadata{
			ID:          "web_fetch",
			DisplayName: "Web fetch",
			Description: "Fetch the contents of a public web page by URL. Returns the response body as text.",
			Category:    CategoryExternalProvider,
			Permission:  PermissionRead,
			Timeout:     cfg.Timeout,
		},
		Schema: &schema.ObjectSchema{
			Properties: map[string]*schema.FieldSchema{
				"url": schema.String("The http(s) URL to fetch").WithPattern(`^https?://`),
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			rawURL, _ := args["url"].(string)

			parsed, err := url.Parse(rawURL)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				return nil, fmt.Errorf("invalid URL: %s", rawURL)
			}
			for _, denied := range cfg.DeniedHosts {
				if strings.EqualFold(parsed.Hostname(), denied) {
					return nil, fmt.Errorf("host '%s' is not allowed", parsed.Hostname())
				}
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("User-Agent", cfg.UserAgent)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("request returned status %d", resp.StatusCode)
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, cfg.MaxResponseSize+1))
			if err != nil {
				return nil, fmt.Errorf("failed to read response: %w", err)
			}

			truncated := false
			if int64(len(body)) > cfg.MaxResponseSize {
				body = body[:cfg.MaxResponseSize]
				truncated = true
			}

			return map[string]any{
				"url":          rawURL,
				"status":       resp.StatusCode,
				"content_type": resp.Header.Get("Content-Type"),
				"truncated":    truncated,
				"body":         string(body),
			}, nil
		},
	}
}
