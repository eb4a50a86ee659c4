// Package web implements the web_fetch and web_search tools.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/corvid-run/agentcore/pkg/models"
)

// fetchTimeout bounds one fetch request.
const fetchTimeout = 30 * time.Second

// defaultMaxLength is the fallback content cap when the caller omits one.
const defaultMaxLength = 50000

// FetchTool retrieves a URL and returns its text content.
type FetchTool struct {
	client *http.Client
}

// NewFetchTool creates a web_fetch tool. A nil client gets the default with
// redirect following and the fetch timeout.
func NewFetchTool(client *http.Client) *FetchTool {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &FetchTool{client: client}
}

// Name returns the tool name.
func (t *FetchTool) Name() string { return "web_fetch" }

// Description returns the tool description.
func (t *FetchTool) Description() string {
	return "Fetch content from a URL. Converts HTML to plain text by stripping tags. " +
		"Returns the text content truncated to max_length characters."
}

// Schema returns the JSON schema for the tool parameters.
func (t *FetchTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to fetch content from.",
			},
			"max_length": map[string]any{
				"type":        "integer",
				"description": "Maximum number of characters to return from the fetched content.",
			},
		},
		"required": []string{"url"},
	})
}

// Execute fetches the URL.
func (t *FetchTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		URL       string `json:"url"`
		MaxLength int    `json:"max_length"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return models.ToolErrorf(t.Name(), "invalid arguments: %v", err), nil
	}
	if input.MaxLength <= 0 {
		input.MaxLength = defaultMaxLength
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return models.ToolErrorf(t.Name(), "invalid url '%s': %v", input.URL, err), nil
	}

	resp, err := t.client.Do(req)
	if err != nil {
		var urlErr interface{ Timeout() bool }
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return models.ToolErrorf(t.Name(), "request to '%s' timed out after 30 seconds", input.URL), nil
		}
		return models.ToolErrorf(t.Name(), "failed to fetch '%s': %v", input.URL, err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return models.ToolErrorf(t.Name(), "HTTP %d for '%s'", resp.StatusCode, input.URL), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return models.ToolErrorf(t.Name(), "failed to fetch '%s': %v", input.URL, err), nil
	}

	text := string(body)
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(strings.ToLower(contentType), "html") {
		text = htmlToText(text)
	}

	truncated := false
	if runes := []rune(text); len(runes) > input.MaxLength {
		text = string(runes[:input.MaxLength]) + "\n... content truncated"
		truncated = true
	}

	return models.ToolSuccess(t.Name(), text).
		WithData(map[string]any{
			"url":          input.URL,
			"content_type": contentType,
			"status":       resp.StatusCode,
		}).
		WithMeta(map[string]any{"truncated": truncated}), nil
}

// htmlToText reduces an HTML document to its visible text, skipping script
// and style subtrees and separating block elements with newlines.
func htmlToText(source string) string {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return source
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
				sb.WriteByte('\n')
			}
		case html.TextNode:
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteByte(' ')
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	lines := strings.Split(sb.String(), "\n")
	var out []string
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}

func mustSchema(schema map[string]any) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
