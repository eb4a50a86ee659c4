package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/corvid-run/agentcore/pkg/models"
)

// DefaultSearchEndpoint is the Exa MCP endpoint the search tool calls.
const DefaultSearchEndpoint = "https://mcp.exa.ai/mcp"

// searchTimeout bounds one search request.
const searchTimeout = 25 * time.Second

// SearchTool queries the web through an SSE-based JSON-RPC endpoint and
// returns the first text content of the result.
type SearchTool struct {
	client   *http.Client
	endpoint string
}

// NewSearchTool creates a web_search tool. Empty endpoint uses the default;
// a nil client gets a default with the search timeout.
func NewSearchTool(client *http.Client, endpoint string) *SearchTool {
	if client == nil {
		client = &http.Client{Timeout: searchTimeout}
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultSearchEndpoint
	}
	return &SearchTool{client: client, endpoint: endpoint}
}

// Name returns the tool name.
func (t *SearchTool) Name() string { return "web_search" }

// Description returns the tool description.
func (t *SearchTool) Description() string {
	return "Search the web. Returns relevant web page content for the " +
		"given query. Use this to find up-to-date information."
}

// Schema returns the JSON schema for the tool parameters.
func (t *SearchTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query.",
			},
			"num_results": map[string]any{
				"type":        "integer",
				"description": "Number of results to return (1-10).",
			},
			"type": map[string]any{
				"type":        "string",
				"description": "Search type: auto, fast, or deep.",
			},
		},
		"required": []string{"query"},
	})
}

// Execute performs the search.
func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		Query      string `json:"query"`
		NumResults int    `json:"num_results"`
		Type       string `json:"type"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return models.ToolErrorf(t.Name(), "invalid arguments: %v", err), nil
	}
	if input.NumResults <= 0 {
		input.NumResults = 5
	}
	if input.Type == "" {
		input.Type = "auto"
	}

	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name": "web_search_exa",
			"arguments": map[string]any{
				"query":                input.Query,
				"numResults":           input.NumResults,
				"type":                 input.Type,
				"livecrawl":            "fallback",
				"contextMaxCharacters": 10000,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.ToolErrorf(t.Name(), "web search request failed: %v", err), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.ToolErrorf(t.Name(), "web search request failed: %v", err), nil
	}
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return models.ToolErrorf(t.Name(), "web search request failed: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return models.ToolErrorf(t.Name(), "web search request failed: HTTP %d", resp.StatusCode), nil
	}

	text := t.firstResultText(resp)
	if text == "" {
		return models.ToolSuccess(t.Name(), "No search results found. Please try a different query.").
			WithData(map[string]any{"query": input.Query}).
			WithMeta(map[string]any{"empty": true}), nil
	}
	return models.ToolSuccess(t.Name(), text).
		WithData(map[string]any{"query": input.Query}), nil
}

// firstResultText scans the SSE stream (or a plain JSON body) for the first
// result.content[].text entry.
func (t *SearchTool) firstResultText(resp *http.Response) string {
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "event-stream") {
		var rpc rpcResponse
		if err := json.NewDecoder(resp.Body).Decode(&rpc); err == nil {
			return rpc.firstText()
		}
		return ""
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		var rpc rpcResponse
		if err := json.Unmarshal([]byte(data), &rpc); err != nil {
			continue
		}
		if text := rpc.firstText(); text != "" {
			return text
		}
	}
	return ""
}

type rpcResponse struct {
	Result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
}

func (r rpcResponse) firstText() string {
	if len(r.Result.Content) == 0 {
		return ""
	}
	return r.Result.Content[0].Text
}
