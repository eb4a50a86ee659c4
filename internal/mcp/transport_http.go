package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// HTTPTransport speaks JSON-RPC over streamable HTTP: each call is one POST
// whose response is either a JSON body or a short SSE stream carrying the
// response object.
type HTTPTransport struct {
	url     string
	headers map[string]string
	client  *http.Client
	nextID  atomic.Int64
	session atomic.Value // string
}

// NewHTTPTransport creates an HTTP transport for the given endpoint.
func NewHTTPTransport(url string, headers map[string]string) *HTTPTransport {
	return &HTTPTransport{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Connect validates the endpoint. The connection itself is per-request.
func (t *HTTPTransport) Connect(context.Context) error {
	if strings.TrimSpace(t.url) == "" {
		return fmt.Errorf("url is required for http transport")
	}
	return nil
}

// Call posts one request and decodes the response.
func (t *HTTPTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := t.nextID.Add(1)
	payload, err := json.Marshal(JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if session, _ := t.session.Load().(string); session != "" {
		req.Header.Set("Mcp-Session-Id", session)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if session := resp.Header.Get("Mcp-Session-Id"); session != "" {
		t.session.Store(session)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http %d from %s", resp.StatusCode, t.url)
	}

	var rpc *JSONRPCResponse
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "event-stream") {
		rpc, err = decodeSSEResponse(resp.Body, id)
	} else {
		rpc = &JSONRPCResponse{}
		err = json.NewDecoder(resp.Body).Decode(rpc)
	}
	if err != nil {
		return nil, err
	}
	if rpc == nil {
		return nil, fmt.Errorf("no response for request %d", id)
	}
	if rpc.Error != nil {
		return nil, rpc.Error
	}
	return rpc.Result, nil
}

// decodeSSEResponse scans an SSE body for the response matching id.
func decodeSSEResponse(body io.Reader, id int64) (*JSONRPCResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		var rpc JSONRPCResponse
		if err := json.Unmarshal([]byte(data), &rpc); err != nil {
			continue
		}
		if rpc.ID == id {
			return &rpc, nil
		}
	}
	return nil, scanner.Err()
}

// Close is a no-op; HTTP connections are per-request.
func (t *HTTPTransport) Close() error { return nil }
