package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/corvid-run/agentcore/internal/agent"
	"github.com/corvid-run/agentcore/internal/agent/contract"
	"github.com/corvid-run/agentcore/internal/agent/toolconv"
	"github.com/corvid-run/agentcore/pkg/models"
)

// AnthropicProvider implements agent.LLMProvider for Anthropic's Messages
// API. Safe for concurrent use; each Stream call creates an independent SSE
// stream and goroutine.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}

	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.EndpointURL) != "" {
		options = append(options, option.WithBaseURL(cfg.EndpointURL))
	}

	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(options...),
		defaultModel: model,
		maxRetries:   3,
		retryDelay:   time.Second,
	}, nil
}

// Name returns "anthropic".
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Stream opens a streaming completion.
func (p *AnthropicProvider) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan agent.StreamChunk, error) {
	chunks := make(chan agent.StreamChunk)

	go func() {
		defer close(chunks)

		var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
		var err error
		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			stream, err = p.createStream(ctx, req)
			if err == nil {
				break
			}
			wrapped := WrapError(p.Name(), p.model(req.Model), err)
			if !IsRetryable(wrapped) {
				chunks <- agent.StreamChunk{Err: wrapped}
				return
			}
			if attempt < p.maxRetries {
				backoff := p.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
				select {
				case <-ctx.Done():
					chunks <- agent.StreamChunk{Err: ctx.Err()}
					return
				case <-time.After(backoff):
				}
			}
		}
		if err != nil {
			chunks <- agent.StreamChunk{Err: fmt.Errorf("anthropic: max retries exceeded: %w", WrapError(p.Name(), p.model(req.Model), err))}
			return
		}

		p.processStream(ctx, stream, chunks, p.model(req.Model))
	}()

	return chunks, nil
}

func (p *AnthropicProvider) model(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

func (p *AnthropicProvider) createStream(ctx context.Context, req *agent.CompletionRequest) (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
	messages, err := convertAnthropicMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to convert messages: %w", err)
	}

	maxTokens := maxTokensFromParams(req.Params, 4096)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(req.Model)),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}

	if len(req.Tools) > 0 {
		tools, err := toolconv.Anthropic(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = tools
	}

	// The contract layer expresses thinking as {type:enabled, budget_tokens}.
	if thinking, ok := paramMap(req.Params, "thinking"); ok {
		if budget, ok := paramInt(thinking, "budget_tokens"); ok {
			budgetTokens := int64(budget)
			if budgetTokens < 1024 {
				budgetTokens = 1024
			}
			params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budgetTokens)
		}
	}

	return p.client.Messages.NewStreaming(ctx, params), nil
}

// processStream converts Anthropic SSE events into stream chunks. Tool-use
// blocks map to indexed tool-call fragments: the block-start commits index,
// id, and name; each input_json_delta appends an argument fragment at the
// same index.
func (p *AnthropicProvider) processStream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- agent.StreamChunk, model string) {
	toolIndexByBlock := map[int64]int{}
	nextToolIndex := 0
	var inputTokens, outputTokens int

	emit := func(chunk agent.StreamChunk) bool {
		select {
		case chunks <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			messageStart := event.AsMessageStart()
			if messageStart.Message.Usage.InputTokens > 0 {
				inputTokens = int(messageStart.Message.Usage.InputTokens)
			}

		case "content_block_start":
			contentBlockStart := event.AsContentBlockStart()
			if contentBlockStart.ContentBlock.Type != "tool_use" {
				continue
			}
			toolUse := contentBlockStart.ContentBlock.AsToolUse()
			idx := nextToolIndex
			nextToolIndex++
			toolIndexByBlock[contentBlockStart.Index] = idx
			if !emit(agent.StreamChunk{ToolCalls: []agent.ToolCallChunk{{
				Index: &idx,
				ID:    toolUse.ID,
				Name:  toolUse.Name,
			}}}) {
				return
			}

		case "content_block_delta":
			contentBlockDelta := event.AsContentBlockDelta()
			delta := contentBlockDelta.Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					if !emit(agent.StreamChunk{Blocks: []contract.Block{{"type": "text", "text": delta.Text}}}) {
						return
					}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					if !emit(agent.StreamChunk{Blocks: []contract.Block{{"type": "thinking", "thinking": delta.Thinking}}}) {
						return
					}
				}
			case "input_json_delta":
				if delta.PartialJSON == "" {
					continue
				}
				if idx, ok := toolIndexByBlock[contentBlockDelta.Index]; ok {
					idxCopy := idx
					if !emit(agent.StreamChunk{ToolCalls: []agent.ToolCallChunk{{
						Index: &idxCopy,
						Args:  delta.PartialJSON,
					}}}) {
						return
					}
				}
			}

		case "message_delta":
			messageDelta := event.AsMessageDelta()
			if messageDelta.Usage.OutputTokens > 0 {
				outputTokens = int(messageDelta.Usage.OutputTokens)
			}

		case "message_stop":
			emit(usageChunk(inputTokens, outputTokens))
			return

		case "error":
			emit(agent.StreamChunk{Err: WrapError(p.Name(), model, errors.New("anthropic stream error"))})
			return
		}
	}

	if err := stream.Err(); err != nil {
		emit(agent.StreamChunk{Err: WrapError(p.Name(), model, err)})
		return
	}
	emit(usageChunk(inputTokens, outputTokens))
}

// convertAnthropicMessages maps the history to Anthropic message params.
// System messages are skipped (the system prompt travels separately); tool
// replies become user-role tool_result blocks, with inline image content
// converted to base64 image blocks for multimodal replay.
func convertAnthropicMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			continue

		case models.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if text := messageText(msg.Content); text != "" {
				content = append(content, anthropic.NewTextBlock(text))
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Args
				if input == nil {
					input = map[string]any{}
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(content) == 0 {
				continue
			}
			result = append(result, anthropic.NewAssistantMessage(content...))

		case models.RoleTool:
			content := []anthropic.ContentBlockParamUnion{
				anthropic.NewToolResultBlock(msg.ToolCallID, messageText(msg.Content), false),
			}
			for _, block := range contentBlocks(msg.Content) {
				if img := anthropicImageBlock(block); img != nil {
					content = append(content, *img)
				}
			}
			result = append(result, anthropic.NewUserMessage(content...))

		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(messageText(msg.Content))))
		}
	}

	return result, nil
}

// anthropicImageBlock converts an image_url content block carrying a data
// URI into a base64 image block.
func anthropicImageBlock(block map[string]any) *anthropic.ContentBlockParamUnion {
	if blockType, _ := block["type"].(string); blockType != "image_url" {
		return nil
	}
	holder, _ := block["image_url"].(map[string]any)
	url, _ := holder["url"].(string)
	mediaType, data, ok := parseDataURL(url)
	if !ok {
		return nil
	}
	img := anthropic.NewImageBlockBase64(mediaType, data)
	return &img
}

// parseDataURL splits a data:<mime>;base64,<payload> URI.
func parseDataURL(raw string) (string, string, bool) {
	if !strings.HasPrefix(raw, "data:") {
		return "", "", false
	}
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	meta := strings.TrimPrefix(parts[0], "data:")
	if !strings.HasSuffix(meta, ";base64") {
		return "", "", false
	}
	mediaType := strings.TrimSuffix(meta, ";base64")
	if mediaType == "" {
		return "", "", false
	}
	return mediaType, parts[1], true
}
