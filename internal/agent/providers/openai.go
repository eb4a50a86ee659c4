package providers

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/corvid-run/agentcore/internal/agent"
	"github.com/corvid-run/agentcore/internal/agent/contract"
	"github.com/corvid-run/agentcore/internal/agent/toolconv"
	"github.com/corvid-run/agentcore/pkg/models"
)

// OpenAIProvider implements agent.LLMProvider over the chat completions
// API. The same implementation serves any OpenAI-compatible endpoint; the
// name distinguishes the provider family for the contract layer.
type OpenAIProvider struct {
	name         string
	client       *openai.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewOpenAIProvider creates a provider against api.openai.com (or the
// configured endpoint override).
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	return newOpenAICompatible("openai", cfg)
}

// newOpenAICompatible builds the shared client for openai and any
// OpenAI-compatible backend (mistral, unrecognized proxies).
func newOpenAICompatible(name string, cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(name + ": API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.EndpointURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.EndpointURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIProvider{
		name:         name,
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: model,
		maxRetries:   3,
		retryDelay:   time.Second,
	}, nil
}

// Name returns the provider family name.
func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) model(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

// Stream opens a streaming chat completion.
func (p *OpenAIProvider) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan agent.StreamChunk, error) {
	messages := convertOpenAIMessages(req.Messages, req.System)

	chatReq := openai.ChatCompletionRequest{
		Model:         p.model(req.Model),
		Messages:      messages,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	if n := maxTokensFromParams(req.Params, 0); n > 0 {
		chatReq.MaxCompletionTokens = n
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toolconv.OpenAI(req.Tools)
	}
	if reasoning, ok := paramMap(req.Params, "reasoning"); ok {
		if effort, ok := reasoning["effort"].(string); ok {
			chatReq.ReasoningEffort = effort
		}
	}

	var stream *openai.ChatCompletionStream
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.retryDelay * time.Duration(attempt)):
			}
		}
		stream, lastErr = p.client.CreateChatCompletionStream(ctx, chatReq)
		if lastErr == nil {
			break
		}
		if !IsRetryable(lastErr) {
			return nil, WrapError(p.name, chatReq.Model, lastErr)
		}
	}
	if lastErr != nil {
		return nil, WrapError(p.name, chatReq.Model, lastErr)
	}

	chunks := make(chan agent.StreamChunk)
	go p.processStream(ctx, stream, chunks, chatReq.Model)
	return chunks, nil
}

// processStream passes tool-call deltas through as indexed fragments; the
// loop-side accumulator assembles them.
func (p *OpenAIProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- agent.StreamChunk, model string) {
	defer close(chunks)
	defer stream.Close()

	emit := func(chunk agent.StreamChunk) bool {
		select {
		case chunks <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var usage *models.TokenUsage
	for {
		response, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				final := agent.StreamChunk{Done: true, Usage: usage}
				emit(final)
				return
			}
			emit(agent.StreamChunk{Err: WrapError(p.name, model, err)})
			return
		}

		if response.Usage != nil {
			usage = &models.TokenUsage{
				Prompt:     response.Usage.PromptTokens,
				Completion: response.Usage.CompletionTokens,
			}
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta

		if delta.Content != "" {
			if !emit(agent.StreamChunk{Blocks: []contract.Block{{"type": "text", "text": delta.Content}}}) {
				return
			}
		}
		if delta.ReasoningContent != "" {
			if !emit(agent.StreamChunk{Blocks: []contract.Block{{"type": "reasoning", "reasoning": delta.ReasoningContent}}}) {
				return
			}
		}

		if len(delta.ToolCalls) > 0 {
			fragments := make([]agent.ToolCallChunk, 0, len(delta.ToolCalls))
			for _, tc := range delta.ToolCalls {
				fragments = append(fragments, agent.ToolCallChunk{
					Index: tc.Index,
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Args:  tc.Function.Arguments,
				})
			}
			if !emit(agent.StreamChunk{ToolCalls: fragments}) {
				return
			}
		}
	}
}

// convertOpenAIMessages maps the history to chat completion messages. The
// system prompt leads; assistant tool calls carry their raw argument JSON;
// tool replies with image content become multipart messages.
func convertOpenAIMessages(messages []models.Message, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			continue

		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: messageText(msg.Content),
			}
			for i := range msg.ToolCalls {
				tc := msg.ToolCalls[i]
				idx := tc.Index
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					Index: &idx,
					ID:    tc.ID,
					Type:  openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.RawArgs()),
					},
				})
			}
			result = append(result, oaiMsg)

		case models.RoleTool:
			oaiMsg := openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: msg.ToolCallID,
			}
			if parts := openAIImageParts(msg.Content); len(parts) > 0 {
				oaiMsg.MultiContent = parts
			} else {
				oaiMsg.Content = messageText(msg.Content)
			}
			result = append(result, oaiMsg)

		default:
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: messageText(msg.Content),
			})
		}
	}
	return result
}

// openAIImageParts builds multipart content when the tool reply carries
// image blocks; plain-text replies return nil.
func openAIImageParts(content any) []openai.ChatMessagePart {
	blocks := contentBlocks(content)
	if len(blocks) == 0 {
		return nil
	}

	var parts []openai.ChatMessagePart
	hasImage := false
	for _, block := range blocks {
		switch block["type"] {
		case "text":
			if text, ok := block["text"].(string); ok && text != "" {
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: text,
				})
			}
		case "image_url":
			holder, _ := block["image_url"].(map[string]any)
			if url, ok := holder["url"].(string); ok && url != "" {
				hasImage = true
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    url,
						Detail: openai.ImageURLDetailAuto,
					},
				})
			}
		}
	}
	if !hasImage {
		return nil
	}
	return parts
}
