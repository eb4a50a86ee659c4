package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/corvid-run/agentcore/internal/agent"
	"github.com/corvid-run/agentcore/internal/agent/contract"
	"github.com/corvid-run/agentcore/internal/agent/toolconv"
	"github.com/corvid-run/agentcore/pkg/models"
)

// GoogleProvider implements agent.LLMProvider for the Gemini API.
//
// Gemini delivers function calls complete rather than fragmented, so each
// one becomes a single tool-call chunk carrying the whole argument buffer.
type GoogleProvider struct {
	client       *genai.Client
	defaultModel string
}

// NewGoogleProvider creates a Gemini provider.
func NewGoogleProvider(cfg Config) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.EndpointURL) != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.EndpointURL
	}
	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GoogleProvider{client: client, defaultModel: model}, nil
}

// Name returns "google".
func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) model(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

// Stream opens a streaming generation.
func (p *GoogleProvider) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan agent.StreamChunk, error) {
	chunks := make(chan agent.StreamChunk)

	go func() {
		defer close(chunks)

		emit := func(chunk agent.StreamChunk) bool {
			select {
			case chunks <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		model := p.model(req.Model)
		contents := convertGoogleMessages(req.Messages)
		config := p.buildConfig(req)

		nextToolIndex := 0
		var inputTokens, outputTokens int

		for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				emit(agent.StreamChunk{Err: WrapError(p.Name(), model, err)})
				return
			}
			if resp == nil {
				continue
			}
			if resp.UsageMetadata != nil {
				inputTokens = int(resp.UsageMetadata.PromptTokenCount)
				outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			}

			for _, candidate := range resp.Candidates {
				if candidate == nil || candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part == nil {
						continue
					}
					if part.Text != "" {
						block := contract.Block{"type": "text", "text": part.Text}
						if part.Thought {
							block = contract.Block{"type": "thinking", "thinking": part.Text}
						}
						if !emit(agent.StreamChunk{Blocks: []contract.Block{block}}) {
							return
						}
					}
					if part.FunctionCall != nil {
						args := "{}"
						if raw, jsonErr := jsonMarshalArgs(part.FunctionCall.Args); jsonErr == nil {
							args = raw
						}
						idx := nextToolIndex
						nextToolIndex++
						if !emit(agent.StreamChunk{ToolCalls: []agent.ToolCallChunk{{
							Index: &idx,
							ID:    part.FunctionCall.ID,
							Name:  part.FunctionCall.Name,
							Args:  args,
						}}}) {
							return
						}
					}
				}
			}
		}

		emit(usageChunk(inputTokens, outputTokens))
	}()

	return chunks, nil
}

func (p *GoogleProvider) buildConfig(req *agent.CompletionRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if n := maxTokensFromParams(req.Params, 0); n > 0 {
		if n > math.MaxInt32 {
			n = math.MaxInt32
		}
		config.MaxOutputTokens = int32(n)
	}
	// The contract layer expresses thinking as a bare thinking_budget.
	if budget, ok := paramInt(req.Params, "thinking_budget"); ok && budget > 0 {
		b := int32(budget)
		config.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  &b,
		}
	}
	if len(req.Tools) > 0 {
		config.Tools = toolconv.Gemini(req.Tools)
	}
	return config
}

// convertGoogleMessages maps the history to Gemini content. Tool replies
// become function responses on the user side; inline images become blobs.
func convertGoogleMessages(messages []models.Message) []*genai.Content {
	toolNames := map[string]string{}
	for _, msg := range messages {
		for _, tc := range msg.ToolCalls {
			toolNames[tc.ID] = tc.Name
		}
	}

	var result []*genai.Content
	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			continue
		}

		content := &genai.Content{Role: genai.RoleUser}
		if msg.Role == models.RoleAssistant {
			content.Role = genai.RoleModel
		}

		switch msg.Role {
		case models.RoleAssistant:
			if text := messageText(msg.Content); text != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: text})
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Args
				if args == nil {
					args = map[string]any{}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args},
				})
			}

		case models.RoleTool:
			response := map[string]any{"result": messageText(msg.Content)}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     toolNames[msg.ToolCallID],
					Response: response,
				},
			})
			for _, block := range contentBlocks(msg.Content) {
				if part := googleImagePart(block); part != nil {
					content.Parts = append(content.Parts, part)
				}
			}

		default:
			if text := messageText(msg.Content); text != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: text})
			}
		}

		if len(content.Parts) > 0 {
			result = append(result, content)
		}
	}
	return result
}

// googleImagePart converts an inline data-URI image block to a blob part.
func googleImagePart(block map[string]any) *genai.Part {
	if blockType, _ := block["type"].(string); blockType != "image_url" {
		return nil
	}
	holder, _ := block["image_url"].(map[string]any)
	url, _ := holder["url"].(string)
	mediaType, encoded, ok := parseDataURL(url)
	if !ok {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	return &genai.Part{InlineData: &genai.Blob{Data: data, MIMEType: mediaType}}
}

func jsonMarshalArgs(args map[string]any) (string, error) {
	if args == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
