// Package providers implements the LLM provider integrations behind the
// agent.LLMProvider interface: Anthropic, OpenAI (also serving any
// OpenAI-compatible endpoint such as Mistral's), Google Gemini, and AWS
// Bedrock as the generic-capability fallback.
//
// Each provider translates the contract-built request params into its SDK's
// wire format and emits raw stream fragments: content blocks for text and
// thinking, indexed tool-call chunks for pending tool calls. Accumulation
// and ghost filtering happen in the agent loop, not here.
package providers

import (
	"fmt"
	"strings"

	"github.com/corvid-run/agentcore/internal/agent"
	"github.com/corvid-run/agentcore/pkg/models"
)

// Config carries the connection settings for one provider instance.
type Config struct {
	// Provider is the normalized provider family name.
	Provider string

	// Model is the default model identifier.
	Model string

	// APIKey authenticates to the provider.
	APIKey string

	// EndpointURL overrides the provider's default base URL. When empty,
	// mistral uses https://api.mistral.ai/v1 and other OpenAI-compatible
	// providers use the OpenAI client's default base URL.
	EndpointURL string
}

// New builds the provider for a config. Unrecognized providers get the
// OpenAI-compatible client pointed at their endpoint, which covers the
// long tail of proxy-style backends.
func New(cfg Config) (agent.LLMProvider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	case "google", "gemini":
		return NewGoogleProvider(cfg)
	case "bedrock":
		return NewBedrockProvider(cfg)
	case "mistral":
		mistral := cfg
		if strings.TrimSpace(mistral.EndpointURL) == "" {
			mistral.EndpointURL = "https://api.mistral.ai/v1"
		}
		return newOpenAICompatible("mistral", mistral)
	default:
		return newOpenAICompatible(orProvider(cfg.Provider, "openai"), cfg)
	}
}

func orProvider(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// paramInt reads an integer request param regardless of the numeric type
// the kwargs map carries.
func paramInt(params map[string]any, key string) (int, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// paramMap reads a nested kwargs object.
func paramMap(params map[string]any, key string) (map[string]any, bool) {
	v, ok := params[key].(map[string]any)
	return v, ok
}

// maxTokensFromParams resolves the token budget regardless of which
// provider-specific parameter name the contract chose.
func maxTokensFromParams(params map[string]any, fallback int) int {
	for _, key := range []string{"max_tokens", "max_completion_tokens", "max_output_tokens"} {
		if n, ok := paramInt(params, key); ok && n > 0 {
			return n
		}
	}
	return fallback
}

// messageText renders message content as plain text for providers whose
// message shape is string-only. Block lists collapse to their text blocks.
func messageText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []map[string]any:
		var sb strings.Builder
		for _, block := range v {
			if text, ok := block["text"].(string); ok {
				sb.WriteString(text)
			}
		}
		return sb.String()
	case []any:
		var sb strings.Builder
		for _, item := range v {
			if block, ok := item.(map[string]any); ok {
				if text, ok := block["text"].(string); ok {
					sb.WriteString(text)
				}
			}
		}
		return sb.String()
	default:
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	}
}

// contentBlocks normalizes message content to a generic block list, or nil
// when the content is a plain string.
func contentBlocks(content any) []map[string]any {
	switch v := content.(type) {
	case []map[string]any:
		return v
	case []any:
		var out []map[string]any
		for _, item := range v {
			if block, ok := item.(map[string]any); ok {
				out = append(out, block)
			}
		}
		return out
	default:
		return nil
	}
}

// usageChunk builds the terminal chunk of a successful stream.
func usageChunk(inputTokens, outputTokens int) agent.StreamChunk {
	chunk := agent.StreamChunk{Done: true}
	if inputTokens > 0 || outputTokens > 0 {
		chunk.Usage = &models.TokenUsage{Prompt: inputTokens, Completion: outputTokens}
	}
	return chunk
}
