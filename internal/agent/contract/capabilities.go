// Package contract implements the provider-agnostic adapter that normalizes
// token-budget parameters, thinking/reasoning kwargs, and persisted history
// blocks across heterogeneous LLM backends.
package contract

import "strings"

// Capabilities is a static, read-only capability record for one provider
// family. The zero value is never returned to callers; UnknownCapabilities
// is the generic fallback.
type Capabilities struct {
	Provider               string
	TokenLimitParam        string
	SupportsReasoning      bool
	SupportsNativeThinking bool
	SupportsCacheHints     bool
}

var registry = map[string]Capabilities{
	"openai": {
		Provider:               "openai",
		TokenLimitParam:        "max_completion_tokens",
		SupportsReasoning:      true,
		SupportsNativeThinking: true,
	},
	"anthropic": {
		Provider:               "anthropic",
		TokenLimitParam:        "max_tokens",
		SupportsReasoning:      false,
		SupportsNativeThinking: true,
		SupportsCacheHints:     true,
	},
	"google": {
		Provider:               "google",
		TokenLimitParam:        "max_output_tokens",
		SupportsReasoning:      false,
		SupportsNativeThinking: true,
	},
	"mistral": {
		Provider:               "mistral",
		TokenLimitParam:        "max_tokens",
		SupportsReasoning:      false,
		SupportsNativeThinking: false,
	},
}

// CapabilitiesFor returns the capability record for provider, normalized to
// lowercase. Unknown providers get a generic record rather than an error —
// the registry is frozen and additive, never a source of lookup failures.
func CapabilitiesFor(provider string) Capabilities {
	key := strings.ToLower(strings.TrimSpace(provider))
	if c, ok := registry[key]; ok {
		return c
	}
	return Capabilities{
		Provider:               orUnknown(key),
		TokenLimitParam:        "max_tokens",
		SupportsReasoning:      false,
		SupportsNativeThinking: false,
	}
}

func orUnknown(key string) string {
	if key == "" {
		return "unknown"
	}
	return key
}
