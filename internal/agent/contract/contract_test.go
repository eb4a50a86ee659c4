package contract

import (
	"reflect"
	"testing"
)

func TestCapabilitiesFor(t *testing.T) {
	tests := []struct {
		provider string
		param    string
		reason   bool
		thinking bool
	}{
		{"openai", "max_completion_tokens", true, true},
		{"Anthropic", "max_tokens", false, true},
		{"google", "max_output_tokens", false, true},
		{"mistral", "max_tokens", false, false},
		{"bedrock", "max_tokens", false, false},
		{"", "max_tokens", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			c := CapabilitiesFor(tt.provider)
			if c.TokenLimitParam != tt.param {
				t.Errorf("TokenLimitParam = %q, want %q", c.TokenLimitParam, tt.param)
			}
			if c.SupportsReasoning != tt.reason {
				t.Errorf("SupportsReasoning = %v, want %v", c.SupportsReasoning, tt.reason)
			}
			if c.SupportsNativeThinking != tt.thinking {
				t.Errorf("SupportsNativeThinking = %v, want %v", c.SupportsNativeThinking, tt.thinking)
			}
		})
	}
}

func TestBuildBudgetKwargs(t *testing.T) {
	tests := []struct {
		provider string
		param    string
	}{
		{"openai", "max_completion_tokens"},
		{"anthropic", "max_tokens"},
		{"google", "max_output_tokens"},
		{"mistral", "max_tokens"},
		{"unheard-of", "max_tokens"},
	}
	for _, tt := range tests {
		kwargs := New(tt.provider).BuildBudgetKwargs(512)
		if kwargs[tt.param] != 512 {
			t.Errorf("%s: kwargs = %v, want %s=512", tt.provider, kwargs, tt.param)
		}
		if len(kwargs) != 1 {
			t.Errorf("%s: kwargs = %v, want single entry", tt.provider, kwargs)
		}
	}
}

func TestBuildThinkingKwargs(t *testing.T) {
	anthropicKwargs := New("anthropic").BuildThinkingKwargs(10000)
	wantThinking := map[string]any{"type": "enabled", "budget_tokens": 9999}
	if !reflect.DeepEqual(anthropicKwargs["thinking"], wantThinking) {
		t.Errorf("anthropic thinking = %v, want %v", anthropicKwargs["thinking"], wantThinking)
	}
	if anthropicKwargs["max_tokens"] != 10000 {
		t.Errorf("anthropic max_tokens = %v", anthropicKwargs["max_tokens"])
	}

	googleKwargs := New("google").BuildThinkingKwargs(5000)
	if googleKwargs["thinking_budget"] != 4999 {
		t.Errorf("google thinking_budget = %v, want 4999", googleKwargs["thinking_budget"])
	}
	if googleKwargs["max_output_tokens"] != 5000 {
		t.Errorf("google max_output_tokens = %v", googleKwargs["max_output_tokens"])
	}

	openaiKwargs := New("openai").BuildThinkingKwargs(2000)
	wantReasoning := map[string]any{"effort": "high", "summary": "auto"}
	if !reflect.DeepEqual(openaiKwargs["reasoning"], wantReasoning) {
		t.Errorf("openai reasoning = %v, want %v", openaiKwargs["reasoning"], wantReasoning)
	}
	if openaiKwargs["max_completion_tokens"] != 2000 {
		t.Errorf("openai max_completion_tokens = %v", openaiKwargs["max_completion_tokens"])
	}

	mistralKwargs := New("mistral").BuildThinkingKwargs(1000)
	if _, has := mistralKwargs["reasoning"]; has {
		t.Error("mistral kwargs carry reasoning")
	}
	if _, has := mistralKwargs["thinking"]; has {
		t.Error("mistral kwargs carry thinking")
	}
	if mistralKwargs["max_tokens"] != 1000 {
		t.Errorf("mistral max_tokens = %v", mistralKwargs["max_tokens"])
	}
}

func TestThinkingBudgetNeverNegative(t *testing.T) {
	kwargs := New("anthropic").BuildThinkingKwargs(0)
	thinking := kwargs["thinking"].(map[string]any)
	if thinking["budget_tokens"] != 0 {
		t.Errorf("budget_tokens = %v, want clamped to 0", thinking["budget_tokens"])
	}
}

func TestExtractTextDelta(t *testing.T) {
	c := New("anthropic")
	if got := c.ExtractTextDelta(Block{"type": "text", "text": "hi"}); got != "hi" {
		t.Errorf("ExtractTextDelta = %q", got)
	}
	if got := c.ExtractTextDelta(Block{"type": "thinking", "thinking": "x"}); got != "" {
		t.Errorf("ExtractTextDelta on thinking block = %q", got)
	}
}

func TestExtractThinkingDeltasOpenAIReasoningBlock(t *testing.T) {
	c := New("openai")
	block := Block{
		"type": "reasoning",
		"summary": []any{
			map[string]any{"text": "step one"},
			map[string]any{"text": ""},
		},
		"reasoning": "final thought",
	}
	got := c.ExtractThinkingDeltas(block)
	want := []string{"step one", "final thought"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractThinkingDeltas = %v, want %v", got, want)
	}
}

func TestExtractThinkingDeltasDefaultThinkingBlock(t *testing.T) {
	c := New("anthropic")
	got := c.ExtractThinkingDeltas(Block{"type": "thinking", "thinking": "hmm"})
	if !reflect.DeepEqual(got, []string{"hmm"}) {
		t.Errorf("ExtractThinkingDeltas = %v", got)
	}
	if deltas := c.ExtractThinkingDeltas(Block{"type": "text", "text": "hi"}); deltas != nil {
		t.Errorf("text block produced thinking deltas: %v", deltas)
	}
}

func TestNormalizeHistoryContentDropsEmptyBlocksAndIsIdempotent(t *testing.T) {
	c := New("anthropic")
	content := []Block{
		{"type": "text", "text": "hello"},
		{"type": "text", "text": "   "},
		{"type": "thinking", "thinking": ""},
	}
	once := c.NormalizeHistoryContent(content)
	twice := c.NormalizeHistoryContent(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("normalization not idempotent: %v vs %v", once, twice)
	}
	want := []Block{{"type": "text", "text": "hello"}}
	if !reflect.DeepEqual(once, want) {
		t.Errorf("normalized = %v, want %v", once, want)
	}
}

func TestNormalizeHistoryContentStripsOpenAIResponseIDs(t *testing.T) {
	c := New("openai")
	content := []Block{
		{
			"type": "tool_call",
			"id":   "rs_abc123",
			"nested": map[string]any{
				"item_id": "msg_xyz",
				"keep":    "value",
			},
		},
	}
	normalized, ok := c.NormalizeHistoryContent(content).([]Block)
	if !ok || len(normalized) != 1 {
		t.Fatalf("normalized = %v", normalized)
	}
	if _, hasID := normalized[0]["id"]; hasID {
		t.Error("server-owned id survived normalization")
	}
	nested := normalized[0]["nested"].(map[string]any)
	if _, hasItemID := nested["item_id"]; hasItemID {
		t.Error("nested item_id survived normalization")
	}
	if nested["keep"] != "value" {
		t.Errorf("unrelated key lost: %v", nested)
	}
}

func TestNormalizeHistoryContentKeepsNonPrefixedIDs(t *testing.T) {
	c := New("openai")
	content := []Block{{"type": "tool_call", "id": "call_123"}}
	normalized := c.NormalizeHistoryContent(content).([]Block)
	if normalized[0]["id"] != "call_123" {
		t.Errorf("non-server id stripped: %v", normalized[0])
	}
}

func TestNormalizeHistoryContentPassesThroughNonList(t *testing.T) {
	c := New("anthropic")
	if got := c.NormalizeHistoryContent("plain string"); got != "plain string" {
		t.Errorf("NormalizeHistoryContent = %v", got)
	}
	if got := New("openai").NormalizeHistoryContent(nil); got != nil {
		t.Errorf("NormalizeHistoryContent(nil) = %v", got)
	}
}
