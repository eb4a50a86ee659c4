package contract

import "strings"

// Block is one entry of a message's structured content list, as streamed by
// a provider or persisted into history. Shape is provider-specific; callers
// read fields defensively by key, mirroring the dict-shaped blocks the
// runtime this was ported from passes around.
type Block map[string]any

// Contract translates between the provider-agnostic agent loop and one
// provider family's concrete request/response quirks. The default
// implementation in this file covers mistral and unknown; Anthropic,
// OpenAI, and Google each override BuildThinkingKwargs (and OpenAI also
// ExtractThinkingDeltas) below.
type Contract interface {
	Provider() string
	Capabilities() Capabilities
	BuildBudgetKwargs(budget int) map[string]any
	BuildThinkingKwargs(budget int) map[string]any
	NormalizeHistoryContent(content any) any
	ExtractThinkingDeltas(block Block) []string
	ExtractTextDelta(block Block) string
}

type base struct {
	provider string
	caps     Capabilities
}

// New returns the Contract implementation for provider, selecting among the
// openai/anthropic/google specializations and falling back to the generic
// base contract (which also serves mistral and any unrecognized provider).
func New(provider string) Contract {
	key := strings.ToLower(strings.TrimSpace(provider))
	b := base{provider: orUnknown(key), caps: CapabilitiesFor(key)}
	switch key {
	case "openai":
		return openAI{b}
	case "anthropic":
		return anthropic{b}
	case "google":
		return google{b}
	default:
		return b
	}
}

func (b base) Provider() string           { return b.provider }
func (b base) Capabilities() Capabilities { return b.caps }

func (b base) BuildBudgetKwargs(budget int) map[string]any {
	return map[string]any{b.caps.TokenLimitParam: budget}
}

func (b base) BuildThinkingKwargs(budget int) map[string]any {
	return b.BuildBudgetKwargs(budget)
}

func (b base) NormalizeHistoryContent(content any) any {
	return normalizeHistoryContent(b.provider, content)
}

func (b base) ExtractThinkingDeltas(block Block) []string {
	if blockType(block) != "thinking" {
		return nil
	}
	thinking := blockString(block, "thinking")
	if thinking == "" {
		return nil
	}
	return []string{thinking}
}

func (b base) ExtractTextDelta(block Block) string {
	if blockType(block) != "text" {
		return ""
	}
	return blockString(block, "text")
}

func blockType(block Block) string {
	if block == nil {
		return ""
	}
	return blockString(block, "type")
}

func blockString(block Block, key string) string {
	v, ok := block[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// anthropic adds the {type:"enabled", budget_tokens} thinking kwarg; budget
// is reduced by one to leave headroom for the closing stop token, matching
// the upstream contract this was ported from.
type anthropic struct{ base }

func (a anthropic) BuildThinkingKwargs(budget int) map[string]any {
	kwargs := a.BuildBudgetKwargs(budget)
	kwargs["thinking"] = map[string]any{
		"type":          "enabled",
		"budget_tokens": maxInt(budget-1, 0),
	}
	return kwargs
}

// google adds a bare thinking_budget kwarg using the same budget-minus-one
// convention as anthropic.
type google struct{ base }

func (g google) BuildThinkingKwargs(budget int) map[string]any {
	kwargs := g.BuildBudgetKwargs(budget)
	kwargs["thinking_budget"] = maxInt(budget-1, 0)
	return kwargs
}

// openAI adds {reasoning:{effort:"high", summary:"auto"}} when the
// capability record allows it, and recognizes the "reasoning" block type
// (OpenAI's response-API shape) in addition to the generic "thinking" type.
type openAI struct{ base }

func (o openAI) BuildThinkingKwargs(budget int) map[string]any {
	kwargs := o.BuildBudgetKwargs(budget)
	if o.caps.SupportsReasoning {
		kwargs["reasoning"] = map[string]any{"effort": "high", "summary": "auto"}
	}
	return kwargs
}

func (o openAI) ExtractThinkingDeltas(block Block) []string {
	if blockType(block) != "reasoning" {
		return o.base.ExtractThinkingDeltas(block)
	}
	var deltas []string
	if summaries, ok := block["summary"].([]any); ok {
		for _, s := range summaries {
			if sm, ok := s.(map[string]any); ok {
				if text, _ := sm["text"].(string); text != "" {
					deltas = append(deltas, text)
				}
			}
		}
	}
	if reasoning := blockString(block, "reasoning"); reasoning != "" {
		deltas = append(deltas, reasoning)
	}
	return deltas
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
