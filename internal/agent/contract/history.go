package contract

import "strings"

var openAIResponseIDPrefixes = []string{"rs_", "resp_", "msg_", "item_"}
var openAIResponseIDKeys = map[string]bool{"id": true, "item_id": true, "response_id": true}

// normalizeHistoryContent strips empty text/thinking blocks from a message's
// structured content before it is replayed to the model, and, for OpenAI
// only, recursively strips server-owned response identifiers that would
// otherwise invalidate replay on a later turn.
//
// content that is not a []Block (e.g. a plain string) passes through
// unchanged. The function is idempotent: normalizing already-normalized
// content returns the same result.
func normalizeHistoryContent(provider string, content any) any {
	blocks, ok := content.([]Block)
	if !ok {
		return content
	}

	normalized := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if isEmptyTextBlock(b) {
			continue
		}
		normalized = append(normalized, b)
	}

	if strings.ToLower(provider) == "openai" {
		for i, b := range normalized {
			normalized[i] = stripOpenAIResponseIDs(b).(Block)
		}
	}
	return normalized
}

func isEmptyTextBlock(b Block) bool {
	switch blockType(b) {
	case "text":
		return strings.TrimSpace(blockString(b, "text")) == ""
	case "thinking":
		return strings.TrimSpace(blockString(b, "thinking")) == ""
	default:
		return false
	}
}

// stripOpenAIResponseIDs walks value recursively, dropping any map key in
// {id, item_id, response_id} whose string value begins with one of
// {rs_, resp_, msg_, item_}. Lists and nested maps are copied as they are
// walked, so the input is left unmodified; scalars pass through unchanged.
func stripOpenAIResponseIDs(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = stripOpenAIResponseIDs(item)
		}
		return out
	case []Block:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = stripOpenAIResponseIDs(item)
		}
		return out
	case Block:
		cleaned := make(Block, len(v))
		for key, val := range v {
			if openAIResponseIDKeys[key] {
				if s, ok := val.(string); ok && hasAnyPrefix(s, openAIResponseIDPrefixes) {
					continue
				}
			}
			cleaned[key] = stripOpenAIResponseIDs(val)
		}
		return cleaned
	case map[string]any:
		cleaned := make(map[string]any, len(v))
		for key, val := range v {
			if openAIResponseIDKeys[key] {
				if s, ok := val.(string); ok && hasAnyPrefix(s, openAIResponseIDPrefixes) {
					continue
				}
			}
			cleaned[key] = stripOpenAIResponseIDs(val)
		}
		return cleaned
	default:
		return value
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
