// Package question implements the interactive question tool: it emits a
// questionnaire event to the controller and suspends the turn until the
// matching answer message resolves it.
package question

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/corvid-run/agentcore/internal/agent"
	"github.com/corvid-run/agentcore/pkg/models"
	"github.com/google/uuid"
)

// Tool asks structured questions to the user and waits for answers.
//
// Answers may arrive before Execute starts waiting (the controller can
// answer as soon as the question event is emitted); such early answers are
// cached by questionnaire ID and picked up when the wait begins.
type Tool struct {
	mu      sync.Mutex
	emit    agent.EmitFunc
	pending map[string]chan []models.Answer
	early   map[string][]models.Answer
	known   map[string]bool
}

// New creates a question tool.
func New() *Tool {
	return &Tool{
		pending: map[string]chan []models.Answer{},
		early:   map[string][]models.Answer{},
		known:   map[string]bool{},
	}
}

// Name returns the tool name.
func (t *Tool) Name() string { return "question" }

// Description returns the tool description.
func (t *Tool) Description() string {
	return "Ask one or more structured questions during execution to clarify " +
		"requirements, preferences, and implementation choices. Collects user " +
		"answers and then continues execution automatically."
}

// Schema returns the JSON schema for the tool parameters.
func (t *Tool) Schema() json.RawMessage {
	question := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":          map[string]any{"type": "string", "description": "Stable question identifier."},
			"header":      map[string]any{"type": "string", "description": "Short header shown above the question."},
			"question":    map[string]any{"type": "string", "description": "Question text shown to the user."},
			"options":     map[string]any{"type": "array", "description": "Optional list of choices for this question."},
			"placeholder": map[string]any{"type": "string", "description": "Optional input placeholder for free-text responses."},
			"multiple":    map[string]any{"type": "boolean", "description": "Whether multiple options can be selected."},
			"required":    map[string]any{"type": "boolean", "description": "Whether the question requires an answer before submit."},
		},
		"required": []string{"question"},
	}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question":    map[string]any{"type": "string", "description": "Single-question shortcut. Use `questions` for multi-question flows."},
			"options":     map[string]any{"type": "array", "description": "Single-question options when using the shortcut form."},
			"placeholder": map[string]any{"type": "string", "description": "Single-question placeholder when using the shortcut form."},
			"multiple":    map[string]any{"type": "boolean", "description": "Single-question multi-select flag when using the shortcut form."},
			"required":    map[string]any{"type": "boolean", "description": "Single-question required flag when using the shortcut form."},
			"title":       map[string]any{"type": "string", "description": "Optional title for a multi-question flow."},
			"questions":   map[string]any{"type": "array", "items": question, "description": "Question list for multi-question flows."},
		},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// SetEventSink attaches the turn's event emitter. The agent loop installs
// it before executing the tool and clears it afterwards.
func (t *Tool) SetEventSink(emit agent.EmitFunc) {
	t.mu.Lock()
	t.emit = emit
	t.mu.Unlock()
}

// SubmitAnswer resolves a pending questionnaire. It reports whether the ID
// was recognized; duplicate submissions for a resolved questionnaire are
// ignored.
func (t *Tool) SubmitAnswer(questionnaireID string, answers []models.Answer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.known[questionnaireID] {
		return false
	}
	normalized := normalizeAnswers(answers)
	if ch, ok := t.pending[questionnaireID]; ok {
		delete(t.pending, questionnaireID)
		ch <- normalized
		return true
	}
	// The answer arrived before Execute started waiting.
	if _, seen := t.early[questionnaireID]; seen {
		return true
	}
	t.early[questionnaireID] = normalized
	return true
}

type questionItem struct {
	ID          string `json:"id"`
	Header      string `json:"header"`
	Question    string `json:"question"`
	Options     []any  `json:"options"`
	Placeholder string `json:"placeholder"`
	Multiple    bool   `json:"multiple"`
	Required    *bool  `json:"required"`
}

// Execute emits the questionnaire and suspends until answered.
func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		Question    string         `json:"question"`
		Options     []any          `json:"options"`
		Placeholder string         `json:"placeholder"`
		Multiple    bool           `json:"multiple"`
		Required    *bool          `json:"required"`
		Title       string         `json:"title"`
		Questions   []questionItem `json:"questions"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return models.ToolErrorf(t.Name(), "invalid arguments: %v", err), nil
	}

	hasSingle := strings.TrimSpace(input.Question) != ""
	hasMultiple := len(input.Questions) > 0
	if !hasSingle && !hasMultiple {
		return models.ToolError(t.Name(), "provide either `question` or `questions`"), nil
	}
	if hasSingle && hasMultiple {
		return models.ToolError(t.Name(), "provide only one of `question` or `questions`, not both"), nil
	}

	source := input.Questions
	if hasSingle {
		source = []questionItem{{
			Question:    input.Question,
			Options:     input.Options,
			Placeholder: input.Placeholder,
			Multiple:    input.Multiple,
			Required:    input.Required,
		}}
	}
	questions := normalizeQuestions(source)

	questionnaireID := "qq-" + strings.ReplaceAll(uuid.NewString(), "-", "")

	t.mu.Lock()
	emit := t.emit
	t.known[questionnaireID] = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.known, questionnaireID)
		delete(t.pending, questionnaireID)
		delete(t.early, questionnaireID)
		t.mu.Unlock()
	}()

	if emit == nil {
		return models.ToolError(t.Name(), "question tool has no event sink attached"), nil
	}
	if err := emit(ctx, models.QuestionEvent(questionnaireID, input.Title, questions)); err != nil {
		return models.ToolError(t.Name(), "question flow was cancelled before receiving answers"), nil
	}

	t.mu.Lock()
	answers, answered := t.early[questionnaireID]
	var ch chan []models.Answer
	if !answered {
		ch = make(chan []models.Answer, 1)
		t.pending[questionnaireID] = ch
	}
	t.mu.Unlock()

	if !answered {
		select {
		case answers = <-ch:
		case <-ctx.Done():
			return models.ToolError(t.Name(), "question flow was cancelled before receiving answers"), nil
		}
	}

	payload := map[string]any{
		"questionnaire_id": questionnaireID,
		"answers":          answers,
	}
	text, err := json.Marshal(payload)
	if err != nil {
		return models.ToolErrorf(t.Name(), "question flow failed: %v", err), nil
	}

	return models.ToolSuccess(t.Name(), string(text)).
		WithData(map[string]any{
			"questionnaire_id": questionnaireID,
			"title":            input.Title,
			"questions":        questions,
			"answers":          answers,
		}).
		WithMeta(map[string]any{
			"question_count": len(questions),
			"answer_count":   len(answers),
		}), nil
}

func normalizeQuestions(items []questionItem) []models.Question {
	out := make([]models.Question, 0, len(items))
	for i, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			id = fmt.Sprintf("q%d", i+1)
		}
		required := true
		if item.Required != nil {
			required = *item.Required
		}
		out = append(out, models.Question{
			ID:          id,
			Header:      item.Header,
			Question:    item.Question,
			Options:     optionLabels(item.Options),
			Placeholder: item.Placeholder,
			Multiple:    item.Multiple,
			Required:    required,
		})
	}
	return out
}

// optionLabels renders options to plain labels; object options use their
// label, value, or title field.
func optionLabels(options []any) []string {
	labels := make([]string, 0, len(options))
	for _, option := range options {
		switch v := option.(type) {
		case string:
			labels = append(labels, v)
		case map[string]any:
			label := ""
			for _, key := range []string{"label", "value", "title"} {
				if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
					label = s
					break
				}
			}
			if label == "" {
				label = fmt.Sprintf("%v", v)
			}
			labels = append(labels, label)
		default:
			labels = append(labels, fmt.Sprintf("%v", v))
		}
	}
	return labels
}

func normalizeAnswers(answers []models.Answer) []models.Answer {
	out := make([]models.Answer, 0, len(answers))
	for _, a := range answers {
		if a.SelectedOptions == nil {
			a.SelectedOptions = []string{}
		}
		out = append(out, a)
	}
	return out
}
