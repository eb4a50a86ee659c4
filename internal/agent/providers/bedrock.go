package providers

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/corvid-run/agentcore/internal/agent"
	"github.com/corvid-run/agentcore/internal/agent/contract"
	"github.com/corvid-run/agentcore/internal/agent/toolconv"
	"github.com/corvid-run/agentcore/pkg/models"
)

// BedrockProvider implements agent.LLMProvider over the Converse streaming
// API. It is the runtime's generic-capability provider: no reasoning, no
// native thinking, and no mid-stream usage accounting, so completed turns
// report zero token counts.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// NewBedrockProvider creates a Bedrock provider. The API key field is read
// as "<access-key-id>:<secret>" when set; otherwise the default AWS
// credential chain applies. The endpoint field selects the region.
func NewBedrockProvider(cfg Config) (*BedrockProvider, error) {
	region := strings.TrimSpace(cfg.EndpointURL)
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	options := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if id, secret, ok := strings.Cut(cfg.APIKey, ":"); ok && id != "" && secret != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(id, secret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), options...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: model,
	}, nil
}

// Name returns "bedrock".
func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) model(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

// Stream opens a Converse stream.
func (p *BedrockProvider) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan agent.StreamChunk, error) {
	model := p.model(req.Model)

	converseReq := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: convertBedrockMessages(req.Messages),
	}
	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if n := maxTokensFromParams(req.Params, 0); n > 0 {
		if n > math.MaxInt32 {
			n = math.MaxInt32
		}
		converseReq.InferenceConfig = &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(n)),
		}
	}
	if len(req.Tools) > 0 {
		converseReq.ToolConfig = toolconv.Bedrock(req.Tools)
	}

	stream, err := p.client.ConverseStream(ctx, converseReq)
	if err != nil {
		return nil, WrapError(p.Name(), model, err)
	}

	chunks := make(chan agent.StreamChunk)
	go p.processStream(ctx, stream, chunks, model)
	return chunks, nil
}

// processStream translates Converse events into stream fragments. Tool-use
// blocks arrive as a start (id + name) followed by input deltas, which map
// directly onto indexed tool-call chunks.
func (p *BedrockProvider) processStream(ctx context.Context, stream *bedrockruntime.ConverseStreamOutput, chunks chan<- agent.StreamChunk, model string) {
	defer close(chunks)

	eventStream := stream.GetStream()
	defer eventStream.Close()

	emit := func(chunk agent.StreamChunk) bool {
		select {
		case chunks <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	toolIndexByBlock := map[int32]int{}
	nextToolIndex := 0

	for event := range eventStream.Events() {
		switch ev := event.(type) {
		case *types.ConverseStreamOutputMemberContentBlockStart:
			toolUse, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse)
			if !ok {
				continue
			}
			idx := nextToolIndex
			nextToolIndex++
			toolIndexByBlock[aws.ToInt32(ev.Value.ContentBlockIndex)] = idx
			if !emit(agent.StreamChunk{ToolCalls: []agent.ToolCallChunk{{
				Index: &idx,
				ID:    aws.ToString(toolUse.Value.ToolUseId),
				Name:  aws.ToString(toolUse.Value.Name),
			}}}) {
				return
			}

		case *types.ConverseStreamOutputMemberContentBlockDelta:
			switch delta := ev.Value.Delta.(type) {
			case *types.ContentBlockDeltaMemberText:
				if delta.Value != "" {
					if !emit(agent.StreamChunk{Blocks: []contract.Block{{"type": "text", "text": delta.Value}}}) {
						return
					}
				}
			case *types.ContentBlockDeltaMemberToolUse:
				if delta.Value.Input == nil || *delta.Value.Input == "" {
					continue
				}
				if idx, ok := toolIndexByBlock[aws.ToInt32(ev.Value.ContentBlockIndex)]; ok {
					idxCopy := idx
					if !emit(agent.StreamChunk{ToolCalls: []agent.ToolCallChunk{{
						Index: &idxCopy,
						Args:  *delta.Value.Input,
					}}}) {
						return
					}
				}
			}

		case *types.ConverseStreamOutputMemberMessageStop:
			// The Converse stream reports no usage mid-stream; zero counts
			// are the honest answer here.
			emit(agent.StreamChunk{Done: true})
			return
		}
	}

	if err := eventStream.Err(); err != nil {
		emit(agent.StreamChunk{Err: WrapError(p.Name(), model, err)})
		return
	}
	emit(agent.StreamChunk{Done: true})
}

// convertBedrockMessages maps the history to Converse messages.
func convertBedrockMessages(messages []models.Message) []types.Message {
	result := make([]types.Message, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			continue
		}

		var content []types.ContentBlock
		role := types.ConversationRoleUser

		switch msg.Role {
		case models.RoleAssistant:
			role = types.ConversationRoleAssistant
			if text := messageText(msg.Content); text != "" {
				content = append(content, &types.ContentBlockMemberText{Value: text})
			}
			for _, tc := range msg.ToolCalls {
				input := any(tc.Args)
				if tc.Args == nil {
					input = map[string]any{}
				}
				content = append(content, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(tc.ID),
						Name:      aws.String(tc.Name),
						Input:     document.NewLazyDocument(input),
					},
				})
			}

		case models.RoleTool:
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(msg.ToolCallID),
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: messageText(msg.Content)},
					},
				},
			})

		default:
			if text := messageText(msg.Content); text != "" {
				content = append(content, &types.ContentBlockMemberText{Value: text})
			}
		}

		if len(content) > 0 {
			result = append(result, types.Message{Role: role, Content: content})
		}
	}
	return result
}
