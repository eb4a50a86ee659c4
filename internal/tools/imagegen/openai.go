package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// dataURIPattern extracts inline images from chat completion content.
var dataURIPattern = regexp.MustCompile(`data:image/(\w+);base64,([A-Za-z0-9+/=]+)`)

// OpenAIBackend generates images through an image-capable chat model that
// returns data URIs in its completion content.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates a backend against the given model. An empty
// endpoint uses the default API base.
func NewOpenAIBackend(apiKey, endpointURL, model string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, errors.New("imagegen: API key is required")
	}
	if model == "" {
		return nil, errors.New("imagegen: model is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(endpointURL) != "" {
		cfg.BaseURL = strings.TrimRight(endpointURL, "/")
	}
	return &OpenAIBackend{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Generate runs one completion per requested image and decodes every data
// URI the model returns.
func (b *OpenAIBackend) Generate(ctx context.Context, req GenerateRequest) ([]GeneratedImage, error) {
	n := req.N
	if n <= 0 {
		n = 1
	}

	var images []GeneratedImage
	for i := 0; i < n; i++ {
		resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: b.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		for _, match := range dataURIPattern.FindAllStringSubmatch(resp.Choices[0].Message.Content, -1) {
			format, encoded := match[1], match[2]
			data, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				continue
			}
			ext := "." + format
			if format == "jpeg" {
				ext = ".jpg"
			}
			images = append(images, GeneratedImage{Data: data, Ext: ext})
		}
	}
	return images, nil
}
