// Package imagegen implements the image_generation tool. The actual model
// call is delegated to a pluggable backend; this package owns the argument
// contract and the save-path layout for generated files.
package imagegen

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/corvid-run/agentcore/internal/media"
	"github.com/corvid-run/agentcore/pkg/models"
)

// OutputDir is the workspace subdirectory generated images land in.
const OutputDir = "generated_images"

// GeneratedImage is one image produced by a backend.
type GeneratedImage struct {
	Data []byte
	Ext  string
}

// Backend generates images from a prompt. Implementations wrap a concrete
// provider's image API.
type Backend interface {
	Generate(ctx context.Context, req GenerateRequest) ([]GeneratedImage, error)
}

// GenerateRequest carries the backend parameters.
type GenerateRequest struct {
	Prompt  string
	Size    string
	Quality string
	N       int
}

// Tool is the image_generation tool.
type Tool struct {
	workspace string
	backend   Backend
}

// New creates an image generation tool saving into the workspace.
func New(workspace string, backend Backend) *Tool {
	return &Tool{workspace: workspace, backend: backend}
}

// Name returns the tool name.
func (t *Tool) Name() string { return "image_generation" }

// Description returns the tool description.
func (t *Tool) Description() string {
	return "Generate images from text descriptions using the conversation's AI model. " +
		"Returns sandbox:// URLs for the generated images."
}

// Schema returns the JSON schema for the tool parameters.
func (t *Tool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "A detailed description of the image to generate.",
			},
			"size": map[string]any{
				"type":        "string",
				"description": "Image size. Options: 1024x1024, 1024x1536, 1536x1024.",
			},
			"quality": map[string]any{
				"type":        "string",
				"description": "Image quality. Options: low, medium, high, auto.",
			},
			"n": map[string]any{
				"type":        "integer",
				"description": "Number of images to generate (1-4).",
				"minimum":     1,
				"maximum":     4,
			},
		},
		"required": []string{"prompt"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute generates the images and saves them under the output directory
// with <ms-epoch>_<md5-first-8>_<idx>.<ext> filenames.
func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		Prompt  string `json:"prompt"`
		Size    string `json:"size"`
		Quality string `json:"quality"`
		N       int    `json:"n"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return models.ToolErrorf(t.Name(), "invalid arguments: %v", err), nil
	}
	if t.backend == nil {
		return models.ToolError(t.Name(), "image generation is not configured for this conversation"), nil
	}
	if input.Size == "" {
		input.Size = "1024x1024"
	}
	if input.Quality == "" {
		input.Quality = "auto"
	}
	if input.N <= 0 {
		input.N = 1
	}

	images, err := t.backend.Generate(ctx, GenerateRequest{
		Prompt:  input.Prompt,
		Size:    input.Size,
		Quality: input.Quality,
		N:       input.N,
	})
	if err != nil {
		return models.ToolErrorf(t.Name(), "image generation failed: %v", err), nil
	}
	if len(images) == 0 {
		return models.ToolError(t.Name(), "no images were generated; the model may not support image generation"), nil
	}

	outDir := filepath.Join(t.workspace, OutputDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return models.ToolErrorf(t.Name(), "saving images failed: %v", err), nil
	}

	ts := time.Now().UnixMilli()
	var lines []string
	var refs []media.Ref
	for i, img := range images {
		ext := img.Ext
		if ext == "" {
			ext = ".png"
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		sum := md5.Sum(img.Data)
		name := fmt.Sprintf("%d_%s_%d%s", ts, hex.EncodeToString(sum[:])[:8], i, ext)
		if err := os.WriteFile(filepath.Join(outDir, name), img.Data, 0o644); err != nil {
			return models.ToolErrorf(t.Name(), "saving images failed: %v", err), nil
		}

		rel := OutputDir + "/" + name
		lines = append(lines, fmt.Sprintf("![Generated Image](%s)", media.SandboxURL(rel)))
		refs = append(refs, media.Ref{
			Type: media.KindImage,
			Name: name,
			URL:  media.SandboxURL(rel),
			MIME: media.MIMEForExtension(ext),
			Size: int64(len(img.Data)),
		})
	}

	return models.ToolSuccess(t.Name(), strings.Join(lines, "\n\n")).
		WithData(map[string]any{
			"prompt": input.Prompt,
			"media":  media.RefsToData(refs),
		}).
		WithMeta(map[string]any{"image_count": len(refs)}), nil
}
