package files

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corvid-run/agentcore/internal/media"
	"github.com/corvid-run/agentcore/pkg/models"
)

// Config controls filesystem tool defaults.
type Config struct {
	Workspace string
}

// ReadTool reads workspace files with line-numbered output, returning
// inline multimodal content for images and sandbox references for other
// media.
type ReadTool struct {
	resolver Resolver
}

// NewReadTool creates a read tool scoped to the workspace.
func NewReadTool(cfg Config) *ReadTool {
	return &ReadTool{resolver: Resolver{Root: cfg.Workspace}}
}

// Name returns the tool name.
func (t *ReadTool) Name() string { return "read" }

// Description returns the tool description.
func (t *ReadTool) Description() string {
	return "Read a file from the workspace and return its contents with " +
		"line numbers. Supports offset and limit for large files."
}

// Schema returns the JSON schema for the tool parameters.
func (t *ReadTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path to the file to read.",
			},
			"offset": map[string]any{
				"type":        "integer",
				"description": "Line number to start reading from (0-based).",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of lines to return.",
			},
		},
		"required": []string{"file_path"},
	})
}

// Execute reads the file and renders the result envelope.
func (t *ReadTool) Execute(_ context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		FilePath string `json:"file_path"`
		Offset   int    `json:"offset"`
		Limit    *int   `json:"limit"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return models.ToolErrorf(t.Name(), "invalid arguments: %v", err), nil
	}
	limit := 2000
	if input.Limit != nil {
		limit = *input.Limit
	}

	resolved, err := t.resolver.Resolve(input.FilePath)
	if err != nil {
		return models.ToolError(t.Name(), err.Error()), nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return models.ToolErrorf(t.Name(), "file not found: %s", input.FilePath), nil
		}
		return models.ToolErrorf(t.Name(), "reading file failed: %v", err), nil
	}
	if info.IsDir() {
		return models.ToolErrorf(t.Name(), "path is a directory, not a file: %s", input.FilePath), nil
	}

	switch media.ClassifyPath(resolved) {
	case media.KindImage:
		return t.readImage(input.FilePath, resolved, info.Size())
	case media.KindVideo, media.KindAudio:
		return t.readMediaRef(input.FilePath, resolved, info.Size())
	}
	return t.readText(input.FilePath, resolved, input.Offset, limit)
}

func (t *ReadTool) readText(filePath, resolved string, offset, limit int) (*models.ToolResult, error) {
	f, err := os.Open(resolved)
	if err != nil {
		return models.ToolErrorf(t.Name(), "reading file failed: %v", err), nil
	}
	defer f.Close()

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	var numbered []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo <= offset {
			continue
		}
		if len(numbered) >= limit {
			break
		}
		numbered = append(numbered, fmt.Sprintf("%6d\t%s", lineNo, scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return models.ToolErrorf(t.Name(), "reading file failed: %v", err), nil
	}

	text := "(empty file)"
	if len(numbered) > 0 {
		text = strings.Join(numbered, "\n")
	}
	return models.ToolSuccess(t.Name(), text).WithData(map[string]any{
		"file_path":      filePath,
		"offset":         offset,
		"limit":          limit,
		"lines_returned": len(numbered),
	}), nil
}

func (t *ReadTool) readImage(filePath, resolved string, size int64) (*models.ToolResult, error) {
	if size == 0 {
		return models.ToolErrorf(t.Name(), "image file is empty: %s", filePath), nil
	}
	if size > media.MaxImageBytes {
		return models.ToolErrorf(t.Name(), "image file too large (%d bytes, max %d): %s", size, media.MaxImageBytes, filePath), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return models.ToolErrorf(t.Name(), "reading file failed: %v", err), nil
	}

	rel := t.resolver.Rel(resolved)
	mime := media.MIMEForExtension(filepath.Ext(resolved))
	sURL := media.SandboxURL(rel)
	text := fmt.Sprintf("Image file: %s\n![%s](%s)", filePath, filePath, sURL)

	return models.ToolSuccess(t.Name(), text).
		WithData(map[string]any{
			"file_path": filePath,
			"media": media.RefsToData([]media.Ref{{
				Type: media.KindImage,
				Name: filepath.Base(filePath),
				URL:  sURL,
				MIME: mime,
				Size: size,
			}}),
		}).
		WithMeta(map[string]any{"bytes": size}).
		WithLLMContent([]map[string]any{
			{"type": "text", "text": text},
			{"type": "image_url", "image_url": map[string]any{"url": media.DataURI(mime, data)}},
		}), nil
}

func (t *ReadTool) readMediaRef(filePath, resolved string, size int64) (*models.ToolResult, error) {
	kind := media.ClassifyPath(resolved)
	if size == 0 {
		return models.ToolErrorf(t.Name(), "%s file is empty: %s", kind, filePath), nil
	}
	if size > media.MaxMediaBytes {
		return models.ToolErrorf(t.Name(), "%s file too large (%d bytes, max %d): %s", kind, size, media.MaxMediaBytes, filePath), nil
	}

	rel := t.resolver.Rel(resolved)
	name := filepath.Base(filePath)
	sURL := media.SandboxURL(rel)
	label := strings.ToUpper(string(kind)[:1]) + string(kind)[1:]
	text := fmt.Sprintf("%s file: %s (%d bytes)\n[%s: %s](%s)", label, filePath, size, label, name, sURL)

	return models.ToolSuccess(t.Name(), text).
		WithData(map[string]any{
			"file_path": filePath,
			"media": media.RefsToData([]media.Ref{{
				Type: kind,
				Name: name,
				URL:  sURL,
				Size: size,
			}}),
		}).
		WithMeta(map[string]any{"bytes": size}), nil
}

func mustSchema(schema map[string]any) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
