package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

type stubBackend struct {
	images []GeneratedImage
	err    error
	last   GenerateRequest
}

func (s *stubBackend) Generate(_ context.Context, req GenerateRequest) ([]GeneratedImage, error) {
	s.last = req
	return s.images, s.err
}

func TestGenerateSavesWithFilenameContract(t *testing.T) {
	ws := t.TempDir()
	backend := &stubBackend{images: []GeneratedImage{
		{Data: []byte("img-one"), Ext: ".png"},
		{Data: []byte("img-two"), Ext: "jpg"},
	}}
	tool := New(ws, backend)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"prompt":"a red fox"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatal(result.ErrorMessage())
	}

	entries, err := os.ReadDir(filepath.Join(ws, OutputDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("saved files = %d, want 2", len(entries))
	}

	namePattern := regexp.MustCompile(`^\d{13}_[0-9a-f]{8}_\d\.(png|jpg)$`)
	for _, entry := range entries {
		if !namePattern.MatchString(entry.Name()) {
			t.Errorf("filename %q does not match <ms-epoch>_<md5-8>_<idx>.<ext>", entry.Name())
		}
	}

	if !strings.Contains(result.Text, "sandbox:///generated_images/") {
		t.Errorf("Text = %q", result.Text)
	}
	if backend.last.Size != "1024x1024" || backend.last.N != 1 {
		t.Errorf("backend defaults = %+v", backend.last)
	}
}

func TestGenerateErrors(t *testing.T) {
	ws := t.TempDir()

	unconfigured := New(ws, nil)
	result, _ := unconfigured.Execute(context.Background(), json.RawMessage(`{"prompt":"x"}`))
	if result.Success || !strings.Contains(result.ErrorMessage(), "not configured") {
		t.Errorf("result = %+v", result)
	}

	failing := New(ws, &stubBackend{err: errors.New("quota exceeded")})
	result, _ = failing.Execute(context.Background(), json.RawMessage(`{"prompt":"x"}`))
	if result.Success || !strings.Contains(result.ErrorMessage(), "quota exceeded") {
		t.Errorf("result = %+v", result)
	}

	empty := New(ws, &stubBackend{})
	result, _ = empty.Execute(context.Background(), json.RawMessage(`{"prompt":"x"}`))
	if result.Success || !strings.Contains(result.ErrorMessage(), "no images") {
		t.Errorf("result = %+v", result)
	}
}
