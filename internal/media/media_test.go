package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		ext  string
		want Kind
	}{
		{".png", KindImage},
		{".JPG", KindImage},
		{".webp", KindImage},
		{".mp4", KindVideo},
		{".mov", KindVideo},
		{".mp3", KindAudio},
		{".m4a", KindAudio},
		{".txt", KindUnknown},
		{".svg", KindUnknown},
		{"", KindUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.ext); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestSandboxURL(t *testing.T) {
	if got := SandboxURL("generated_images/a.png"); got != "sandbox:///generated_images/a.png" {
		t.Errorf("SandboxURL = %q", got)
	}
}

func TestFormatSandboxRef(t *testing.T) {
	tests := []struct {
		rel  string
		kind Kind
		want string
	}{
		{"plots/chart.png", KindImage, "![chart.png](sandbox:///plots/chart.png)"},
		{"clips/demo.mp4", KindVideo, "[Video: demo.mp4](sandbox:///clips/demo.mp4)"},
		{"voice.mp3", KindAudio, "[Audio: voice.mp3](sandbox:///voice.mp3)"},
	}
	for _, tt := range tests {
		if got := FormatSandboxRef(tt.rel, tt.kind); got != tt.want {
			t.Errorf("FormatSandboxRef(%q) = %q, want %q", tt.rel, got, tt.want)
		}
	}
}

func TestDataURI(t *testing.T) {
	uri := DataURI("image/png", []byte{1, 2, 3})
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("DataURI = %q", uri)
	}
}

func TestScannerDiffNew(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "old.png"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewScanner(ws)
	if err := s.Prime(); err != nil {
		t.Fatal(err)
	}

	if err := os.MkdirAll(filepath.Join(ws, "plots"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"plots/new.png", "chart.svg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(ws, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Files under skipped directories are never reported.
	if err := os.MkdirAll(filepath.Join(ws, "node_modules"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "node_modules", "asset.png"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	added, err := s.DiffNew()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"chart.svg", filepath.Join("plots", "new.png")}
	if len(added) != len(want) {
		t.Fatalf("DiffNew = %v, want %v", added, want)
	}
	for i := range want {
		if added[i] != want[i] {
			t.Errorf("DiffNew[%d] = %q, want %q", i, added[i], want[i])
		}
	}

	// A second diff with no changes reports nothing.
	added, err = s.DiffNew()
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 0 {
		t.Errorf("second DiffNew = %v, want empty", added)
	}
}

func TestFormatNewTreatsSVGAsImage(t *testing.T) {
	text, refs := FormatNew([]string{"chart.svg"})
	if !strings.Contains(text, "![chart.svg](sandbox:///chart.svg)") {
		t.Errorf("text = %q", text)
	}
	if len(refs) != 1 || refs[0].Type != KindImage {
		t.Errorf("refs = %+v", refs)
	}
}
