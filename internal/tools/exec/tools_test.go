package exec

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/corvid-run/agentcore/pkg/models"
)

func runTool(t *testing.T, tool interface {
	Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error)
}, args string) *models.ToolResult {
	t.Helper()
	result, err := tool.Execute(context.Background(), json.RawMessage(args))
	if err != nil {
		t.Fatalf("Execute returned internal error: %v", err)
	}
	return result
}

func TestShellEcho(t *testing.T) {
	tool := NewShellTool(NewManager(t.TempDir()))
	result := runTool(t, tool, `{"command":"echo hi"}`)

	if !result.Success {
		t.Fatal(result.ErrorMessage())
	}
	if result.Data["exit_code"] != 0 {
		t.Errorf("exit_code = %v", result.Data["exit_code"])
	}
	stdout, _ := result.Data["stdout"].(string)
	if !strings.Contains(stdout, "hi") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestShellNonZeroExit(t *testing.T) {
	tool := NewShellTool(NewManager(t.TempDir()))
	result := runTool(t, tool, `{"command":"exit 3"}`)

	if result.Success {
		t.Fatal("non-zero exit reported success")
	}
	if result.Data["exit_code"] != 3 {
		t.Errorf("exit_code = %v, want 3", result.Data["exit_code"])
	}
}

func TestShellTimeout(t *testing.T) {
	tool := NewShellTool(NewManager(t.TempDir()))
	result := runTool(t, tool, `{"command":"sleep 5","timeout":1}`)

	if result.Success {
		t.Fatal("timed-out command reported success")
	}
	if result.Meta["timed_out"] != true {
		t.Errorf("meta = %v, want timed_out", result.Meta)
	}
	if !strings.Contains(result.ErrorMessage(), "timed out after 1 seconds") {
		t.Errorf("error = %q", result.ErrorMessage())
	}
}

func TestShellRunsInWorkspace(t *testing.T) {
	ws := t.TempDir()
	tool := NewShellTool(NewManager(ws))
	result := runTool(t, tool, `{"command":"pwd"}`)

	stdout, _ := result.Data["stdout"].(string)
	if !strings.Contains(stdout, ws) {
		t.Errorf("pwd = %q, want workspace %q", stdout, ws)
	}
}

func TestShellOutputTruncation(t *testing.T) {
	tool := NewShellTool(NewManager(t.TempDir()))
	result := runTool(t, tool, `{"command":"yes x | head -c 100000"}`)

	if result.Meta["truncated"] != true {
		t.Error("meta.truncated not set on oversized output")
	}
	if !strings.Contains(result.Text, "[output truncated]") {
		t.Error("truncation note missing")
	}
	if len(result.Text) > MaxOutputChars+len(OutputTruncationNote) {
		t.Errorf("output length = %d, cap not applied", len(result.Text))
	}
}

func TestCodeInterpreterPython(t *testing.T) {
	tool := NewCodeInterpreterTool(NewManager(t.TempDir()))
	result := runTool(t, tool, `{"code":"print('from python')","language":"python"}`)

	if !result.Success {
		t.Skipf("python3 unavailable: %s", result.ErrorMessage())
	}
	if !strings.Contains(result.Text, "from python") {
		t.Errorf("Text = %q", result.Text)
	}
	if result.Data["language"] != "python" {
		t.Errorf("language = %v", result.Data["language"])
	}
}

func TestCodeInterpreterReportsNewMedia(t *testing.T) {
	ws := t.TempDir()
	tool := NewCodeInterpreterTool(NewManager(ws))
	code := `open('chart.png','wb').write(b'fake')`
	payload, _ := json.Marshal(map[string]any{"code": code, "language": "python"})

	result := runTool(t, tool, string(payload))
	if !result.Success {
		t.Skipf("python3 unavailable: %s", result.ErrorMessage())
	}
	if !strings.Contains(result.Text, "sandbox:///chart.png") {
		t.Errorf("Text = %q, want sandbox reference", result.Text)
	}
	mediaRefs, _ := result.Data["media"].([]map[string]any)
	if len(mediaRefs) != 1 || mediaRefs[0]["name"] != "chart.png" {
		t.Errorf("media = %v", mediaRefs)
	}
}

func TestCodeInterpreterRejectsUnknownLanguage(t *testing.T) {
	tool := NewCodeInterpreterTool(NewManager(t.TempDir()))
	result := runTool(t, tool, `{"code":"x","language":"ruby"}`)
	if result.Success || !strings.Contains(result.ErrorMessage(), "unsupported language") {
		t.Errorf("result = %+v", result)
	}
}
