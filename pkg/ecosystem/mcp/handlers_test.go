package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/orchestrator"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/provider"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	root := t.TempDir()
	provDir := filepath.Join(root, "workflows")
	if err := os.MkdirAll(provDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	doc := "id: demo\nname: Demo\nversion: \"1\"\nsteps:\n" +
		"  - stepId: s1\n    title: S1\n"
	if err := os.WriteFile(filepath.Join(provDir, "demo.yaml"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write workflow fixture: %v", err)
	}
	orch, err := orchestrator.Open(filepath.Join(root, "data"), provider.NewLocalFileProvider(provDir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return &Handlers{orch: orch}
}

func TestHandleStart_MissingWorkflowId(t *testing.T) {
	h := newTestHandlers(t)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := h.HandleStart(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing workflowId")
	}
}

func TestHandleStart_UnknownWorkflow(t *testing.T) {
	h := newTestHandlers(t)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"workflowId": "does-not-exist"}

	result, err := h.HandleStart(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for unknown workflowId")
	}
}

func TestHandleStart_ReturnsPendingStep(t *testing.T) {
	h := newTestHandlers(t)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"workflowId": "demo"}

	result, err := h.HandleStart(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Errorf("expected success, content: %v", result.Content)
	}
	if len(result.Content) == 0 {
		t.Error("expected result content")
	} else if tc, ok := result.Content[0].(mcp.TextContent); !ok || !strings.Contains(tc.Text, `"stepId": "s1"`) {
		t.Errorf("expected pending step s1 in result, got: %v", result.Content)
	}
}

func TestHandleContinue_MissingStateToken(t *testing.T) {
	h := newTestHandlers(t)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := h.HandleContinue(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing stateToken")
	}
}

func TestHandleContinue_RehydratesWithoutAckToken(t *testing.T) {
	h := newTestHandlers(t)
	startReq := mcp.CallToolRequest{}
	startReq.Params.Arguments = map[string]any{"workflowId": "demo"}
	startResult, err := h.HandleStart(context.Background(), startReq)
	if err != nil {
		t.Fatal(err)
	}
	if startResult.IsError {
		t.Fatalf("start failed: %v", startResult.Content)
	}

	out, err := h.orch.StartWorkflow("demo", nil)
	if err != nil {
		t.Fatal(err)
	}

	continueReq := mcp.CallToolRequest{}
	continueReq.Params.Arguments = map[string]any{"stateToken": out.StateToken}
	result, err := h.HandleContinue(context.Background(), continueReq)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Errorf("expected rehydrate to succeed, got: %v", result.Content)
	}
}
