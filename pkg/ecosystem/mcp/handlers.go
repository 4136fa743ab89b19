package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/orchestrator"
)

// Handlers binds the MCP tool functions to a single orchestrator instance.
type Handlers struct {
	orch *orchestrator.Orchestrator
}

// HandleStart implements the workflow/start MCP tool.
func (h *Handlers) HandleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	workflowId, _ := args["workflowId"].(string)
	if workflowId == "" {
		return errorResult("workflowId argument is required"), nil
	}
	workflowContext, _ := args["context"].(map[string]any)

	result, err := h.orch.StartWorkflow(workflowId, workflowContext)
	if err != nil {
		return kernelErrorResult(err), nil
	}
	return jsonResult(result), nil
}

// HandleContinue implements the workflow/continue MCP tool.
func (h *Handlers) HandleContinue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	stateToken, _ := args["stateToken"].(string)
	if stateToken == "" {
		return errorResult("stateToken argument is required"), nil
	}
	ackToken, _ := args["ackToken"].(string)
	workflowContext, _ := args["context"].(map[string]any)

	var output *orchestrator.Output
	if notes, _ := args["notesMarkdown"].(string); notes != "" {
		output = &orchestrator.Output{NotesMarkdown: notes}
	}

	result, err := h.orch.ContinueWorkflow(orchestrator.ContinueRequest{
		StateToken: stateToken,
		AckToken:   ackToken,
		Context:    workflowContext,
		Output:     output,
	})
	if err != nil {
		return kernelErrorResult(err), nil
	}
	return jsonResult(result), nil
}

// jsonResult marshals v as the tool's text content.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("marshal result: %s", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
	}
}

// kernelErrorResult renders a *kerrors.Error (or any other error) as the
// tool's wire error envelope, per spec.md's external interface contract.
func kernelErrorResult(err error) *mcp.CallToolResult {
	kerr, ok := err.(*kerrors.Error)
	if !ok {
		return errorResult(err.Error())
	}
	data, merr := json.MarshalIndent(kerr.ToEnvelope(), "", "  ")
	if merr != nil {
		return errorResult(kerr.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: true,
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(msg)},
		IsError: true,
	}
}
