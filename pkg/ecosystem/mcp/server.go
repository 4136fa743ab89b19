// Package mcp exposes the kernel's two entry points, start_workflow and
// continue_workflow, as MCP tools over stdio — the same NewServer/AddTool
// shape the teacher uses to expose its own runbook verbs, retargeted onto
// the orchestrator.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/orchestrator"
)

// NewServer creates an MCP server exposing workflow/start and
// workflow/continue, backed by orch.
func NewServer(version string, orch *orchestrator.Orchestrator) *server.MCPServer {
	s := server.NewMCPServer(
		"wfkernel",
		version,
		server.WithToolCapabilities(false),
	)

	h := &Handlers{orch: orch}

	s.AddTool(
		mcp.NewTool("workflow/start",
			mcp.WithDescription("Start a new workflow run and return the token triple bound to its first pending step"),
			mcp.WithString("workflowId", mcp.Required(), mcp.Description("Id of the workflow to resolve and start")),
			mcp.WithObject("context", mcp.Description("Initial context object available to run-conditions and loop sources")),
		),
		h.HandleStart,
	)

	s.AddTool(
		mcp.NewTool("workflow/continue",
			mcp.WithDescription("Rehydrate a session, or acknowledge its pending step and advance to the next one"),
			mcp.WithString("stateToken", mcp.Required(), mcp.Description("The state token from the prior response")),
			mcp.WithString("ackToken", mcp.Description("The ack token for the step being acknowledged; omit to rehydrate read-only")),
			mcp.WithObject("context", mcp.Description("Context merged in before evaluating the next step's run-conditions")),
			mcp.WithString("notesMarkdown", mcp.Description("Free-form recap notes to attach to the acknowledged step's parent node")),
		),
		h.HandleContinue,
	)

	return s
}
