// Package main provides the wfkernel-mcp binary — the MCP stdio server
// exposing workflow/start and workflow/continue to an AI agent host.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	wmcp "github.com/ormasoftchile/wfkernel/pkg/ecosystem/mcp"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/config"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/orchestrator"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/provider"
)

var version = "dev"

func main() {
	cfg := config.Load()

	providerDir := os.Getenv("WFKERNEL_WORKFLOWS_DIR")
	if providerDir == "" {
		providerDir = "workflows"
	}

	orch, err := orchestrator.OpenWithConfig(cfg, provider.NewLocalFileProvider(providerDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	s := wmcp.NewServer(version, orch)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
