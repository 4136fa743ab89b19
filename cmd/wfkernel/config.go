package main

import (
	"fmt"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/config"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/interpreter"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/orchestrator"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/provider"
)

// resolvedConfig builds a config.Config from the root command's persistent
// --data-dir flag, falling through to WFKERNEL_DATA_DIR and the default.
func resolvedConfig() config.Config {
	var opts []config.Option
	if dataDirFlag != "" {
		opts = append(opts, config.WithDataDir(dataDirFlag))
	}
	return config.Load(opts...)
}

// openOrchestrator wires an Orchestrator against the resolved config and a
// local-file provider rooted at --workflows-dir.
func openOrchestrator() (*orchestrator.Orchestrator, error) {
	return orchestrator.OpenWithConfig(resolvedConfig(), provider.NewLocalFileProvider(workflowsDirFlag))
}

// resolveWorkflowDefinition loads workflowId through the same local-file
// provider the orchestrator uses, for commands (diagram) that only need the
// static shape and never touch a session.
func resolveWorkflowDefinition(workflowId string) (interpreter.WorkflowDefinition, error) {
	raw, err := provider.NewLocalFileProvider(workflowsDirFlag).GetWorkflowById(workflowId)
	if err != nil {
		return interpreter.WorkflowDefinition{}, err
	}
	if raw == nil {
		return interpreter.WorkflowDefinition{}, fmt.Errorf("unknown workflow id %q", workflowId)
	}
	return interpreter.FromDefinitionMap(raw)
}
