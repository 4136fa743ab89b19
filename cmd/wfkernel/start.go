package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var startContextFile string

var startCmd = &cobra.Command{
	Use:   "start <workflow-id>",
	Short: "Start a new workflow run and print its token triple",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	workflowId := args[0]

	var context map[string]any
	if startContextFile != "" {
		b, err := os.ReadFile(startContextFile)
		if err != nil {
			return fmt.Errorf("read context file: %w", err)
		}
		if err := json.Unmarshal(b, &context); err != nil {
			return fmt.Errorf("parse context file: %w", err)
		}
	}

	orch, err := openOrchestrator()
	if err != nil {
		return err
	}

	result, err := orch.StartWorkflow(workflowId, context)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	if result.Pending != nil {
		fmt.Fprintf(os.Stderr, "✓ started %s — pending step %q\n", workflowId, result.Pending.StepId)
	} else {
		fmt.Fprintf(os.Stderr, "✓ started %s — already complete\n", workflowId)
	}
	return nil
}
