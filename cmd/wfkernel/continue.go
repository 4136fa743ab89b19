package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/orchestrator"
)

var continueNotes string

var continueCmd = &cobra.Command{
	Use:   "continue <token-file>",
	Short: "Rehydrate or advance a session from a saved token-file",
	Long: "token-file is a JSON document with stateToken, optional ackToken, and\n" +
		"optional context fields — typically the JSON a prior 'wfkernel start' or\n" +
		"'wfkernel continue' call printed to stdout, saved and edited by the caller.",
	Args: cobra.ExactArgs(1),
	RunE: runContinue,
}

type tokenFile struct {
	StateToken string         `json:"stateToken"`
	AckToken   string         `json:"ackToken,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

func runContinue(cmd *cobra.Command, args []string) error {
	b, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return fmt.Errorf("parse token file: %w", err)
	}
	if tf.StateToken == "" {
		return fmt.Errorf("token file is missing stateToken")
	}

	orch, err := openOrchestrator()
	if err != nil {
		return err
	}

	var output *orchestrator.Output
	if continueNotes != "" {
		output = &orchestrator.Output{NotesMarkdown: continueNotes}
	}

	result, err := orch.ContinueWorkflow(orchestrator.ContinueRequest{
		StateToken: tf.StateToken,
		AckToken:   tf.AckToken,
		Context:    tf.Context,
		Output:     output,
	})
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	if result.Kind == "blocked" {
		fmt.Fprintf(os.Stderr, "⚠ blocked: %v\n", result.Blockers)
	} else if result.IsComplete {
		fmt.Fprintf(os.Stderr, "✓ run complete\n")
	} else if result.Pending != nil {
		fmt.Fprintf(os.Stderr, "✓ pending step %q (%s)\n", result.Pending.StepId, result.NextIntent)
	}
	return nil
}
