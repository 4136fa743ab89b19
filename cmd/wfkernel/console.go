package main

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/console"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/session"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/store"
)

var consoleCmd = &cobra.Command{
	Use:   "console <session-id>",
	Short: "Browse a session's recorded node history interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	sessionId := ids.SessionId(args[0])
	cfg := resolvedConfig()

	snapshots, err := store.OpenSnapshotStore(filepath.Join(cfg.DataDir, "snapshots"))
	if err != nil {
		return err
	}

	truth, err := session.OpenLog(cfg.DataDir, sessionId, snapshots).Load()
	if err != nil {
		return err
	}

	nodes, err := console.BuildTimeline(truth, snapshots)
	if err != nil {
		return err
	}

	p := tea.NewProgram(console.NewModel(string(sessionId), nodes))
	_, err = p.Run()
	return err
}

var diagramFormat string

var diagramCmd = &cobra.Command{
	Use:   "diagram <workflow-id>",
	Short: "Print a Mermaid or ASCII diagram of a workflow's static shape",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagram,
}

func runDiagram(cmd *cobra.Command, args []string) error {
	def, err := resolveWorkflowDefinition(args[0])
	if err != nil {
		return err
	}

	out, err := console.Generate(def, console.Format(diagramFormat))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
