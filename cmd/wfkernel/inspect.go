package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/session"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Dump a session's event log as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	sessionId := ids.SessionId(args[0])
	cfg := resolvedConfig()

	truth, err := session.OpenLog(cfg.DataDir, sessionId, nil).Load()
	if err != nil {
		if kerr, ok := err.(*kerrors.Error); ok {
			fmt.Fprintf(os.Stderr, "⚠ %s: %s\n", kerr.Code, kerr.Message)
		}
		return err
	}

	data, err := json.MarshalIndent(truth.Events, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	fmt.Fprintf(os.Stderr, "✓ %d events, head=%s tail=%s\n", len(truth.Events), truth.HeadHash, truth.TailHash)
	return nil
}
