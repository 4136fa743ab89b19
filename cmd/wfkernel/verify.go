package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/session"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <session-id>",
	Short: "Re-run a session's head/tail integrity check",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	sessionId := ids.SessionId(args[0])
	cfg := resolvedConfig()

	truth, err := session.OpenLog(cfg.DataDir, sessionId, nil).Load()
	if err != nil {
		kerr, ok := err.(*kerrors.Error)
		if !ok {
			return err
		}
		fmt.Printf("SESSION_NOT_HEALTHY: %s\n", kerr.Message)
		if kerr.Details != nil {
			fmt.Fprintf(os.Stderr, "⚠ details: %v\n", kerr.Details)
		}
		os.Exit(1)
		return nil
	}

	fmt.Printf("%s: %d events, head=%s tail=%s\n", truth.Health, len(truth.Events), truth.HeadHash, truth.TailHash)
	fmt.Fprintf(os.Stderr, "✓ session %s is healthy\n", sessionId)
	return nil
}
