package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/session"
)

var salvageCmd = &cobra.Command{
	Use:   "salvage <session-id> <out-dir>",
	Short: "Recover a SESSION_NOT_HEALTHY session's events up to the first corrupt one into a fresh directory",
	Args:  cobra.ExactArgs(2),
	RunE:  runSalvage,
}

func runSalvage(cmd *cobra.Command, args []string) error {
	sessionId := ids.SessionId(args[0])
	outDir := args[1]
	cfg := resolvedConfig()

	result, err := session.Salvage(cfg.DataDir, sessionId, outDir)
	if err != nil {
		return err
	}

	fmt.Printf("✓ recovered %d event(s) from %s into %s\n", result.RecoveredEvents, sessionId, outDir)
	if result.CorruptAtIndex >= 0 {
		fmt.Printf("⚠ stopped at eventIndex %d; everything from there on was discarded\n", result.CorruptAtIndex)
	} else {
		fmt.Println("✓ source log scanned clean end to end")
	}
	return nil
}
