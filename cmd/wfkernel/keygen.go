package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/keyring"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Materialize the data directory's HMAC signing key",
	Args:  cobra.NoArgs,
	RunE:  runKeygen,
}

func runKeygen(cmd *cobra.Command, args []string) error {
	cfg := resolvedConfig()
	if _, err := keyring.Open(cfg.DataDir).Load(); err != nil {
		return err
	}
	fmt.Printf("✓ signing key ready under %s/keyring\n", cfg.DataDir)
	return nil
}
