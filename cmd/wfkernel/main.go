// Package main provides the wfkernel CLI entrypoint.
//
//	wfkernel keygen
//	wfkernel start <workflow-id>
//	wfkernel continue <token-file>
//	wfkernel inspect <session-id>
//	wfkernel verify <session-id>
//	wfkernel replay <token-file>
//	wfkernel console <session-id>
//	wfkernel diagram <workflow-id>
//	wfkernel schema workflow
//	wfkernel salvage <session-id> <out-dir>
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wfkernel",
	Short: "Durable, token-orchestrated workflow execution kernel",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version info",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("wfkernel %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(continueCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(salvageCmd)

	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (overrides WFKERNEL_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&workflowsDirFlag, "workflows-dir", "workflows", "Directory the local-file workflow provider resolves ids from")

	startCmd.Flags().StringVar(&startContextFile, "context", "", "Path to a JSON file with the initial context object")
	continueCmd.Flags().StringVar(&continueNotes, "notes", "", "Recap notes to attach to the acknowledged step")
	diagramCmd.Flags().StringVar(&diagramFormat, "format", "mermaid", "Diagram format: mermaid or ascii")
}

var (
	dataDirFlag      string
	workflowsDirFlag string
)
