package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export JSON Schema to stdout",
}

var schemaWorkflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Export the workflow definition JSON Schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateWorkflowDefinitionJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var schemaErrorCmd = &cobra.Command{
	Use:   "error",
	Short: "Export the error envelope JSON Schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateErrorEnvelopeJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaWorkflowCmd)
	schemaCmd.AddCommand(schemaErrorCmd)
}
