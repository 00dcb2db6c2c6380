// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/config"
)

// NewGenSchemaCmd creates the gen-schema subcommand.
func NewGenSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-schema",
		Short: "Print the config file JSON Schema",
		Long: `Print the JSON Schema the config file is validated against.
Point your editor at it for completion and inline validation.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	}
}
