// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the briefd command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/briefdesk/briefdesk/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "briefd",
	DisableAutoGenTag: true,
	Short:             "briefd is the BriefDesk backend service",
	Long: `briefd is the backend service for BriefDesk, a multi-tenant platform for
legal-services firms. It authenticates inbound requests, resolves them to a
provisioned identity, and serves the API with role-scoped database access so
Postgres row-level security decides what each caller can see.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the briefd CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Fatalf("Failed to bind debug flag: %v", err)
	}

	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		// Re-initialize so the debug flag takes effect.
		logger.Initialize()
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
