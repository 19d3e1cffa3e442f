// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Gatehouse CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatehouse",
		Short: "Gatehouse - credential and access-token lifecycle service",
		Long: `Gatehouse manages user credentials and opaque access tokens:
realm-scoped accounts, request-bound token resolution, and session
invalidation on identity-affecting changes.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		if configFile == "" {
			configFile = xdg.DefaultConfigFile()
		}
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCertsCmd())

	return cmd
}
