// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/tls"
	"github.com/gatehouse/gatehouse/internal/xdg"
)

// NewCertsCmd creates the certs subcommand.
func NewCertsCmd() *cobra.Command {
	var hosts []string
	var outDir string

	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Generate a self-signed TLS certificate for the auth API",
		Long: `Generates a self-signed ECDSA certificate and key suitable for serving
the auth API over HTTPS in development. The certificate covers localhost
and 127.0.0.1 plus any additional --host values.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outDir == "" {
				outDir = xdg.CertsDir()
			}

			cert, err := tls.GenerateServerCert(hosts...)
			if err != nil {
				return err
			}
			if err := cert.Save(outDir); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "certificate: %s\n", filepath.Join(outDir, tls.CertFile))
			fmt.Fprintf(cmd.OutOrStdout(), "key:         %s\n", filepath.Join(outDir, tls.KeyFile))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&hosts, "host", nil, "additional hostnames or IPs to include in the certificate")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default: the XDG certs directory)")

	return cmd
}
