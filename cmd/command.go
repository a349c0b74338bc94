// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/LeeDigitalWorks/tierkit/pkg/utils"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tierkit",
	Short: "TierKit - archival tier validation toolkit",
	Long: `TierKit exercises S3-compatible archival storage the way test harnesses do.
It provides bucket and object operations hardened against backend throttling
and eventual consistency, plus an end-to-end verification pass for new
endpoints.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&utils.ConfigurationFileDirectory, "config_dir", ".", "Directory for configuration files")
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
