// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/LeeDigitalWorks/tierkit/pkg/archival"
	"github.com/LeeDigitalWorks/tierkit/pkg/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// StorageOpts holds the endpoint configuration shared by every command that
// talks to a storage backend.
type StorageOpts struct {
	// Endpoint and credentials
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	PathStyle bool
	Insecure  bool

	// Throttle retry policy
	RetryAttempts     int
	RetryInitialDelay time.Duration
	RetryMultiplier   float64

	// Visibility polling and request pacing
	PollInterval time.Duration
	RateLimit    int
}

func init() {
	f := rootCmd.PersistentFlags()

	// Endpoint and credentials
	f.String("endpoint", "", "Storage endpoint URL (e.g., 'http://localhost:9000'). Empty uses the SDK default.")
	f.String("region", "us-east-1", "Storage region")
	f.String("access_key", "", "Access key ID (or set AWS_ACCESS_KEY_ID)")
	f.String("secret_key", "", "Secret access key (or set AWS_SECRET_ACCESS_KEY)")
	f.Bool("path_style", true, "Use path-style addressing. Most local S3 stand-ins need this.")
	f.Bool("insecure", false, "Connect without TLS: scheme-less endpoints use http and certificates go unverified")

	// Throttle retry policy
	f.Int("retry_attempts", 4, "Total attempts per storage call, including the final unguarded one")
	f.Duration("retry_initial_delay", time.Second, "Backoff before the second attempt")
	f.Float64("retry_multiplier", 2.0, "Backoff growth factor per throttled attempt")

	// Visibility polling and request pacing
	f.Duration("poll_interval", archival.DefaultPollInterval, "Delay between visibility probes")
	f.Int("rate_limit", 0, "Requests per second cap (0 = unlimited)")

	viper.BindPFlags(f)
}

func loadStorageOpts(cmd *cobra.Command) StorageOpts {
	f := NewFlagLoader(cmd)

	return StorageOpts{
		Endpoint:          f.String("endpoint"),
		Region:            f.String("region"),
		AccessKey:         f.String("access_key"),
		SecretKey:         f.String("secret_key"),
		PathStyle:         f.Bool("path_style"),
		Insecure:          f.Bool("insecure"),
		RetryAttempts:     f.Int("retry_attempts"),
		RetryInitialDelay: f.Duration("retry_initial_delay"),
		RetryMultiplier:   f.Float64("retry_multiplier"),
		PollInterval:      f.Duration("poll_interval"),
		RateLimit:         f.Int("rate_limit"),
	}
}

// newStorageClient builds the archival client subcommands share. It exits
// the process when construction fails.
func newStorageClient(cmd *cobra.Command) *archival.Client {
	utils.LoadConfiguration("tierkit", false)
	opts := loadStorageOpts(cmd)

	client, err := archival.New(context.Background(), archival.Config{
		Endpoint:        opts.Endpoint,
		Region:          opts.Region,
		AccessKeyID:     opts.AccessKey,
		SecretAccessKey: opts.SecretKey,
		DisableTLS:      opts.Insecure,
		UsePathStyle:    opts.PathStyle,
		Retry: archival.RetryPolicy{
			MaxAttempts:  opts.RetryAttempts,
			InitialDelay: opts.RetryInitialDelay,
			Multiplier:   opts.RetryMultiplier,
		},
		PollInterval: opts.PollInterval,
		RateLimit:    opts.RateLimit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to construct storage client: %v\n", err)
		os.Exit(1)
	}
	return client
}
