// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Bucket operations",
	Long: `Bucket operations against the archival storage endpoint.

Creation verifies the fresh bucket is listable before reporting success,
and deletion dumps any remaining contents when the backend refuses.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var bucketCreateCmd = &cobra.Command{
	Use:   "create <bucket>",
	Short: "Create a bucket",
	Long: `Create a bucket. Creating a bucket you already own succeeds.

Example:
  tierkit bucket create panda-archival --endpoint http://localhost:9000`,
	Args: cobra.ExactArgs(1),
	Run:  runBucketCreate,
}

var bucketRmCmd = &cobra.Command{
	Use:   "rm <bucket>",
	Short: "Delete a bucket",
	Long: `Delete a bucket. The backend rejects deletion of non-empty buckets;
use --empty to remove all objects first.

Example:
  tierkit bucket rm panda-archival --empty`,
	Args: cobra.ExactArgs(1),
	Run:  runBucketRm,
}

var bucketEmptyCmd = &cobra.Command{
	Use:   "empty <bucket>",
	Short: "Delete every object in a bucket",
	Long: `Delete every object in a bucket in batches, keeping the bucket itself.
Keys the backend refused to delete are listed on stderr.`,
	Args: cobra.ExactArgs(1),
	Run:  runBucketEmpty,
}

var bucketLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List buckets",
	Run:   runBucketLs,
}

func init() {
	rootCmd.AddCommand(bucketCmd)
	bucketCmd.AddCommand(bucketCreateCmd)
	bucketCmd.AddCommand(bucketRmCmd)
	bucketCmd.AddCommand(bucketEmptyCmd)
	bucketCmd.AddCommand(bucketLsCmd)

	bucketRmCmd.Flags().Bool("empty", false, "Remove all objects before deleting the bucket")
}

func runBucketCreate(cmd *cobra.Command, args []string) {
	name := args[0]
	client := newStorageClient(cmd)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := client.CreateBucket(ctx, name); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create bucket %s: %v\n", name, err)
		os.Exit(1)
	}
	fmt.Printf("Bucket %s created.\n", name)
}

func runBucketRm(cmd *cobra.Command, args []string) {
	name := args[0]
	emptyFirst, _ := cmd.Flags().GetBool("empty")
	client := newStorageClient(cmd)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if emptyFirst {
		failed, err := client.EmptyBucket(ctx, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to empty bucket %s: %v\n", name, err)
			os.Exit(1)
		}
		reportFailedKeys(name, failed)
	}

	if err := client.DeleteBucket(ctx, name); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to delete bucket %s: %v\n", name, err)
		os.Exit(1)
	}
	fmt.Printf("Bucket %s deleted.\n", name)
}

func runBucketEmpty(cmd *cobra.Command, args []string) {
	name := args[0]
	client := newStorageClient(cmd)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	failed, err := client.EmptyBucket(ctx, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to empty bucket %s: %v\n", name, err)
		os.Exit(1)
	}
	reportFailedKeys(name, failed)
	fmt.Printf("Bucket %s emptied.\n", name)
}

func runBucketLs(cmd *cobra.Command, args []string) {
	client := newStorageClient(cmd)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	buckets, err := client.ListBuckets(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list buckets: %v\n", err)
		os.Exit(1)
	}

	if len(buckets) == 0 {
		fmt.Println("No buckets found.")
		return
	}
	for _, b := range buckets {
		fmt.Printf("%s  %s\n", b.CreatedAt.Format("2006-01-02 15:04:05"), b.Name)
	}
}

// reportFailedKeys lists keys a cleanup could not delete and exits non-zero.
func reportFailedKeys(bucket string, failed []string) {
	if len(failed) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %d keys in %s could not be deleted:\n", len(failed), bucket)
	for _, key := range failed {
		fmt.Fprintf(os.Stderr, "  %s\n", key)
	}
	os.Exit(1)
}
