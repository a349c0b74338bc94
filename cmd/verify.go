// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LeeDigitalWorks/tierkit/pkg/archival"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run an end-to-end verification pass against the endpoint",
	Long: `Run an end-to-end verification pass against the storage endpoint.

The pass creates a scratch bucket, uploads segment-shaped objects, checks
listing, topic filtering, copy, move and download behavior, then empties
and deletes the bucket. Use it to qualify a new endpoint or credentials
before pointing a test suite at it.

Example:
  tierkit verify --endpoint http://localhost:9000 --objects 25`,
	Run: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Int("objects", 10, "Number of objects to upload")
	verifyCmd.Flags().Int("payload_size", 4096, "Payload bytes per object")
	verifyCmd.Flags().String("bucket", "", "Scratch bucket name (default tierkit-verify-<random>)")
	verifyCmd.Flags().Bool("keep", false, "Keep the scratch bucket instead of deleting it")
}

func runVerify(cmd *cobra.Command, args []string) {
	count, _ := cmd.Flags().GetInt("objects")
	payloadSize, _ := cmd.Flags().GetInt("payload_size")
	bucket, _ := cmd.Flags().GetString("bucket")
	keep, _ := cmd.Flags().GetBool("keep")

	if count < 2 {
		fmt.Fprintf(os.Stderr, "Error: --objects must be at least 2\n")
		os.Exit(1)
	}

	run := strings.ReplaceAll(uuid.NewString(), "-", "")
	if bucket == "" {
		bucket = "tierkit-verify-" + run[:8]
	}

	client := newStorageClient(cmd)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	// Best-effort teardown once the bucket exists.
	cleanup := func() {
		if keep {
			fmt.Printf("Keeping scratch bucket %s\n", bucket)
			return
		}
		if _, err := client.EmptyBucket(ctx, bucket); err == nil {
			client.DeleteBucket(ctx, bucket)
		}
	}
	fail := func(step string, err error) {
		fmt.Fprintf(os.Stderr, "Error: %s failed: %v\n", step, err)
		cleanup()
		os.Exit(1)
	}

	start := time.Now()
	fmt.Printf("Verifying endpoint with scratch bucket %s\n", bucket)
	fmt.Printf("================================\n")

	// Bucket creation, including the post-create listing probe.
	fmt.Printf("  [1/8] Create bucket\n")
	if err := client.CreateBucket(ctx, bucket); err != nil {
		fail("bucket creation", err)
	}

	// Segment-shaped uploads across two topics.
	fmt.Printf("  [2/8] Upload %d objects (%s each)\n", count, humanize.Bytes(uint64(payloadSize)))
	keys := make([]string, count)
	for i := 0; i < count; i++ {
		topic := "orders"
		if i%2 == 1 {
			topic = "payments"
		}
		keys[i] = fmt.Sprintf("%s/kafka/%s/0_9/%05d-1-v1.log", run[:8], topic, i)
		if err := client.PutObject(ctx, bucket, keys[i], verifyPayload(i, payloadSize)); err != nil {
			fail("upload", err)
		}
	}

	// Metadata probe.
	fmt.Printf("  [3/8] Head object\n")
	meta, err := client.GetObjectMeta(ctx, bucket, keys[0])
	if err != nil {
		fail("head", err)
	}
	if meta.ContentLength != int64(payloadSize) {
		fail("head", fmt.Errorf("reported %d bytes, uploaded %d", meta.ContentLength, payloadSize))
	}

	// Full listing and topic filtering.
	fmt.Printf("  [4/8] List and filter\n")
	listed := 0
	for _, lerr := range client.ListObjects(ctx, bucket) {
		if lerr != nil {
			fail("listing", lerr)
		}
		listed++
	}
	if listed != count {
		fail("listing", fmt.Errorf("listed %d objects, uploaded %d", listed, count))
	}
	orders := 0
	for _, lerr := range client.ListObjects(ctx, bucket, archival.WithTopic("orders")) {
		if lerr != nil {
			fail("topic filtering", lerr)
		}
		orders++
	}
	if expected := (count + 1) / 2; orders != expected {
		fail("topic filtering", fmt.Errorf("filtered %d objects, expected %d", orders, expected))
	}

	// Copy with visibility validation.
	fmt.Printf("  [5/8] Copy with validation\n")
	if err := client.CopyObject(ctx, bucket, keys[0], keys[0]+".copy", archival.WithValidation()); err != nil {
		fail("copy", err)
	}

	// Move with visibility validation.
	fmt.Printf("  [6/8] Move with validation\n")
	if err := client.MoveObject(ctx, bucket, keys[1], keys[1]+".moved", archival.WithValidation()); err != nil {
		fail("move", err)
	}

	// Streaming download round trip.
	fmt.Printf("  [7/8] Download round trip\n")
	tmpDir, err := os.MkdirTemp("", "tierkit-verify-")
	if err != nil {
		fail("download", err)
	}
	defer os.RemoveAll(tmpDir)

	dest := filepath.Join(tmpDir, "segment.log")
	if err := client.WriteObjectToFile(ctx, bucket, keys[0], dest); err != nil {
		fail("download", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		fail("download", err)
	}
	if !bytes.Equal(got, []byte(verifyPayload(0, payloadSize))) {
		fail("download", fmt.Errorf("downloaded body does not match uploaded payload"))
	}

	// Cleanup path.
	fmt.Printf("  [8/8] Empty and delete bucket\n")
	if keep {
		fmt.Printf("Keeping scratch bucket %s\n", bucket)
	} else {
		failed, err := client.EmptyBucket(ctx, bucket)
		if err != nil {
			fail("cleanup", err)
		}
		if len(failed) > 0 {
			fail("cleanup", fmt.Errorf("%d keys could not be deleted", len(failed)))
		}
		if err := client.DeleteBucket(ctx, bucket); err != nil {
			fail("cleanup", err)
		}
	}

	fmt.Printf("\nVerification passed in %s\n", time.Since(start).Round(time.Millisecond))
}

// verifyPayload generates a deterministic payload for object seq, so
// downloads can be checked byte for byte.
func verifyPayload(seq, size int) string {
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte('a' + (i+seq)%26)
	}
	return string(payload)
}
