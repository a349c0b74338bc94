// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LeeDigitalWorks/tierkit/pkg/archival"
	"github.com/LeeDigitalWorks/tierkit/pkg/utils"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var objectCmd = &cobra.Command{
	Use:   "object",
	Short: "Object operations",
	Long: `Object operations against the archival storage endpoint.

Mutating operations accept --validate to poll the backend until its read
view reflects the change, which catches eventual-consistency surprises.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var objectPutCmd = &cobra.Command{
	Use:   "put <bucket> <key>",
	Short: "Upload an object",
	Long: `Upload an object from a file or an inline string.

Example:
  tierkit object put panda-archival logs/seg-0001 --file ./seg-0001.log`,
	Args: cobra.ExactArgs(2),
	Run:  runObjectPut,
}

var objectCatCmd = &cobra.Command{
	Use:   "cat <bucket> <key>",
	Short: "Print an object's body to stdout",
	Args:  cobra.ExactArgs(2),
	Run:   runObjectCat,
}

var objectHeadCmd = &cobra.Command{
	Use:   "head <bucket> <key>",
	Short: "Print an object's metadata",
	Args:  cobra.ExactArgs(2),
	Run:   runObjectHead,
}

var objectRmCmd = &cobra.Command{
	Use:   "rm <bucket> <key>",
	Short: "Delete an object",
	Args:  cobra.ExactArgs(2),
	Run:   runObjectRm,
}

var objectCpCmd = &cobra.Command{
	Use:   "cp <bucket> <src-key> <dst-key>",
	Short: "Copy an object within a bucket",
	Args:  cobra.ExactArgs(3),
	Run:   runObjectCp,
}

var objectMvCmd = &cobra.Command{
	Use:   "mv <bucket> <src-key> <dst-key>",
	Short: "Move an object within a bucket",
	Long: `Move an object within a bucket by copying it and deleting the source.
The backend offers no native move, so a failure between the two steps
leaves both keys in place.`,
	Args: cobra.ExactArgs(3),
	Run:  runObjectMv,
}

var objectDownloadCmd = &cobra.Command{
	Use:   "download <bucket> <key> <dest-file>",
	Short: "Download an object to a local file",
	Long: `Download an object, streaming the body to a local file in small chunks
so arbitrarily large objects use flat memory.

Example:
  tierkit object download panda-archival logs/seg-0001 /tmp/seg-0001.log`,
	Args: cobra.ExactArgs(3),
	Run:  runObjectDownload,
}

var objectLsCmd = &cobra.Command{
	Use:   "ls <bucket>",
	Short: "List objects in a bucket",
	Long: `List objects in a bucket, paging through the full listing.

--prefix filters server-side. --topic filters client-side using the
archival key layout, keeping only segments owned by the given topic.`,
	Args: cobra.ExactArgs(1),
	Run:  runObjectLs,
}

func init() {
	rootCmd.AddCommand(objectCmd)
	objectCmd.AddCommand(objectPutCmd)
	objectCmd.AddCommand(objectCatCmd)
	objectCmd.AddCommand(objectHeadCmd)
	objectCmd.AddCommand(objectRmCmd)
	objectCmd.AddCommand(objectCpCmd)
	objectCmd.AddCommand(objectMvCmd)
	objectCmd.AddCommand(objectDownloadCmd)
	objectCmd.AddCommand(objectLsCmd)

	objectPutCmd.Flags().StringP("file", "f", "", "File to upload")
	objectPutCmd.Flags().String("data", "", "Inline string to upload")
	objectPutCmd.Flags().String("content_type", "", "Content type to store")
	objectPutCmd.MarkFlagsMutuallyExclusive("file", "data")

	objectRmCmd.Flags().Bool("validate", false, "Poll until the key disappears from the read view")
	objectRmCmd.Flags().Duration("validate_timeout", archival.DefaultDeleteValidationTimeout, "Visibility poll budget")

	objectCpCmd.Flags().Bool("validate", false, "Poll until the destination is visible")
	objectCpCmd.Flags().Duration("validate_timeout", archival.DefaultCopyValidationTimeout, "Visibility poll budget")

	objectMvCmd.Flags().Bool("validate", false, "Poll until the destination appears and the source disappears")
	objectMvCmd.Flags().Duration("validate_timeout", archival.DefaultCopyValidationTimeout, "Visibility poll budget per wait")

	objectLsCmd.Flags().String("prefix", "", "Server-side key prefix filter")
	objectLsCmd.Flags().String("topic", "", "Client-side topic filter")
}

// validateOptions translates the shared --validate/--validate_timeout flags.
func validateOptions(cmd *cobra.Command) []archival.ValidateOption {
	validate, _ := cmd.Flags().GetBool("validate")
	if !validate {
		return nil
	}

	if cmd.Flags().Changed("validate_timeout") {
		timeout, _ := cmd.Flags().GetDuration("validate_timeout")
		return []archival.ValidateOption{archival.WithValidationTimeout(timeout)}
	}
	return []archival.ValidateOption{archival.WithValidation()}
}

func runObjectPut(cmd *cobra.Command, args []string) {
	bucket, key := args[0], args[1]
	file, _ := cmd.Flags().GetString("file")
	data, _ := cmd.Flags().GetString("data")
	contentType, _ := cmd.Flags().GetString("content_type")

	if file == "" && data == "" {
		fmt.Fprintf(os.Stderr, "Error: One of --file or --data is required\n")
		os.Exit(1)
	}
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to read %s: %v\n", file, err)
			os.Exit(1)
		}
		data = string(raw)
	}

	var opts []archival.PutOption
	if contentType != "" {
		opts = append(opts, archival.WithContentType(contentType))
	}

	client := newStorageClient(cmd)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := client.PutObject(ctx, bucket, key, data, opts...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to upload %s/%s: %v\n", bucket, key, err)
		os.Exit(1)
	}
	fmt.Printf("Uploaded %s/%s (%s)\n", bucket, key, humanize.Bytes(uint64(len(data))))
}

func runObjectCat(cmd *cobra.Command, args []string) {
	bucket, key := args[0], args[1]
	client := newStorageClient(cmd)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	data, err := client.GetObjectData(ctx, bucket, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to get %s/%s: %v\n", bucket, key, err)
		os.Exit(1)
	}
	os.Stdout.Write(data)
}

func runObjectHead(cmd *cobra.Command, args []string) {
	bucket, key := args[0], args[1]
	client := newStorageClient(cmd)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	meta, err := client.GetObjectMeta(ctx, bucket, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to head %s/%s: %v\n", bucket, key, err)
		os.Exit(1)
	}

	fmt.Printf("Bucket: %s\n", meta.Bucket)
	fmt.Printf("Key:    %s\n", meta.Key)
	fmt.Printf("ETag:   %s\n", meta.ETag)
	fmt.Printf("Size:   %s (%d bytes)\n", humanize.Bytes(uint64(meta.ContentLength)), meta.ContentLength)
}

func runObjectRm(cmd *cobra.Command, args []string) {
	bucket, key := args[0], args[1]
	client := newStorageClient(cmd)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := client.DeleteObject(ctx, bucket, key, validateOptions(cmd)...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to delete %s/%s: %v\n", bucket, key, err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %s/%s\n", bucket, key)
}

func runObjectCp(cmd *cobra.Command, args []string) {
	bucket, src, dst := args[0], args[1], args[2]
	client := newStorageClient(cmd)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := client.CopyObject(ctx, bucket, src, dst, validateOptions(cmd)...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to copy %s/%s to %s: %v\n", bucket, src, dst, err)
		os.Exit(1)
	}
	fmt.Printf("Copied %s/%s to %s/%s\n", bucket, src, bucket, dst)
}

func runObjectMv(cmd *cobra.Command, args []string) {
	bucket, src, dst := args[0], args[1], args[2]
	client := newStorageClient(cmd)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := client.MoveObject(ctx, bucket, src, dst, validateOptions(cmd)...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to move %s/%s to %s: %v\n", bucket, src, dst, err)
		os.Exit(1)
	}
	fmt.Printf("Moved %s/%s to %s/%s\n", bucket, src, bucket, dst)
}

func runObjectDownload(cmd *cobra.Command, args []string) {
	bucket, key, dest := args[0], args[1], args[2]

	// Fail before the transfer when the destination is not writable.
	if err := utils.TestWritableFile(filepath.Dir(dest)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Destination directory is not writable: %v\n", err)
		os.Exit(1)
	}

	client := newStorageClient(cmd)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := client.WriteObjectToFile(ctx, bucket, key, dest); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to download %s/%s: %v\n", bucket, key, err)
		os.Exit(1)
	}

	info, err := os.Stat(dest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Downloaded file missing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Downloaded %s/%s to %s (%s)\n", bucket, key, dest, humanize.Bytes(uint64(info.Size())))
}

func runObjectLs(cmd *cobra.Command, args []string) {
	bucket := args[0]
	prefix, _ := cmd.Flags().GetString("prefix")
	topic, _ := cmd.Flags().GetString("topic")

	var opts []archival.ListOption
	if prefix != "" {
		opts = append(opts, archival.WithPrefix(prefix))
	}
	if topic != "" {
		opts = append(opts, archival.WithTopic(topic))
	}

	client := newStorageClient(cmd)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var (
		count int
		total uint64
	)
	for obj, err := range client.ListObjects(ctx, bucket, opts...) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to list %s: %v\n", bucket, err)
			os.Exit(1)
		}
		fmt.Printf("%10s  %s\n", humanize.Bytes(uint64(obj.ContentLength)), obj.Key)
		count++
		total += uint64(obj.ContentLength)
	}

	if count == 0 {
		fmt.Println("No objects found.")
		return
	}
	fmt.Printf("\n%d objects, %s total\n", count, humanize.Bytes(total))
}
