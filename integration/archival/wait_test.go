//go:build integration

// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package archival

import (
	"context"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/tierkit/integration/testutil"
	"github.com/LeeDigitalWorks/tierkit/pkg/archival"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForKey(t *testing.T) {
	t.Parallel()

	client := newClient(t)

	t.Run("present returns once the key appears", func(t *testing.T) {
		bucket := uniqueBucket("test-wait-present")
		key := uniqueKey("late-object")
		defer cleanupBucket(t, client, bucket)

		ctx, cancel := testutil.WithTimeout(context.Background())
		defer cancel()

		require.NoError(t, client.CreateBucket(ctx, bucket))

		// Write the key while the wait is polling for it
		done := make(chan error, 1)
		go func() {
			time.Sleep(1 * time.Second)
			done <- client.PutObject(ctx, bucket, key, "arrived")
		}()

		require.NoError(t, client.WaitForKeyPresent(ctx, bucket, key, 15*time.Second))
		require.NoError(t, <-done)
	})

	t.Run("present times out on a missing key", func(t *testing.T) {
		bucket := uniqueBucket("test-wait-timeout")
		defer cleanupBucket(t, client, bucket)

		ctx, cancel := testutil.WithTimeout(context.Background())
		defer cancel()

		require.NoError(t, client.CreateBucket(ctx, bucket))

		err := client.WaitForKeyPresent(ctx, bucket, "never-written", 2*time.Second)
		require.Error(t, err)
		assert.True(t, archival.IsWaitTimeout(err), "expected a wait timeout, got %v", err)
	})

	t.Run("absent returns once the key is gone", func(t *testing.T) {
		bucket := uniqueBucket("test-wait-absent")
		key := uniqueKey("doomed-object")
		defer cleanupBucket(t, client, bucket)

		ctx, cancel := testutil.WithTimeout(context.Background())
		defer cancel()

		require.NoError(t, client.CreateBucket(ctx, bucket))
		require.NoError(t, client.PutObject(ctx, bucket, key, "soon gone"))

		done := make(chan error, 1)
		go func() {
			time.Sleep(1 * time.Second)
			done <- client.DeleteObject(ctx, bucket, key)
		}()

		require.NoError(t, client.WaitForKeyAbsent(ctx, bucket, key, 15*time.Second))
		require.NoError(t, <-done)
	})
}
