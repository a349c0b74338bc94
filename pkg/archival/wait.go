// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package archival

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

const (
	condPresent = "present"
	condAbsent  = "absent"
)

// WaitForKeyPresent polls head-object until bucket/key is visible. The
// deadline is wall-clock, computed once at entry, and probes run at the
// configured poll interval. Probe errors of any kind keep the poll going:
// a transient fault and a not-yet-visible key are indistinguishable here.
func (c *Client) WaitForKeyPresent(ctx context.Context, bucket, key string, timeout time.Duration) error {
	start := time.Now()
	deadline := start.Add(timeout)

	for {
		out, err := c.headObject(ctx, bucket, key)
		if err == nil {
			c.log.Debug().
				Str("bucket", bucket).
				Str("key", key).
				Str("etag", stripETagQuotes(aws.ToString(out.ETag))).
				Msg("Object is available")
			waitDuration.WithLabelValues(condPresent).Observe(time.Since(start).Seconds())
			return nil
		}
		c.log.Debug().Err(err).Str("bucket", bucket).Str("key", key).Msg("Error response while polling for key")

		if time.Now().After(deadline) {
			waitTimeoutsTotal.WithLabelValues(condPresent).Inc()
			return &WaitTimeoutError{Bucket: bucket, Key: key, Condition: condPresent, Timeout: timeout}
		}

		select {
		case <-time.After(c.cfg.PollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitForKeyAbsent polls head-object until the backend reports bucket/key
// as not found. Probe failures other than not-found keep the poll going;
// a key still reported present past the deadline is a timeout.
func (c *Client) WaitForKeyAbsent(ctx context.Context, bucket, key string, timeout time.Duration) error {
	start := time.Now()
	deadline := start.Add(timeout)

	for {
		_, err := c.headObject(ctx, bucket, key)
		switch {
		case err == nil:
			// Still present.
		case IsNotFound(err):
			waitDuration.WithLabelValues(condAbsent).Observe(time.Since(start).Seconds())
			return nil
		default:
			c.log.Debug().Err(err).Str("bucket", bucket).Str("key", key).Msg("Error response while polling for key absence")
		}

		if time.Now().After(deadline) {
			waitTimeoutsTotal.WithLabelValues(condAbsent).Inc()
			return &WaitTimeoutError{Bucket: bucket, Key: key, Condition: condAbsent, Timeout: timeout}
		}

		select {
		case <-time.After(c.cfg.PollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
