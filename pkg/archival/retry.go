// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package archival

import (
	"context"
	"time"
)

// Operation names used in logs and metrics.
const (
	opCreateBucket = "create_bucket"
	opDeleteBucket = "delete_bucket"
	opEmptyBucket  = "empty_bucket"
	opListBuckets  = "list_buckets"
	opGetObject    = "get_object"
	opHeadObject   = "head_object"
	opPutObject    = "put_object"
	opDeleteObject = "delete_object"
	opCopyObject   = "copy_object"
	opListPage     = "list_objects_page"
)

// retryOnSlowDown runs one backend call under the client's retry policy.
// Every attempt but the last is guarded: a throttling rejection sleeps the
// current delay and grows it by the policy multiplier, while any other
// error returns immediately. The final attempt runs unguarded so its error,
// throttled or not, reaches the caller. A MaxAttempts of one means a single
// unguarded call.
//
// The wrapper covers exactly one backend call; composite operations retry
// each of their steps independently.
func retryOnSlowDown[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	policy := c.cfg.Retry
	delay := policy.InitialDelay

	for attempt := 1; attempt < policy.MaxAttempts; attempt++ {
		if err := c.pace(ctx); err != nil {
			return zero, err
		}

		out, err := fn(ctx)
		if err == nil {
			operationsTotal.WithLabelValues(op, statusOK).Inc()
			return out, nil
		}
		if !isSlowDown(err) {
			operationsTotal.WithLabelValues(op, statusError).Inc()
			return zero, err
		}

		throttleRetriesTotal.WithLabelValues(op).Inc()
		c.log.Debug().
			Str("op", op).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("Backend asked to slow down, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
		delay = time.Duration(float64(delay) * policy.Multiplier)
	}

	if err := c.pace(ctx); err != nil {
		return zero, err
	}

	out, err := fn(ctx)
	if err != nil {
		operationsTotal.WithLabelValues(op, statusError).Inc()
		if isSlowDown(err) {
			return zero, &ThrottledError{Op: op, Err: err}
		}
		return zero, err
	}
	operationsTotal.WithLabelValues(op, statusOK).Inc()
	return out, nil
}
