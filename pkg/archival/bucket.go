// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package archival

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// CreateBucket creates bucket name. It is idempotent: a bucket this client
// already owns counts as success. After creation one listing probe runs
// against the fresh bucket so that visibility races surface here rather
// than midway through a test; a failed probe is returned as an error.
func (c *Client) CreateBucket(ctx context.Context, name string) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(name),
	}
	if c.cfg.Region != defaultRegion {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(c.cfg.Region),
		}
	}

	c.log.Info().Str("bucket", name).Str("region", c.cfg.Region).Msg("Creating bucket")

	if err := c.pace(ctx); err != nil {
		return err
	}
	if _, err := c.api.CreateBucket(ctx, input); err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if !errors.As(err, &owned) {
			operationsTotal.WithLabelValues(opCreateBucket, statusError).Inc()
			return fmt.Errorf("create bucket %s: %w", name, err)
		}
		c.log.Debug().Str("bucket", name).Msg("Bucket already owned by us")
	}

	if err := c.pace(ctx); err != nil {
		return err
	}
	out, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(name),
	})
	if err != nil {
		operationsTotal.WithLabelValues(opCreateBucket, statusError).Inc()
		c.log.Error().Err(err).Str("bucket", name).Msg("Listing failed immediately after bucket creation")
		return fmt.Errorf("list bucket %s after creation: %w", name, err)
	}
	c.log.Debug().
		Str("bucket", name).
		Int32("key_count", aws.ToInt32(out.KeyCount)).
		Msg("Bucket listable after creation")

	operationsTotal.WithLabelValues(opCreateBucket, statusOK).Inc()
	return nil
}

// DeleteBucket removes bucket name. Backends reject deletion of non-empty
// buckets; on failure the remaining contents are dumped to the log before
// the original error is returned.
func (c *Client) DeleteBucket(ctx context.Context, name string) error {
	c.log.Info().Str("bucket", name).Msg("Deleting bucket")

	if err := c.pace(ctx); err != nil {
		return err
	}
	_, err := c.api.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(name),
	})
	if err == nil {
		operationsTotal.WithLabelValues(opDeleteBucket, statusOK).Inc()
		return nil
	}

	operationsTotal.WithLabelValues(opDeleteBucket, statusError).Inc()
	c.log.Warn().Err(err).Str("bucket", name).Msg("Bucket deletion failed, dumping remaining contents")
	for obj, lerr := range c.ListObjects(ctx, name) {
		if lerr != nil {
			break
		}
		c.log.Warn().Str("bucket", name).Str("key", obj.Key).Msg("Remaining object")
	}

	return fmt.Errorf("delete bucket %s: %w", name, err)
}

// EmptyBucket deletes every object in bucket name and returns the keys it
// could not delete. A bucket that cannot be listed is treated as already
// gone. Deletion runs in batches; a failed batch contributes all of its
// keys to the result and later batches still run.
func (c *Client) EmptyBucket(ctx context.Context, name string) ([]string, error) {
	c.log.Debug().Str("bucket", name).Msg("Running bucket cleanup")

	var keys []string
	for obj, err := range c.ListObjects(ctx, name) {
		if err != nil {
			c.log.Debug().Err(err).Str("bucket", name).Msg("Cleanup listing failed, treating bucket as gone")
			keys = nil
			break
		}
		keys = append(keys, obj.Key)
	}

	var failed []string
	for len(keys) > 0 {
		batch := keys
		if len(batch) > deleteBatchSize {
			batch = keys[:deleteBatchSize]
		}
		keys = keys[len(batch):]

		ids := make([]s3types.ObjectIdentifier, 0, len(batch))
		for _, k := range batch {
			ids = append(ids, s3types.ObjectIdentifier{Key: aws.String(k)})
		}

		if err := c.pace(ctx); err != nil {
			return failed, err
		}
		out, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(name),
			Delete: &s3types.Delete{Objects: ids},
		})
		if err != nil {
			c.log.Debug().
				Err(err).
				Str("bucket", name).
				Str("first_key", batch[0]).
				Str("last_key", batch[len(batch)-1]).
				Msg("Batch delete failed")
			failed = append(failed, batch...)
			continue
		}

		// The call can succeed while individual keys are rejected.
		for _, derr := range out.Errors {
			c.log.Debug().
				Str("bucket", name).
				Str("key", aws.ToString(derr.Key)).
				Str("code", aws.ToString(derr.Code)).
				Msg("Key rejected from batch delete")
			failed = append(failed, aws.ToString(derr.Key))
		}
		c.log.Debug().
			Str("bucket", name).
			Int("deleted", len(out.Deleted)).
			Msg("Batch delete reply")
	}

	operationsTotal.WithLabelValues(opEmptyBucket, statusOK).Inc()
	return failed, nil
}

// ListBuckets returns every bucket visible to the client's credentials.
func (c *Client) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}
	out, err := c.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		operationsTotal.WithLabelValues(opListBuckets, statusError).Inc()
		c.log.Error().Err(err).Msg("Listing buckets failed")
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	buckets := make([]BucketInfo, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, BucketInfo{
			Name:      aws.ToString(b.Name),
			CreatedAt: aws.ToTime(b.CreationDate),
		})
	}

	operationsTotal.WithLabelValues(opListBuckets, statusOK).Inc()
	return buckets, nil
}
