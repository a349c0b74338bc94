// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package archival

import (
	"context"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type listOptions struct {
	topic  string
	prefix string
}

// ListOption modifies a bucket listing.
type ListOption func(*listOptions)

// WithTopic yields only objects whose key the classifier maps to topic.
// The filter runs client-side after each page arrives, so backend listing
// order is preserved.
func WithTopic(topic string) ListOption {
	return func(o *listOptions) { o.topic = topic }
}

// WithPrefix restricts the listing server-side to keys under prefix.
func WithPrefix(prefix string) ListOption {
	return func(o *listOptions) { o.prefix = prefix }
}

// ListObjects returns a lazy iterator over the bucket's objects, paging
// through the backend's continuation-token protocol. Pagination is handled
// internally; every range over the result issues fresh backend calls. When
// a page request fails the iterator enumerates the visible buckets to the
// error log and then yields the failure as its final element.
func (c *Client) ListObjects(ctx context.Context, bucket string, opts ...ListOption) iter.Seq2[ObjectMetadata, error] {
	var lo listOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&lo)
		}
	}

	return func(yield func(ObjectMetadata, error) bool) {
		var token *string
		for {
			page, err := c.listPage(ctx, bucket, lo.prefix, token)
			if err != nil {
				c.dumpBuckets(ctx, bucket)
				yield(ObjectMetadata{}, err)
				return
			}

			for _, item := range page.Contents {
				key := aws.ToString(item.Key)
				if lo.topic != "" {
					topic, ok := c.cfg.Classifier(key)
					if !ok || topic != lo.topic {
						c.log.Debug().Str("key", key).Str("topic", lo.topic).Msg("Skipping key outside topic")
						continue
					}
				}

				meta := ObjectMetadata{
					Bucket:        bucket,
					Key:           key,
					ETag:          stripETagQuotes(aws.ToString(item.ETag)),
					ContentLength: aws.ToInt64(item.Size),
				}
				if !yield(meta, nil) {
					return
				}
			}

			if !aws.ToBool(page.IsTruncated) {
				return
			}
			token = page.NextContinuationToken
		}
	}
}

// listPage fetches one page of at most listPageSize keys under the throttle
// retry policy.
func (c *Client) listPage(ctx context.Context, bucket, prefix string, token *string) (*s3.ListObjectsV2Output, error) {
	return retryOnSlowDown(ctx, c, opListPage, func(ctx context.Context) (*s3.ListObjectsV2Output, error) {
		input := &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			MaxKeys: aws.Int32(listPageSize),
		}
		if prefix != "" {
			input.Prefix = aws.String(prefix)
		}
		if token != nil {
			input.ContinuationToken = token
		}

		out, err := c.api.ListObjectsV2(ctx, input)
		if err != nil {
			c.log.Debug().Err(err).Str("bucket", bucket).Msg("Error response listing bucket")
		}
		return out, err
	})
}

// dumpBuckets logs every bucket visible to the client. It runs after a
// bucket listing fails, to tell "bucket missing" apart from "endpoint
// broken" in test logs; its own failure is ignored.
func (c *Client) dumpBuckets(ctx context.Context, failedBucket string) {
	c.log.Error().Str("bucket", failedBucket).Msg("Listing bucket failed, enumerating visible buckets")

	buckets, err := c.ListBuckets(ctx)
	if err != nil {
		return
	}
	for _, b := range buckets {
		c.log.Error().Str("bucket", b.Name).Time("created_at", b.CreatedAt).Msg("Visible bucket")
	}
}
