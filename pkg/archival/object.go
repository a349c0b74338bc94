// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package archival

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// validation carries the optional post-mutation visibility check settings.
type validation struct {
	enabled bool
	timeout time.Duration
}

// ValidateOption opts a mutating call into polling the backend until its
// read view reflects the mutation.
type ValidateOption func(*validation)

// WithValidation enables the visibility poll with the operation's default
// timeout.
func WithValidation() ValidateOption {
	return func(v *validation) { v.enabled = true }
}

// WithValidationTimeout enables the visibility poll with an explicit
// per-wait budget.
func WithValidationTimeout(timeout time.Duration) ValidateOption {
	return func(v *validation) {
		v.enabled = true
		v.timeout = timeout
	}
}

func applyValidateOptions(def time.Duration, opts []ValidateOption) validation {
	v := validation{timeout: def}
	for _, opt := range opts {
		if opt != nil {
			opt(&v)
		}
	}
	return v
}

// PutOption modifies the upload request.
type PutOption func(*s3.PutObjectInput)

// WithContentType sets the stored content type.
func WithContentType(contentType string) PutOption {
	return func(i *s3.PutObjectInput) {
		i.ContentType = aws.String(contentType)
	}
}

func (c *Client) getObject(ctx context.Context, bucket, key string) (*s3.GetObjectOutput, error) {
	return retryOnSlowDown(ctx, c, opGetObject, func(ctx context.Context) (*s3.GetObjectOutput, error) {
		out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			c.log.Debug().Err(err).Str("bucket", bucket).Str("key", key).Msg("Error response getting object")
		}
		return out, err
	})
}

func (c *Client) headObject(ctx context.Context, bucket, key string) (*s3.HeadObjectOutput, error) {
	return retryOnSlowDown(ctx, c, opHeadObject, func(ctx context.Context) (*s3.HeadObjectOutput, error) {
		out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			c.log.Debug().Err(err).Str("bucket", bucket).Str("key", key).Msg("Error response heading object")
		}
		return out, err
	})
}

func (c *Client) deleteObject(ctx context.Context, bucket, key string) (*s3.DeleteObjectOutput, error) {
	return retryOnSlowDown(ctx, c, opDeleteObject, func(ctx context.Context) (*s3.DeleteObjectOutput, error) {
		out, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			c.log.Debug().Err(err).Str("bucket", bucket).Str("key", key).Msg("Error response deleting object")
		}
		return out, err
	})
}

func (c *Client) copyObject(ctx context.Context, bucket, src, dst string) (*s3.CopyObjectOutput, error) {
	return retryOnSlowDown(ctx, c, opCopyObject, func(ctx context.Context) (*s3.CopyObjectOutput, error) {
		out, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(bucket),
			Key:        aws.String(dst),
			CopySource: aws.String(bucket + "/" + src),
		})
		if err != nil {
			c.log.Debug().Err(err).Str("bucket", bucket).Str("src", src).Str("dst", dst).Msg("Error response copying object")
		}
		return out, err
	})
}

// GetObjectData downloads the full object body.
func (c *Client) GetObjectData(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.getObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// GetObjectMeta returns the object's metadata without downloading its body.
func (c *Client) GetObjectMeta(ctx context.Context, bucket, key string) (ObjectMetadata, error) {
	out, err := c.headObject(ctx, bucket, key)
	if err != nil {
		return ObjectMetadata{}, err
	}
	return ObjectMetadata{
		Bucket:        bucket,
		Key:           key,
		ETag:          stripETagQuotes(aws.ToString(out.ETag)),
		ContentLength: aws.ToInt64(out.ContentLength),
	}, nil
}

// WriteObjectToFile streams the object body into destPath through a fixed
// 4 KiB buffer, keeping memory use flat for large objects.
func (c *Client) WriteObjectToFile(ctx context.Context, bucket, key, destPath string) error {
	out, err := c.getObject(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer out.Body.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}

	buf := make([]byte, downloadChunkSize)
	for {
		n, rerr := out.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				return fmt.Errorf("write %s: %w", destPath, werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			return fmt.Errorf("download %s/%s: %w", bucket, key, rerr)
		}
	}
	return f.Close()
}

// PutObject uploads the UTF-8 bytes of content under bucket/key.
func (c *Client) PutObject(ctx context.Context, bucket, key, content string, opts ...PutOption) error {
	_, err := retryOnSlowDown(ctx, c, opPutObject, func(ctx context.Context) (*s3.PutObjectOutput, error) {
		// The body reader is rebuilt per attempt so retries replay the
		// full payload.
		input := &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   strings.NewReader(content),
		}
		for _, opt := range opts {
			if opt != nil {
				opt(input)
			}
		}

		out, err := c.api.PutObject(ctx, input)
		if err != nil {
			c.log.Debug().Err(err).Str("bucket", bucket).Str("key", key).Msg("Error response putting object")
		}
		return out, err
	})
	return err
}

// DeleteObject removes one object. With validation it polls until the key
// disappears from the backend's read view, bounded by
// DefaultDeleteValidationTimeout unless overridden.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string, opts ...ValidateOption) error {
	if _, err := c.deleteObject(ctx, bucket, key); err != nil {
		return err
	}

	v := applyValidateOptions(DefaultDeleteValidationTimeout, opts)
	if v.enabled {
		return c.WaitForKeyAbsent(ctx, bucket, key, v.timeout)
	}
	return nil
}

// CopyObject copies src onto dst within one bucket. With validation it
// polls until dst is visible, bounded by DefaultCopyValidationTimeout
// unless overridden.
func (c *Client) CopyObject(ctx context.Context, bucket, src, dst string, opts ...ValidateOption) error {
	if _, err := c.copyObject(ctx, bucket, src, dst); err != nil {
		return err
	}

	v := applyValidateOptions(DefaultCopyValidationTimeout, opts)
	if v.enabled {
		return c.WaitForKeyPresent(ctx, bucket, dst, v.timeout)
	}
	return nil
}

// MoveObject copies src onto dst and then deletes src. The two steps are
// retried independently, and a failure between them leaves both keys in
// place; the backend offers no native move. With validation it waits for
// dst to appear and then for src to disappear, each wait getting the full
// timeout budget.
func (c *Client) MoveObject(ctx context.Context, bucket, src, dst string, opts ...ValidateOption) error {
	if _, err := c.copyObject(ctx, bucket, src, dst); err != nil {
		return err
	}
	if _, err := c.deleteObject(ctx, bucket, src); err != nil {
		return err
	}

	v := applyValidateOptions(DefaultCopyValidationTimeout, opts)
	if v.enabled {
		if err := c.WaitForKeyPresent(ctx, bucket, dst, v.timeout); err != nil {
			return err
		}
		return c.WaitForKeyAbsent(ctx, bucket, src, v.timeout)
	}
	return nil
}

// stripETagQuotes removes the double quotes backends wrap around ETag
// values.
func stripETagQuotes(etag string) string {
	return strings.Trim(etag, `"`)
}
