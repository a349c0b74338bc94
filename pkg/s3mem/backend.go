// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

// Package s3mem implements an in-memory S3-compatible backend speaking the
// AWS SDK's request, response and error types. It backs unit tests for
// code written against archival.ObjectStorageAPI without a network or a
// local S3 stand-in.
package s3mem

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LeeDigitalWorks/tierkit/pkg/archival"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// maxBatchDelete is the protocol cap on keys per DeleteObjects request.
const maxBatchDelete = 1000

// defaultPageSize is the protocol cap on keys per ListObjectsV2 page.
const defaultPageSize = 1000

type object struct {
	data        []byte
	etag        string // hex md5, unquoted
	contentType string
	modified    time.Time
}

type bucket struct {
	created  time.Time
	location string
	objects  map[string]*object
}

// Backend is an in-memory bucket/object store. The zero value is not
// usable; create one with New. Safe for concurrent use.
type Backend struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

var _ archival.ObjectStorageAPI = (*Backend)(nil)

// New creates an empty backend.
func New() *Backend {
	return &Backend{
		buckets: make(map[string]*bucket),
	}
}

func (b *Backend) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	name := aws.ToString(params.Bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.buckets[name]; ok {
		return nil, &s3types.BucketAlreadyOwnedByYou{}
	}

	location := ""
	if params.CreateBucketConfiguration != nil {
		location = string(params.CreateBucketConfiguration.LocationConstraint)
	}
	b.buckets[name] = &bucket{
		created:  time.Now(),
		location: location,
		objects:  make(map[string]*object),
	}

	return &s3.CreateBucketOutput{}, nil
}

func (b *Backend) DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	name := aws.ToString(params.Bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	bkt, ok := b.buckets[name]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}
	if len(bkt.objects) > 0 {
		return nil, &smithy.GenericAPIError{
			Code:    "BucketNotEmpty",
			Message: "the bucket you tried to delete is not empty",
		}
	}

	delete(b.buckets, name)
	return &s3.DeleteBucketOutput{}, nil
}

func (b *Backend) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.buckets))
	for name := range b.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &s3.ListBucketsOutput{}
	for _, name := range names {
		out.Buckets = append(out.Buckets, s3types.Bucket{
			Name:         aws.String(name),
			CreationDate: aws.Time(b.buckets[name].created),
		})
	}
	return out, nil
}

func (b *Backend) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bkt, ok := b.buckets[aws.ToString(params.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}

	prefix := aws.ToString(params.Prefix)
	keys := make([]string, 0, len(bkt.objects))
	for k := range bkt.objects {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Continuation tokens are the last key of the previous page; resume
	// strictly after it.
	if after := aws.ToString(params.ContinuationToken); after != "" {
		i := sort.SearchStrings(keys, after)
		if i < len(keys) && keys[i] == after {
			i++
		}
		keys = keys[i:]
	}

	pageSize := int32(defaultPageSize)
	if params.MaxKeys != nil && *params.MaxKeys > 0 && *params.MaxKeys < pageSize {
		pageSize = *params.MaxKeys
	}

	truncated := false
	if int32(len(keys)) > pageSize {
		keys = keys[:pageSize]
		truncated = true
	}

	out := &s3.ListObjectsV2Output{
		Name:        params.Bucket,
		Prefix:      params.Prefix,
		MaxKeys:     aws.Int32(pageSize),
		KeyCount:    aws.Int32(int32(len(keys))),
		IsTruncated: aws.Bool(truncated),
	}
	for _, k := range keys {
		obj := bkt.objects[k]
		out.Contents = append(out.Contents, s3types.Object{
			Key:          aws.String(k),
			ETag:         aws.String(`"` + obj.etag + `"`),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modified),
		})
	}
	if truncated && len(keys) > 0 {
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	return out, nil
}

func (b *Backend) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// HEAD responses carry no error body, so a missing bucket and a
	// missing key are both plain NotFound.
	bkt, ok := b.buckets[aws.ToString(params.Bucket)]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	obj, ok := bkt.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NotFound{}
	}

	return &s3.HeadObjectOutput{
		ETag:          aws.String(`"` + obj.etag + `"`),
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(obj.contentType),
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (b *Backend) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bkt, ok := b.buckets[aws.ToString(params.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}
	obj, ok := bkt.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(append([]byte(nil), obj.data...))),
		ETag:          aws.String(`"` + obj.etag + `"`),
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(obj.contentType),
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (b *Backend) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data := []byte{}
	if params.Body != nil {
		var err error
		data, err = io.ReadAll(params.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bkt, ok := b.buckets[aws.ToString(params.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}

	obj := &object{
		data:        data,
		etag:        contentETag(data),
		contentType: aws.ToString(params.ContentType),
		modified:    time.Now(),
	}
	bkt.objects[aws.ToString(params.Key)] = obj

	return &s3.PutObjectOutput{
		ETag: aws.String(`"` + obj.etag + `"`),
	}, nil
}

func (b *Backend) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bkt, ok := b.buckets[aws.ToString(params.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}

	// Deleting an absent key succeeds, matching the protocol.
	delete(bkt.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (b *Backend) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if params.Delete == nil || len(params.Delete.Objects) == 0 {
		return nil, &smithy.GenericAPIError{
			Code:    "MalformedXML",
			Message: "empty delete request",
		}
	}
	if len(params.Delete.Objects) > maxBatchDelete {
		return nil, &smithy.GenericAPIError{
			Code:    "MalformedXML",
			Message: fmt.Sprintf("delete request exceeds %d keys", maxBatchDelete),
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bkt, ok := b.buckets[aws.ToString(params.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}

	out := &s3.DeleteObjectsOutput{}
	for _, id := range params.Delete.Objects {
		key := aws.ToString(id.Key)
		delete(bkt.objects, key)
		out.Deleted = append(out.Deleted, s3types.DeletedObject{
			Key: aws.String(key),
		})
	}
	return out, nil
}

func (b *Backend) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	srcBucket, srcKey, err := splitCopySource(aws.ToString(params.CopySource))
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	src, ok := b.buckets[srcBucket]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}
	obj, ok := src.objects[srcKey]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	dst, ok := b.buckets[aws.ToString(params.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}

	cp := &object{
		data:        append([]byte(nil), obj.data...),
		etag:        obj.etag,
		contentType: obj.contentType,
		modified:    time.Now(),
	}
	dst.objects[aws.ToString(params.Key)] = cp

	return &s3.CopyObjectOutput{
		CopyObjectResult: &s3types.CopyObjectResult{
			ETag:         aws.String(`"` + cp.etag + `"`),
			LastModified: aws.Time(cp.modified),
		},
	}, nil
}

// splitCopySource parses the "bucket/key" copy source form, tolerating a
// leading slash and URL escaping.
func splitCopySource(source string) (bucket, key string, err error) {
	source = strings.TrimPrefix(source, "/")
	if unescaped, uerr := url.PathUnescape(source); uerr == nil {
		source = unescaped
	}

	bucket, key, found := strings.Cut(source, "/")
	if !found || bucket == "" || key == "" {
		return "", "", &smithy.GenericAPIError{
			Code:    "InvalidArgument",
			Message: fmt.Sprintf("invalid copy source %q", source),
		}
	}
	return bucket, key, nil
}

func contentETag(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// SeedObject stores data under bucket/key directly, creating the bucket if
// needed. Tests use it to stage large listings without going through the
// API surface.
func (b *Backend) SeedObject(bucketName, key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bkt, ok := b.buckets[bucketName]
	if !ok {
		bkt = &bucket{
			created: time.Now(),
			objects: make(map[string]*object),
		}
		b.buckets[bucketName] = bkt
	}
	bkt.objects[key] = &object{
		data:     append([]byte(nil), data...),
		etag:     contentETag(data),
		modified: time.Now(),
	}
}

// ObjectCount reports how many objects bucket holds, or zero when the
// bucket does not exist.
func (b *Backend) ObjectCount(bucketName string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bkt, ok := b.buckets[bucketName]
	if !ok {
		return 0
	}
	return len(bkt.objects)
}

// Location reports the location constraint recorded at bucket creation.
func (b *Backend) Location(bucketName string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bkt, ok := b.buckets[bucketName]
	if !ok {
		return ""
	}
	return bkt.location
}
