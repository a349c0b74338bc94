package archival_test

import (
	"context"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/tierkit/pkg/archival"
	"github.com/LeeDigitalWorks/tierkit/pkg/s3mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// stubAPI serves from a live in-memory backend while letting tests override
// individual calls to script throttles, faults and visibility lag.
type stubAPI struct {
	*s3mem.Backend

	onCreateBucket func(ctx context.Context, params *s3.CreateBucketInput) (*s3.CreateBucketOutput, error)
	onDeleteBucket func(ctx context.Context, params *s3.DeleteBucketInput) (*s3.DeleteBucketOutput, error)
	onListBuckets  func(ctx context.Context, params *s3.ListBucketsInput) (*s3.ListBucketsOutput, error)
	onList         func(ctx context.Context, params *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error)
	onHead         func(ctx context.Context, params *s3.HeadObjectInput) (*s3.HeadObjectOutput, error)
	onGet          func(ctx context.Context, params *s3.GetObjectInput) (*s3.GetObjectOutput, error)
	onPut          func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	onDelete       func(ctx context.Context, params *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error)
	onBatchDelete  func(ctx context.Context, params *s3.DeleteObjectsInput) (*s3.DeleteObjectsOutput, error)
	onCopy         func(ctx context.Context, params *s3.CopyObjectInput) (*s3.CopyObjectOutput, error)
}

func newStub() *stubAPI {
	return &stubAPI{Backend: s3mem.New()}
}

func (s *stubAPI) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if s.onCreateBucket != nil {
		return s.onCreateBucket(ctx, params)
	}
	return s.Backend.CreateBucket(ctx, params, optFns...)
}

func (s *stubAPI) DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	if s.onDeleteBucket != nil {
		return s.onDeleteBucket(ctx, params)
	}
	return s.Backend.DeleteBucket(ctx, params, optFns...)
}

func (s *stubAPI) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if s.onListBuckets != nil {
		return s.onListBuckets(ctx, params)
	}
	return s.Backend.ListBuckets(ctx, params, optFns...)
}

func (s *stubAPI) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if s.onList != nil {
		return s.onList(ctx, params)
	}
	return s.Backend.ListObjectsV2(ctx, params, optFns...)
}

func (s *stubAPI) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if s.onHead != nil {
		return s.onHead(ctx, params)
	}
	return s.Backend.HeadObject(ctx, params, optFns...)
}

func (s *stubAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if s.onGet != nil {
		return s.onGet(ctx, params)
	}
	return s.Backend.GetObject(ctx, params, optFns...)
}

func (s *stubAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if s.onPut != nil {
		return s.onPut(ctx, params)
	}
	return s.Backend.PutObject(ctx, params, optFns...)
}

func (s *stubAPI) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if s.onDelete != nil {
		return s.onDelete(ctx, params)
	}
	return s.Backend.DeleteObject(ctx, params, optFns...)
}

func (s *stubAPI) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if s.onBatchDelete != nil {
		return s.onBatchDelete(ctx, params)
	}
	return s.Backend.DeleteObjects(ctx, params, optFns...)
}

func (s *stubAPI) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	if s.onCopy != nil {
		return s.onCopy(ctx, params)
	}
	return s.Backend.CopyObject(ctx, params, optFns...)
}

// slowDown fabricates the throttling rejection an S3-compatible backend
// returns when shedding load.
func slowDown() error {
	return &smithy.GenericAPIError{Code: "SlowDown", Message: "please reduce your request rate"}
}

// newTestClient builds a client over api with millisecond-scale retry and
// poll settings so tests run fast. mutate, when non-nil, adjusts the config
// before construction.
func newTestClient(t *testing.T, api archival.ObjectStorageAPI, mutate func(*archival.Config)) *archival.Client {
	t.Helper()

	nop := zerolog.Nop()
	cfg := archival.Config{
		Retry: archival.RetryPolicy{
			MaxAttempts:  4,
			InitialDelay: time.Millisecond,
			Multiplier:   2.0,
		},
		PollInterval: time.Millisecond,
		Logger:       &nop,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return archival.NewFromAPI(api, cfg)
}

// mustCreateBucket prepares backend state outside the code path under test.
func mustCreateBucket(t *testing.T, api archival.ObjectStorageAPI, name string) {
	t.Helper()

	_, err := api.CreateBucket(context.Background(), &s3.CreateBucketInput{
		Bucket: aws.String(name),
	})
	require.NoError(t, err)
}
