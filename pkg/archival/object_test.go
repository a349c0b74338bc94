package archival_test

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/tierkit/pkg/archival"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Put / Get Tests
// ============================================================================

func TestPutObject_RoundTrip(t *testing.T) {
	t.Parallel()

	stub := newStub()
	mustCreateBucket(t, stub.Backend, "panda-bucket")

	c := newTestClient(t, stub, nil)
	key := "aaaa/kafka/orders/0_11/500-1-v1.log"
	require.NoError(t, c.PutObject(context.Background(), "panda-bucket", key, "segment bytes",
		archival.WithContentType("application/octet-stream")))

	data, err := c.GetObjectData(context.Background(), "panda-bucket", key)
	require.NoError(t, err)
	assert.Equal(t, "segment bytes", string(data))

	// Content type travels through to the stored object.
	out, err := stub.Backend.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String("panda-bucket"),
		Key:    aws.String(key),
	})
	require.NoError(t, err)
	defer out.Body.Close()
	assert.Equal(t, "application/octet-stream", aws.ToString(out.ContentType))
}

func TestGetObjectData_MissingKey(t *testing.T) {
	t.Parallel()

	stub := newStub()
	mustCreateBucket(t, stub.Backend, "panda-bucket")

	c := newTestClient(t, stub, nil)
	_, err := c.GetObjectData(context.Background(), "panda-bucket", "no-such-key")
	require.Error(t, err)
	assert.True(t, archival.IsNotFound(err))
}

func TestGetObjectMeta_StripsETagQuotes(t *testing.T) {
	t.Parallel()

	stub := newStub()
	stub.SeedObject("panda-bucket", "seg-0001", []byte("hello"))

	c := newTestClient(t, stub, nil)
	meta, err := c.GetObjectMeta(context.Background(), "panda-bucket", "seg-0001")
	require.NoError(t, err)

	assert.Equal(t, "panda-bucket", meta.Bucket)
	assert.Equal(t, "seg-0001", meta.Key)
	assert.Equal(t, int64(5), meta.ContentLength)
	assert.NotContains(t, meta.ETag, `"`)
	assert.Equal(t, fmt.Sprintf("%x", md5.Sum([]byte("hello"))), meta.ETag)
}

// ============================================================================
// Download Tests
// ============================================================================

func TestWriteObjectToFile_StreamsLargeBody(t *testing.T) {
	t.Parallel()

	// Larger than the 4 KiB copy buffer so the loop runs several times.
	content := make([]byte, 10000)
	for i := range content {
		content[i] = byte(i % 251)
	}

	stub := newStub()
	stub.SeedObject("panda-bucket", "seg-0001", content)

	dest := filepath.Join(t.TempDir(), "seg-0001.log")
	c := newTestClient(t, stub, nil)
	require.NoError(t, c.WriteObjectToFile(context.Background(), "panda-bucket", "seg-0001", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got))
}

func TestWriteObjectToFile_MissingKey(t *testing.T) {
	t.Parallel()

	stub := newStub()
	mustCreateBucket(t, stub.Backend, "panda-bucket")

	dest := filepath.Join(t.TempDir(), "seg-0001.log")
	c := newTestClient(t, stub, nil)
	err := c.WriteObjectToFile(context.Background(), "panda-bucket", "no-such-key", dest)
	require.Error(t, err)
	assert.True(t, archival.IsNotFound(err))

	// Nothing was created on disk.
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

// ============================================================================
// Delete / Copy / Move Tests
// ============================================================================

func TestDeleteObject_WithValidation(t *testing.T) {
	t.Parallel()

	stub := newStub()
	stub.SeedObject("panda-bucket", "seg-0001", []byte("x"))

	c := newTestClient(t, stub, nil)
	require.NoError(t, c.DeleteObject(context.Background(), "panda-bucket", "seg-0001",
		archival.WithValidation()))
	assert.Equal(t, 0, stub.ObjectCount("panda-bucket"))
}

func TestDeleteObject_ValidationTimesOut(t *testing.T) {
	t.Parallel()

	stub := newStub()
	stub.SeedObject("panda-bucket", "seg-0001", []byte("x"))

	// The backend accepts the delete but the key never leaves its read view.
	stub.onDelete = func(ctx context.Context, params *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		return &s3.DeleteObjectOutput{}, nil
	}

	c := newTestClient(t, stub, nil)
	err := c.DeleteObject(context.Background(), "panda-bucket", "seg-0001",
		archival.WithValidationTimeout(10*time.Millisecond))
	require.Error(t, err)
	assert.True(t, archival.IsWaitTimeout(err))
}

func TestCopyObject_WithValidation(t *testing.T) {
	t.Parallel()

	stub := newStub()
	stub.SeedObject("panda-bucket", "src-key", []byte("content"))

	c := newTestClient(t, stub, nil)
	require.NoError(t, c.CopyObject(context.Background(), "panda-bucket", "src-key", "dst-key",
		archival.WithValidation()))

	srcMeta, err := c.GetObjectMeta(context.Background(), "panda-bucket", "src-key")
	require.NoError(t, err)
	dstMeta, err := c.GetObjectMeta(context.Background(), "panda-bucket", "dst-key")
	require.NoError(t, err)
	assert.Equal(t, srcMeta.ETag, dstMeta.ETag)
	assert.Equal(t, srcMeta.ContentLength, dstMeta.ContentLength)
}

func TestCopyObject_MissingSource(t *testing.T) {
	t.Parallel()

	stub := newStub()
	mustCreateBucket(t, stub.Backend, "panda-bucket")

	c := newTestClient(t, stub, nil)
	err := c.CopyObject(context.Background(), "panda-bucket", "no-such-key", "dst-key")
	require.Error(t, err)
	assert.True(t, archival.IsNotFound(err))
}

func TestMoveObject_Validates(t *testing.T) {
	t.Parallel()

	stub := newStub()
	stub.SeedObject("panda-bucket", "src-key", []byte("content"))

	c := newTestClient(t, stub, nil)
	require.NoError(t, c.MoveObject(context.Background(), "panda-bucket", "src-key", "dst-key",
		archival.WithValidationTimeout(100*time.Millisecond)))

	assert.Equal(t, 1, stub.ObjectCount("panda-bucket"))
	_, err := c.GetObjectMeta(context.Background(), "panda-bucket", "src-key")
	assert.True(t, archival.IsNotFound(err))

	data, err := c.GetObjectData(context.Background(), "panda-bucket", "dst-key")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestMoveObject_ValidationTimesOutWhileSourceLingers(t *testing.T) {
	t.Parallel()

	stub := newStub()
	stub.SeedObject("panda-bucket", "src-key", []byte("content"))

	// The backend acks the delete but the source never leaves its read view.
	stub.onDelete = func(ctx context.Context, params *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		return &s3.DeleteObjectOutput{}, nil
	}

	c := newTestClient(t, stub, nil)
	err := c.MoveObject(context.Background(), "panda-bucket", "src-key", "dst-key",
		archival.WithValidationTimeout(20*time.Millisecond))
	require.Error(t, err)
	assert.True(t, archival.IsWaitTimeout(err))

	// The timeout came from the absence wait on the source.
	var wt *archival.WaitTimeoutError
	require.ErrorAs(t, err, &wt)
	assert.Equal(t, "src-key", wt.Key)
	assert.Equal(t, "absent", wt.Condition)

	// The destination became visible before the wait expired.
	_, err = c.GetObjectMeta(context.Background(), "panda-bucket", "dst-key")
	require.NoError(t, err)
}

func TestMoveObject_LeavesSourceOnCopyFailure(t *testing.T) {
	t.Parallel()

	stub := newStub()
	stub.SeedObject("panda-bucket", "src-key", []byte("content"))

	deleteCalls := 0
	stub.onCopy = func(ctx context.Context, params *s3.CopyObjectInput) (*s3.CopyObjectOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "InternalError", Message: "backend hiccup"}
	}
	stub.onDelete = func(ctx context.Context, params *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		deleteCalls++
		return stub.Backend.DeleteObject(ctx, params)
	}

	c := newTestClient(t, stub, nil)
	err := c.MoveObject(context.Background(), "panda-bucket", "src-key", "dst-key")
	require.Error(t, err)

	// The delete step never ran and the source survived.
	assert.Equal(t, 0, deleteCalls)
	assert.Equal(t, 1, stub.ObjectCount("panda-bucket"))

	data, err := c.GetObjectData(context.Background(), "panda-bucket", "src-key")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}
