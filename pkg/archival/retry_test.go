package archival_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/tierkit/pkg/archival"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Throttle Retry Tests
// ============================================================================

func TestRetry_SucceedsAfterThrottledAttempts(t *testing.T) {
	t.Parallel()

	stub := newStub()
	mustCreateBucket(t, stub.Backend, "panda-bucket")

	calls := 0
	stub.onPut = func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		calls++
		if calls <= 2 {
			// Drain the body like a real backend before rejecting, so the
			// retry has to replay the payload from scratch.
			_, _ = io.Copy(io.Discard, params.Body)
			return nil, slowDown()
		}
		return stub.Backend.PutObject(ctx, params)
	}

	c := newTestClient(t, stub, nil)
	key := "aaaa/kafka/orders/0_11/500-1-v1.log"
	require.NoError(t, c.PutObject(context.Background(), "panda-bucket", key, "payload"))
	assert.Equal(t, 3, calls)

	data, err := c.GetObjectData(context.Background(), "panda-bucket", key)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestRetry_GivesUpAfterBudget(t *testing.T) {
	t.Parallel()

	stub := newStub()
	calls := 0
	stub.onHead = func(ctx context.Context, params *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
		calls++
		return nil, slowDown()
	}

	c := newTestClient(t, stub, nil)
	_, err := c.GetObjectMeta(context.Background(), "panda-bucket", "some-key")
	require.Error(t, err)
	assert.True(t, archival.IsThrottled(err))
	assert.Equal(t, 4, calls)

	var throttled *archival.ThrottledError
	require.ErrorAs(t, err, &throttled)
	assert.Equal(t, "head_object", throttled.Op)
}

func TestRetry_StopsOnNonThrottleError(t *testing.T) {
	t.Parallel()

	stub := newStub()
	calls := 0
	stub.onGet = func(ctx context.Context, params *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		calls++
		return nil, &s3types.NoSuchKey{}
	}

	c := newTestClient(t, stub, nil)
	_, err := c.GetObjectData(context.Background(), "panda-bucket", "some-key")
	require.Error(t, err)
	assert.True(t, archival.IsNotFound(err))
	assert.Equal(t, 1, calls)
}

func TestRetry_SingleAttemptRunsUnguarded(t *testing.T) {
	t.Parallel()

	stub := newStub()
	calls := 0
	stub.onDelete = func(ctx context.Context, params *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		calls++
		return nil, slowDown()
	}

	c := newTestClient(t, stub, func(cfg *archival.Config) {
		cfg.Retry = archival.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Millisecond, Multiplier: 2.0}
	})
	err := c.DeleteObject(context.Background(), "panda-bucket", "some-key")
	require.Error(t, err)
	assert.True(t, archival.IsThrottled(err))
	assert.Equal(t, 1, calls)
}

func TestRetry_DelaysGrowGeometrically(t *testing.T) {
	t.Parallel()

	stub := newStub()
	stub.onHead = func(ctx context.Context, params *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
		return nil, slowDown()
	}

	c := newTestClient(t, stub, func(cfg *archival.Config) {
		cfg.Retry = archival.RetryPolicy{MaxAttempts: 4, InitialDelay: 20 * time.Millisecond, Multiplier: 2.0}
	})

	start := time.Now()
	_, err := c.GetObjectMeta(context.Background(), "panda-bucket", "some-key")
	elapsed := time.Since(start)

	require.Error(t, err)
	// Three guarded attempts sleep 20ms, 40ms and 80ms before the final one.
	assert.GreaterOrEqual(t, elapsed, 140*time.Millisecond)
}

func TestRetry_HonorsContextDuringBackoff(t *testing.T) {
	t.Parallel()

	stub := newStub()
	calls := 0
	stub.onHead = func(ctx context.Context, params *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
		calls++
		return nil, slowDown()
	}

	c := newTestClient(t, stub, func(cfg *archival.Config) {
		cfg.Retry = archival.RetryPolicy{MaxAttempts: 4, InitialDelay: time.Minute, Multiplier: 2.0}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.GetObjectMeta(ctx, "panda-bucket", "some-key")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestMoveObject_RetriesStepsIndependently(t *testing.T) {
	t.Parallel()

	stub := newStub()
	stub.SeedObject("panda-bucket", "src-key", []byte("content"))

	copyCalls, deleteCalls := 0, 0
	stub.onCopy = func(ctx context.Context, params *s3.CopyObjectInput) (*s3.CopyObjectOutput, error) {
		copyCalls++
		if copyCalls == 1 {
			return nil, slowDown()
		}
		return stub.Backend.CopyObject(ctx, params)
	}
	stub.onDelete = func(ctx context.Context, params *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		deleteCalls++
		if deleteCalls == 1 {
			return nil, slowDown()
		}
		return stub.Backend.DeleteObject(ctx, params)
	}

	c := newTestClient(t, stub, nil)
	require.NoError(t, c.MoveObject(context.Background(), "panda-bucket", "src-key", "dst-key"))

	// Each step burns its own retry budget.
	assert.Equal(t, 2, copyCalls)
	assert.Equal(t, 2, deleteCalls)

	_, err := c.GetObjectMeta(context.Background(), "panda-bucket", "src-key")
	assert.True(t, archival.IsNotFound(err))

	data, err := c.GetObjectData(context.Background(), "panda-bucket", "dst-key")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}
