// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package archival

import (
	"errors"
	"fmt"
	"time"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

var (
	// ErrThrottled indicates the backend shed the request and the retry
	// budget was exhausted.
	ErrThrottled = errors.New("backend throttled request")

	// ErrNotFound indicates the requested bucket or object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrWaitTimeout indicates a visibility wait expired before the
	// condition held.
	ErrWaitTimeout = errors.New("wait timeout")
)

// ThrottledError wraps a throttling rejection that survived the full retry
// budget of an operation.
type ThrottledError struct {
	Op  string
	Err error
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%s: still throttled after retries: %v", e.Op, e.Err)
}

func (e *ThrottledError) Unwrap() error { return e.Err }

func (e *ThrottledError) Is(target error) bool { return target == ErrThrottled }

// WaitTimeoutError reports a visibility wait that expired.
type WaitTimeoutError struct {
	Bucket    string
	Key       string
	Condition string
	Timeout   time.Duration
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s/%s to become %s",
		e.Timeout, e.Bucket, e.Key, e.Condition)
}

func (e *WaitTimeoutError) Is(target error) bool { return target == ErrWaitTimeout }

// throttleCodes are the error codes S3-compatible backends return when
// shedding load.
var throttleCodes = map[string]struct{}{
	"SlowDown":            {},
	"Throttling":          {},
	"ThrottlingException": {},
	"RequestThrottled":    {},
	"TooManyRequests":     {},
}

// isSlowDown reports whether err is a raw backend throttling rejection.
func isSlowDown(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		_, ok := throttleCodes[apiErr.ErrorCode()]
		return ok
	}
	return false
}

// IsThrottled reports whether err is a throttling failure, either a raw
// backend rejection or one wrapped after retry exhaustion.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled) || isSlowDown(err)
}

// IsNotFound reports whether err indicates a missing bucket or object.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}

	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var noBucket *s3types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}

// IsWaitTimeout reports whether err is a visibility wait expiry.
func IsWaitTimeout(err error) bool {
	return errors.Is(err, ErrWaitTimeout)
}
