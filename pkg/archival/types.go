// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package archival

import "time"

// ObjectMetadata describes a stored object as reported by the backend.
// Values are immutable snapshots taken by the call that produced them.
type ObjectMetadata struct {
	Bucket string
	Key    string

	// ETag is the backend's content fingerprint with the surrounding
	// double quotes stripped.
	ETag string

	ContentLength int64
}

// BucketInfo describes a bucket as reported by the backend.
type BucketInfo struct {
	Name      string
	CreatedAt time.Time
}
