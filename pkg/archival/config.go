// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package archival

import (
	"time"

	"github.com/LeeDigitalWorks/tierkit/pkg/logger"

	"github.com/rs/zerolog"
)

const (
	// defaultRegion is the backend default and must not be sent as a
	// location constraint on bucket creation.
	defaultRegion = "us-east-1"

	// DefaultPollInterval is the delay between visibility probes.
	DefaultPollInterval = 5 * time.Second

	// DefaultDeleteValidationTimeout bounds the wait for a deleted object
	// to disappear from the backend's read view.
	DefaultDeleteValidationTimeout = 10 * time.Second

	// DefaultCopyValidationTimeout bounds the wait for a copied object to
	// appear in the backend's read view.
	DefaultCopyValidationTimeout = 30 * time.Second

	// listPageSize is the page size requested from the backend while
	// iterating a bucket. Deliberately far below the protocol maximum so
	// that throttle retries redo small requests.
	listPageSize = 100

	// deleteBatchSize is the backend's per-request cap on batch deletes.
	deleteBatchSize = 1000

	// downloadChunkSize is the copy buffer used when streaming an object
	// body to a file.
	downloadChunkSize = 0x1000
)

// RetryPolicy controls throttle retries for single-call backend operations.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the final
	// attempt that runs without a throttle guard. Minimum 1.
	MaxAttempts int

	// InitialDelay is the sleep before the second attempt.
	InitialDelay time.Duration

	// Multiplier scales the delay after every throttled attempt. Minimum 1.
	Multiplier float64
}

// DefaultRetryPolicy returns the archival test default: four attempts with
// sleeps of 1s, 2s and 4s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  4,
		InitialDelay: time.Second,
		Multiplier:   2.0,
	}
}

// normalize clamps out-of-range fields to their documented minimums.
func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// Config holds settings for the archival storage client.
type Config struct {
	// Endpoint overrides the backend endpoint URL. A scheme-less value
	// gets one from DisableTLS. Empty uses the SDK default resolution.
	Endpoint string

	// Region is the backend region. Defaults to us-east-1.
	Region string

	AccessKeyID     string
	SecretAccessKey string

	// DisableTLS connects without transport security: scheme-less
	// endpoints resolve to http, and certificate verification is skipped
	// when the endpoint still speaks https. Local test endpoints rarely
	// carry real certificates.
	DisableTLS bool

	// UsePathStyle requests path-style addressing (bucket in the URL path
	// instead of the host). Most local S3 stand-ins need this.
	UsePathStyle bool

	// Retry controls throttle retries. The zero value selects
	// DefaultRetryPolicy.
	Retry RetryPolicy

	// PollInterval is the delay between visibility probes. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration

	// RateLimit caps backend requests per second. Zero disables pacing.
	RateLimit int

	// Classifier maps object keys to topics for list filtering. Defaults
	// to TopicFromSegmentKey.
	Classifier Classifier

	// Logger overrides the package logger.
	Logger *zerolog.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	} else {
		cfg.Retry = cfg.Retry.normalize()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Classifier == nil {
		cfg.Classifier = TopicFromSegmentKey
	}
	if cfg.Logger == nil {
		l := logger.With().Str("component", "archival").Logger()
		cfg.Logger = &l
	}
	return cfg
}
