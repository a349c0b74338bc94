// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

// Package archival provides a storage client for exercising S3-compatible
// archival tiers from test harnesses. It layers two behaviors over the raw
// SDK: exponential-backoff retries on backend throttling and optional
// eventual-consistency polling after mutating operations.
package archival

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client performs bucket and object operations against one backend.
// Operations are synchronous and block the calling goroutine through
// retries and polls. A Client is as safe for concurrent use as the
// ObjectStorageAPI handle behind it; test harnesses normally drive it
// sequentially.
type Client struct {
	api     ObjectStorageAPI
	cfg     Config
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New creates a client connected to the configured endpoint. Static
// credentials are used when configured; otherwise the SDK's default chain
// (environment, shared config) resolves them.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(newHTTPClient(cfg.DisableTLS)),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"", // session token (empty for permanent credentials)
			)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.UsePathStyle
		},
	}
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(normalizeEndpoint(cfg.Endpoint, cfg.DisableTLS))
		})
	}

	cfg.Logger.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("region", cfg.Region).
		Bool("key_set", cfg.AccessKeyID != "").
		Bool("tls_disabled", cfg.DisableTLS).
		Msg("Constructed archival storage client")

	return NewFromAPI(s3.NewFromConfig(awsCfg, opts...), cfg), nil
}

// NewFromAPI creates a client over an existing backend handle. Tests use it
// to substitute in-memory or scripted backends.
func NewFromAPI(api ObjectStorageAPI, cfg Config) *Client {
	cfg = cfg.withDefaults()

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	return &Client{
		api:     api,
		cfg:     cfg,
		limiter: limiter,
		log:     *cfg.Logger,
	}
}

// pace blocks until the client-side rate limiter admits another backend
// request. A nil limiter admits immediately.
func (c *Client) pace(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// newHTTPClient builds the HTTP client every backend request rides on.
// Idle-connection limits suit a client hammering a single endpoint with
// many sequential calls. No client-level timeout is set; retry and poll
// deadlines belong to the loops above, not to individual requests.
func newHTTPClient(insecure bool) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Transport: transport}
}

// normalizeEndpoint fills in the scheme when the endpoint override omits
// one. An explicit scheme always wins.
func normalizeEndpoint(endpoint string, disableTLS bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if disableTLS {
		return "http://" + endpoint
	}
	return "https://" + endpoint
}
