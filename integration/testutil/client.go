//go:build integration

package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/tierkit/pkg/archival"

	"github.com/stretchr/testify/require"
)

// NewArchivalClient creates an archival client for testing, with polling
// tightened so eventual-consistency waits converge quickly
func NewArchivalClient(t *testing.T, cfg ArchivalConfig) *archival.Client {
	t.Helper()

	client, err := archival.New(context.Background(), archival.Config{
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		UsePathStyle:    cfg.UsePathStyle,
		PollInterval:    500 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create archival client")
	return client
}
