//go:build integration

package testutil

// ArchivalConfig holds connection settings for the object storage endpoint
// under test
type ArchivalConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// DefaultArchivalConfig returns settings for a local MinIO-style endpoint,
// overridable through the environment
func DefaultArchivalConfig() ArchivalConfig {
	return ArchivalConfig{
		Endpoint:        GetEnv("ARCHIVAL_ENDPOINT", "http://localhost:9000"),
		Region:          GetEnv("ARCHIVAL_REGION", "us-east-1"),
		AccessKeyID:     GetEnv("ARCHIVAL_ACCESS_KEY_ID", "minioadmin"),
		SecretAccessKey: GetEnv("ARCHIVAL_SECRET_ACCESS_KEY", "minioadmin"),
		UsePathStyle:    true, // Always use path-style for local testing
	}
}
