package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/videodiary/internal/flagx"
	"github.com/dmitrijs2005/videodiary/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// may be given as strings like "2s" or integer nanoseconds.
type JsonConfig struct {
	DataDir           string         `json:"data_dir"`
	SandboxQuotaLimit int64          `json:"sandbox_quota_limit"`
	CloudProvider     string         `json:"cloud_provider"`
	BucketBaseURL     string         `json:"bucket_base_url"`
	S3Endpoint        string         `json:"s3_endpoint"`
	S3Region          string         `json:"s3_region"`
	S3Bucket          string         `json:"s3_bucket"`
	S3AccessKey       string         `json:"s3_access_key"`
	S3SecretKey       string         `json:"s3_secret_key"`
	SyncMaxRetries    int            `json:"sync_max_retries"`
	SyncBaseDelay     timex.Duration `json:"sync_base_delay"`
}

// parseJson overlays cfg with values from the JSON file named by the -c or
// -config flag. Absent file path means no overlay; unset JSON fields keep
// the value already in cfg.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.SandboxQuotaLimit != 0 {
		cfg.SandboxQuotaLimit = jc.SandboxQuotaLimit
	}
	if jc.CloudProvider != "" {
		cfg.CloudProvider = jc.CloudProvider
	}
	if jc.BucketBaseURL != "" {
		cfg.BucketBaseURL = jc.BucketBaseURL
	}
	if jc.S3Endpoint != "" {
		cfg.S3Endpoint = jc.S3Endpoint
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
	if jc.SyncMaxRetries != 0 {
		cfg.SyncMaxRetries = jc.SyncMaxRetries
	}
	if jc.SyncBaseDelay.Duration != 0 {
		cfg.SyncBaseDelay = time.Duration(jc.SyncBaseDelay.Duration)
	}
}
