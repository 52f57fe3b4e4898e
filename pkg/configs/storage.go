package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// StorageBackend selects the object store implementation.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageMinio StorageBackend = "minio"
	StorageS3    StorageBackend = "s3"
)

const (
	DefaultStorageBackend    = StorageLocal
	DefaultStorageLocalRoot  = "data/objects"
	DefaultS3Endpoint        = "localhost:9000"
	DefaultS3AccessKeyID     = "minioadmin"
	DefaultS3SecretAccessKey = "minioadmin"
	DefaultS3UseSSL          = false
	DefaultS3BucketName      = AppName
	DefaultS3Region          = "us-east-1"
	DefaultStorageRetries    = 3
	DefaultStorageRetryDelay = "200ms"
)

// StorageConfig configures where uploaded file contents live.
type StorageConfig struct {
	Backend StorageBackend `mapstructure:"backend" rule:"oneof=local minio s3"`
	// LocalRoot is the directory used by the local backend.
	LocalRoot string `mapstructure:"local_root"`

	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	Region          string `mapstructure:"region"`
	// UsePathStyle is required by MinIO and most S3 compatible gateways.
	UsePathStyle bool `mapstructure:"use_path_style"`

	// Retries bounds the attempts of a single Put/Get/Delete.
	Retries    int           `mapstructure:"retries"     rule:"min=1,max=10"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// Breaker wraps the store in a circuit breaker sharing the circuit_breaker thresholds.
	Breaker bool `mapstructure:"breaker"`
}

// GetEndpointURL returns the endpoint with a scheme.
func (c *StorageConfig) GetEndpointURL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

func (c *StorageConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", DefaultStorageBackend)
	v.SetDefault("storage.local_root", DefaultStorageLocalRoot)
	v.SetDefault("storage.endpoint", DefaultS3Endpoint)
	v.SetDefault("storage.access_key_id", DefaultS3AccessKeyID)
	v.SetDefault("storage.secret_access_key", DefaultS3SecretAccessKey)
	v.SetDefault("storage.use_ssl", DefaultS3UseSSL)
	v.SetDefault("storage.bucket_name", DefaultS3BucketName)
	v.SetDefault("storage.region", DefaultS3Region)
	v.SetDefault("storage.use_path_style", true)
	v.SetDefault("storage.retries", DefaultStorageRetries)
	v.SetDefault("storage.retry_delay", DefaultStorageRetryDelay)
	v.SetDefault("storage.breaker", false)
}
