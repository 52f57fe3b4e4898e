package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultUploadTTL         = 60 * time.Minute
	DefaultMaxSignatureTTL   = 7 * 24 * time.Hour
	DefaultDownloadTTL       = 60 * time.Minute
	DefaultSweepCron         = "* * * * *"
	DefaultSweepBatchSize    = 500
	DefaultStaleUploadAfter  = 24 * time.Hour
	DefaultBaselinePlanID    = 1
	DefaultMaxFilesPerIntent = 1000
)

// TransferConfig holds the knobs of the upload/download protocol and the sweep.
type TransferConfig struct {
	// UploadTTL is used when an upload intent does not ask for a lifetime.
	UploadTTL   time.Duration `mapstructure:"upload_ttl"`
	DownloadTTL time.Duration `mapstructure:"download_ttl"`
	// MaxSignatureTTL caps any requested lifetime.
	MaxSignatureTTL time.Duration `mapstructure:"max_signature_ttl"`
	// MaxFilesPerIntent caps expected_file_count.
	MaxFilesPerIntent int `mapstructure:"max_files_per_intent" rule:"min=1"`
	// SpoolDir receives uploads before they are pushed to the object store. Empty uses the OS temp dir.
	SpoolDir string `mapstructure:"spool_dir"`

	SweepCron      string `mapstructure:"sweep_cron"       rule:"required"`
	SweepBatchSize int    `mapstructure:"sweep_batch_size" rule:"min=1"`
	// StaleUploadAfter releases holds whose signature was redeemed but whose
	// upload never committed, e.g. after a crash mid-upload.
	StaleUploadAfter time.Duration `mapstructure:"stale_upload_after"`

	// BaselinePlanID is used when a user has no plan or the assignment expired.
	BaselinePlanID int `mapstructure:"baseline_plan_id" rule:"min=1"`
	// BaselineQuotaMB seeds the baseline plan on first migration.
	BaselineQuotaMB int64 `mapstructure:"baseline_quota_mb" rule:"min=0"`
}

func (c *TransferConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("transfer.upload_ttl", DefaultUploadTTL)
	v.SetDefault("transfer.download_ttl", DefaultDownloadTTL)
	v.SetDefault("transfer.max_signature_ttl", DefaultMaxSignatureTTL)
	v.SetDefault("transfer.max_files_per_intent", DefaultMaxFilesPerIntent)
	v.SetDefault("transfer.spool_dir", "")
	v.SetDefault("transfer.sweep_cron", DefaultSweepCron)
	v.SetDefault("transfer.sweep_batch_size", DefaultSweepBatchSize)
	v.SetDefault("transfer.stale_upload_after", DefaultStaleUploadAfter)
	v.SetDefault("transfer.baseline_plan_id", DefaultBaselinePlanID)
	v.SetDefault("transfer.baseline_quota_mb", 1024)
}
