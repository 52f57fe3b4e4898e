package configs

import (
	"fmt"

	"github.com/yeisme/sharevault/pkg/rule"
)

// Validate checks the rule tags of every section.
func (c *AppConfig) Validate() error {
	if err := rule.ValidateStruct(c); err != nil {
		if verrs := rule.Errors(err); verrs != nil {
			return fmt.Errorf("invalid configuration: %w", verrs)
		}

		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Transfer.UploadTTL <= 0 || c.Transfer.DownloadTTL <= 0 {
		return fmt.Errorf("invalid configuration: transfer ttl must be positive")
	}

	if c.Transfer.UploadTTL > c.Transfer.MaxSignatureTTL || c.Transfer.DownloadTTL > c.Transfer.MaxSignatureTTL {
		return fmt.Errorf("invalid configuration: transfer ttl exceeds max_signature_ttl")
	}

	return nil
}
