package configs

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPort         = 8080
	DefaultHost         = "0.0.0.0"
	DefaultReloadConfig = false
	DefaultDebug        = false
	DefaultTimeout      = 30 // seconds
	// Uploads stream large bodies, so the write/read deadline is separate from Timeout.
	DefaultTransferTimeout = 3600 // seconds
)

type (
	// ServerConfig configures the HTTP listener.
	ServerConfig struct {
		Port         int    `mapstructure:"port"          rule:"min=1,max=65535"`
		Host         string `mapstructure:"host"          rule:"ip"`
		ReloadConfig bool   `mapstructure:"reload_config"`
		Debug        bool   `mapstructure:"debug"`
		Timeout      int    `mapstructure:"timeout"       rule:"min=1,max=300"`
		// TransferTimeout bounds a single upload or download request.
		TransferTimeout int `mapstructure:"transfer_timeout" rule:"min=1"`
		// BaseURL is the public origin used when building /u/ /d/ and /s/ links.
		BaseURL string `mapstructure:"base_url" rule:"omitempty,url"`
	}
)

// GetTimeoutDuration returns Timeout as a duration.
func (s *ServerConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// GetTransferTimeout returns TransferTimeout as a duration.
func (s *ServerConfig) GetTransferTimeout() time.Duration {
	return time.Duration(s.TransferTimeout) * time.Second
}

// PublicURL joins BaseURL and path.
func (s *ServerConfig) PublicURL(path string) string {
	return strings.TrimRight(s.BaseURL, "/") + path
}

func (s *ServerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.reload_config", DefaultReloadConfig)
	v.SetDefault("server.debug", DefaultDebug)
	v.SetDefault("server.timeout", DefaultTimeout)
	v.SetDefault("server.transfer_timeout", DefaultTransferTimeout)
	v.SetDefault("server.base_url", "http://localhost:8080")
}
