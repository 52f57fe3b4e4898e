package configs

import "github.com/spf13/viper"

const (
	DefaultRateLimitEnabled = true
	DefaultRateLimitRPS     = 50.0
	DefaultRateLimitBurst   = 100
	DefaultRateLimitKey     = "ip"
)

// RateLimitConfig configures the token bucket limiter in front of the API.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
	// Key picks the limiting dimension: global, ip or header:<Header-Name>.
	Key string `mapstructure:"key"`
	// CapabilityRPS limits /u, /d and /s per client IP. Signatures are
	// unguessable but password attempts on /s are not.
	CapabilityRPS   float64 `mapstructure:"capability_rps"`
	CapabilityBurst int     `mapstructure:"capability_burst"`
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", DefaultRateLimitEnabled)
	v.SetDefault("rate_limit.rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit.burst", DefaultRateLimitBurst)
	v.SetDefault("rate_limit.key", DefaultRateLimitKey)
	v.SetDefault("rate_limit.capability_rps", 5.0)
	v.SetDefault("rate_limit.capability_burst", 20)
}
