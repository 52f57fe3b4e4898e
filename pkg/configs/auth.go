package configs

import "github.com/spf13/viper"

// AuthConfig describes how the identity proxy hands the caller to us.
// The proxy authenticates; this service only trusts the injected headers.
type AuthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// UserHeader carries the opaque user id issued by the identity provider.
	UserHeader  string `mapstructure:"user_header"  rule:"required"`
	EmailHeader string `mapstructure:"email_header"`
	NameHeader  string `mapstructure:"name_header"`
	RoleHeader  string `mapstructure:"role_header"`
	// SkipPaths are path prefixes that do not require an identity.
	SkipPaths []string `mapstructure:"skip_paths"`
	// DevAllowQuery accepts ?user= for local debugging.
	DevAllowQuery bool `mapstructure:"dev_allow_query"`
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.user_header", "X-User-ID")
	v.SetDefault("auth.email_header", "X-User-Email")
	v.SetDefault("auth.name_header", "X-User-Name")
	v.SetDefault("auth.role_header", "X-Role")
	v.SetDefault("auth.dev_allow_query", false)
	v.SetDefault("auth.skip_paths", []string{
		"/metrics",
		"/debug/pprof",
		"/api/v1/health",
		"/api/v1/plans",
		"/swagger",
		"/u/",
		"/d/",
		"/s/",
	})
}
