package configs

import (
	"time"

	"github.com/spf13/viper"
)

// GeoConfig configures best-effort IP geolocation of analytics rows.
type GeoConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is an ip-api compatible URL template; %s is replaced by the IP.
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// CacheTTL keeps lookups in the KV store. Zero disables caching.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func (c *GeoConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("geo.enabled", false)
	v.SetDefault("geo.endpoint", "http://ip-api.com/json/%s?fields=status,countryCode,city")
	v.SetDefault("geo.timeout", 2*time.Second)
	v.SetDefault("geo.cache_ttl", 24*time.Hour)
}
