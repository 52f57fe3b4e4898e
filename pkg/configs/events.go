package configs

import "github.com/spf13/viper"

// EventsConfig switches event publication globally and per topic.
type EventsConfig struct {
	Enabled   bool                  `mapstructure:"enabled"`
	Analytics AnalyticsEventsConfig `mapstructure:"analytics"`
	Upload    UploadEventsConfig    `mapstructure:"upload"`
}

// AnalyticsEventsConfig controls download and visit analytics.
type AnalyticsEventsConfig struct {
	Download bool `mapstructure:"download"`
	Visit    bool `mapstructure:"visit"`
	// Consume starts the in-process consumer that persists analytics rows.
	// Disable it when a separate worker consumes the topics.
	Consume bool `mapstructure:"consume"`
}

// UploadEventsConfig controls upload lifecycle notifications.
type UploadEventsConfig struct {
	Committed bool `mapstructure:"committed"`
	Released  bool `mapstructure:"released"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)

	v.SetDefault("events.analytics.download", true)
	v.SetDefault("events.analytics.visit", true)
	v.SetDefault("events.analytics.consume", true)

	v.SetDefault("events.upload.committed", true)
	v.SetDefault("events.upload.released", true)
}
