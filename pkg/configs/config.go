// Package configs loads the sharevault configuration.
//
// Every concern lives in its own file with a struct tagged for mapstructure
// (viper keys) and rule (validation) plus a setDefaults method. Files in yaml,
// json, toml and dotenv form are accepted and can be hot reloaded.
//
// Example:
//
//	if err := configs.InitConfig("./"); err != nil {
//		log.Fatal(err)
//	}
//
//	cfg := configs.GetConfig()
//	fmt.Println(cfg.Server.Port, cfg.Transfer.UploadTTL)
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AppVersion is reported by health endpoints, tracing resources and the object store client.
const AppVersion = "0.3.0"

// AppName names the service in logs, metrics and storage defaults.
const AppName = "sharevault"

// EnvPrefix prefixes every environment override, e.g. SHAREVAULT_DB_HOST.
const EnvPrefix = "SHAREVAULT"

type (
	// AppConfig is the root configuration.
	AppConfig struct {
		Server         ServerConfig         `mapstructure:"server"`
		DB             DBConfig             `mapstructure:"db"`
		Storage        StorageConfig        `mapstructure:"storage"`
		KV             KVConfig             `mapstructure:"kv"`
		MQ             MQConfig             `mapstructure:"mq"`
		Log            LogConfig            `mapstructure:"log"`
		Auth           AuthConfig           `mapstructure:"auth"`
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
		Metrics        MetricsConfig        `mapstructure:"metrics"`
		Tracing        TracingConfig        `mapstructure:"tracing"`
		Events         EventsConfig         `mapstructure:"events"`
		Transfer       TransferConfig       `mapstructure:"transfer"`
		Geo            GeoConfig            `mapstructure:"geo"`
	}
)

var (
	globalConfig = Defaults()
	appViper     *viper.Viper
	configMu     sync.RWMutex
)

// InitConfig loads configuration from path, which may be a file or a directory
// containing config.{yaml,yml,json,toml,env}. A missing file is not an error:
// defaults and environment variables still apply.
func InitConfig(path string) error {
	v := viper.New()
	setAllDefaults(v)

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(path)
		v.AddConfigPath(filepath.Join(path, "configs"))

		for _, ext := range []string{"yaml", "yml", "json", "toml", "env", "dotenv"} {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				v.SetConfigFile(cfg)

				break
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	configMu.Lock()
	globalConfig = cfg
	appViper = v
	configMu.Unlock()

	reloadConfigs(v, cfg.Server.ReloadConfig)

	return nil
}

// setAllDefaults registers the defaults of every section.
func setAllDefaults(v *viper.Viper) {
	var cfg AppConfig

	cfg.Server.setDefaults(v)
	cfg.DB.setDefaults(v)
	cfg.Storage.setDefaults(v)
	cfg.KV.setDefaults(v)
	cfg.MQ.setDefaults(v)
	cfg.Log.setDefaults(v)
	cfg.Auth.setDefaults(v)
	cfg.RateLimit.setDefaults(v)
	cfg.CircuitBreaker.setDefaults(v)
	cfg.Metrics.setDefaults(v)
	cfg.Tracing.setDefaults(v)
	cfg.Events.setDefaults(v)
	cfg.Transfer.setDefaults(v)
	cfg.Geo.setDefaults(v)
}

// Defaults returns a configuration populated only with defaults.
// Commands that run before InitConfig and tests use it.
func Defaults() AppConfig {
	v := viper.New()
	setAllDefaults(v)

	var cfg AppConfig
	_ = v.Unmarshal(&cfg)

	return cfg
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload || v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Fprintln(os.Stderr, "config file changed, reloading:", e.Name)

		var cfg AppConfig
		if err := v.Unmarshal(&cfg); err != nil {
			fmt.Fprintf(os.Stderr, "error reloading config: %v\n", err)
			return
		}

		configMu.Lock()
		globalConfig = cfg
		configMu.Unlock()
	})
	v.WatchConfig()
}

// GetConfig returns the loaded configuration. Callers must not mutate it.
func GetConfig() *AppConfig {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := globalConfig

	return &cfg
}

// SetConfig replaces the global configuration. Used by tests and embedding programs.
func SetConfig(cfg AppConfig) {
	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
}

// GetViper returns the viper instance behind the loaded configuration.
func GetViper() *viper.Viper {
	configMu.RLock()
	defer configMu.RUnlock()

	return appViper
}
