package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NOSDU_HTTP_BIND.
const EnvPrefix = "NOSDU"

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Verbose bool          `mapstructure:"verbose"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Volumes VolumesConfig `mapstructure:"volumes"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // console or json
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type HTTPConfig struct {
	Bind        string   `mapstructure:"bind"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type CrawlConfig struct {
	// Workers is the traversal pool size; 0 selects the CPU count.
	Workers    int           `mapstructure:"workers"`
	MaxDepth   int           `mapstructure:"max_depth"`
	PruneRoots []string      `mapstructure:"prune_roots"`
	JobTTL     time.Duration `mapstructure:"job_ttl"`
}

type VolumesConfig struct {
	MountsPath      string   `mapstructure:"mounts_path"`
	SysBlockPath    string   `mapstructure:"sys_block_path"`
	UdevDataPath    string   `mapstructure:"udev_data_path"`
	Denylist        []string `mapstructure:"denylist"`
	RefreshSchedule string   `mapstructure:"refresh_schedule"`
}

// SetDefaults registers every key with its default so that environment
// overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)

	v.SetDefault("verbose", false)

	v.SetDefault("http.bind", "127.0.0.1:9100")
	v.SetDefault("http.cors_origins", []string{})

	v.SetDefault("crawl.workers", 0)
	v.SetDefault("crawl.max_depth", 0)
	v.SetDefault("crawl.prune_roots", []string{"/proc", "/sys", "/dev"})
	v.SetDefault("crawl.job_ttl", 30*time.Minute)

	v.SetDefault("volumes.mounts_path", "/proc/mounts")
	v.SetDefault("volumes.sys_block_path", "/sys/class/block")
	v.SetDefault("volumes.udev_data_path", "/run/udev/data")
	v.SetDefault("volumes.denylist", []string{"zram", "snd", "drm", "cpu", "hid"})
	v.SetDefault("volumes.refresh_schedule", "@every 5m")
}

// Load reads configuration from path (or nosdu.yaml in the usual places
// when path is empty), then the environment, over the defaults.
func Load(path string) (Config, error) {
	return LoadViper(viper.New(), path)
}

// LoadViper is Load on a caller-supplied viper instance, which may already
// carry bound command-line flags.
func LoadViper(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nosdu")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/nos")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values that cannot be used as given.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format: unsupported %q", c.Log.Format)
	}
	if c.Crawl.Workers < 0 {
		return fmt.Errorf("crawl.workers: must not be negative")
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth: must not be negative")
	}
	return nil
}

// LogLevel is the configured level, lowered to debug when verbose
// diagnostics are requested.
func (c Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.Verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	return level
}
