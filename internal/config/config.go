// Package config loads server settings from defaults, an optional YAML file,
// command-line flags and environment variables, in increasing priority.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. IMAGEDROP_UPLOAD_DIR.
// PORT is also honoured without the prefix.
const EnvPrefix = "IMAGEDROP"

const (
	BackendDisk = "disk"
	BackendS3   = "s3"
)

// Config is the full server configuration.
type Config struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	UploadDir       string        `mapstructure:"upload_dir"`
	PublicDir       string        `mapstructure:"public_dir"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	RateLimit       int           `mapstructure:"rate_limit"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Cleanup CleanupConfig `mapstructure:"cleanup"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// StorageConfig selects and configures the image store.
type StorageConfig struct {
	Backend string   `mapstructure:"backend"`
	S3      S3Config `mapstructure:"s3"`
}

// CleanupConfig schedules removal of abandoned temp upload files (disk
// backend only). An Interval of 0 disables it.
type CleanupConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// S3Config points at an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
}

// Addr is the listen address built from Host and Port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SetDefaults registers every key with its default value. Keys must be known
// to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host", "")
	v.SetDefault("port", 8080)
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("public_dir", "")
	v.SetDefault("max_upload_bytes", 0)
	v.SetDefault("rate_limit", 0)
	v.SetDefault("shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "server.log")
	v.SetDefault("log.buffer_size", 50)

	v.SetDefault("storage.backend", BackendDisk)
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.bucket", "")

	v.SetDefault("cleanup.interval", time.Hour)
	v.SetDefault("cleanup.max_age", 24*time.Hour)
}

// NewViper returns a viper instance wired for this service's environment.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Explicit names skip the prefix; the first one set wins.
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")
	return v
}

// Load reads configFile (if any) into v and decodes the result.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
