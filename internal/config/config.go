package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix      = "SHELFKEEP"
	configFileName = "shelfkeep"
	configFileType = "yaml"
)

// S3 is the object storage used for encrypted snapshots.
type S3 struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type Backup struct {
	S3         S3            `mapstructure:"s3"`
	Interval   time.Duration `mapstructure:"interval"`
	Passphrase string        `mapstructure:"passphrase"`
	Keep       int           `mapstructure:"keep"`
}

type Remote struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Reachability struct {
	ProbeURL string        `mapstructure:"probe_url"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type Config struct {
	DBPath         string        `mapstructure:"db_path"`
	ListenAddr     string        `mapstructure:"listen_addr"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	BarcodeMaxAge  time.Duration `mapstructure:"barcode_max_age"`
	Remote         Remote        `mapstructure:"remote"`
	Reachability   Reachability  `mapstructure:"reachability"`
	Backup         Backup        `mapstructure:"backup"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "shelfkeep.db")
	v.SetDefault("listen_addr", "127.0.0.1:8787")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("allowed_origins", []string{"localhost:*", "127.0.0.1:*"})
	v.SetDefault("barcode_max_age", 30*24*time.Hour)

	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.timeout", 15*time.Second)

	v.SetDefault("reachability.probe_url", "")
	v.SetDefault("reachability.interval", 30*time.Second)
	v.SetDefault("reachability.timeout", 5*time.Second)

	v.SetDefault("backup.s3.endpoint", "")
	v.SetDefault("backup.s3.bucket", "")
	v.SetDefault("backup.s3.region", "us-east-1")
	v.SetDefault("backup.s3.access_key", "")
	v.SetDefault("backup.s3.secret_key", "")
	v.SetDefault("backup.s3.prefix", "")
	v.SetDefault("backup.interval", time.Duration(0))
	v.SetDefault("backup.passphrase", "")
	v.SetDefault("backup.keep", 7)
}

// Load reads configuration from defaults, an optional shelfkeep.yaml and
// SHELFKEEP_* environment variables, in increasing precedence. When path is
// empty the file is searched for in the working directory and
// $HOME/.config/shelfkeep; a missing file is not an error. An explicit path
// must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/shelfkeep")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive, got %s", c.Remote.Timeout)
	}
	if c.Reachability.Interval <= 0 {
		return fmt.Errorf("reachability.interval must be positive, got %s", c.Reachability.Interval)
	}
	if c.Backup.Interval < 0 {
		return fmt.Errorf("backup.interval must not be negative, got %s", c.Backup.Interval)
	}
	return nil
}

// ProbeURL is the address polled for reachability. It falls back to the
// remote base URL.
func (c *Config) ProbeURL() string {
	if c.Reachability.ProbeURL != "" {
		return c.Reachability.ProbeURL
	}
	return c.Remote.BaseURL
}
