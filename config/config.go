// Package config loads connection settings from a .env file, an optional
// YAML file and CBMGMT_-prefixed environment variables, in increasing order
// of precedence.
package config

import (
	"io/fs"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. CBMGMT_CONNSTR.
const EnvPrefix = "CBMGMT"

// Config holds the settings for connecting to a cluster.
type Config struct {
	ConnStr        string        `mapstructure:"connstr"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	CertFile       string        `mapstructure:"cert_file"`
	KeyFile        string        `mapstructure:"key_file"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Debug          bool          `mapstructure:"debug"`
	// Throttle caps submissions per 10 second window; 0 disables it.
	Throttle int `mapstructure:"throttle"`
}

var keys = []string{
	"connstr",
	"username",
	"password",
	"cert_file",
	"key_file",
	"timeout",
	"connect_timeout",
	"debug",
	"throttle",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("connstr", "couchbase://localhost")
	v.SetDefault("timeout", "75s")
	v.SetDefault("connect_timeout", "10s")
	v.SetDefault("debug", false)
	v.SetDefault("throttle", 0)
}

// Load reads the configuration. envFile defaults to ".env" and may be
// missing; path names an optional YAML file.
func Load(path string, envFile ...string) (*Config, error) {
	if err := godotenv.Load(envFile...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	setDefaults(v)

	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrapf(err, "bind %s", key)
		}
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot be used to connect.
func (c *Config) Validate() error {
	switch {
	case c.ConnStr == "":
		return errors.New("connstr is required")
	case (c.CertFile == "") != (c.KeyFile == ""):
		return errors.New("cert_file and key_file must be set together")
	case c.CertFile == "" && c.Username == "":
		return errors.New("username is required unless a client certificate is configured")
	case c.CertFile != "" && !strings.HasPrefix(c.ConnStr, "couchbases://"):
		return errors.Newf("client certificates need a couchbases:// connection string, got %q", c.ConnStr)
	case c.Timeout <= 0:
		return errors.Newf("timeout must be positive, got %s", c.Timeout)
	case c.ConnectTimeout <= 0:
		return errors.Newf("connect_timeout must be positive, got %s", c.ConnectTimeout)
	case c.Throttle < 0:
		return errors.Newf("throttle must not be negative, got %d", c.Throttle)
	}
	return nil
}
