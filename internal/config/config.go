package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tanq16/ruget/internal/errcode"
	"github.com/tanq16/ruget/internal/retry"
	"github.com/tanq16/ruget/internal/utils"
)

const (
	EnvPrefix   = "RUGET"
	DefaultFile = ".rugetrc"
)

// Config holds every run option. Keys match the long flag names so the
// same name works in the config file, as RUGET_* variables and on the
// command line.
type Config struct {
	Input     string   `mapstructure:"input"`
	Output    string   `mapstructure:"output"`
	OutputDir string   `mapstructure:"output-dir"`
	Headers   []string `mapstructure:"header"`
	Resume    bool     `mapstructure:"resume"`
	Force     bool     `mapstructure:"force"`

	Retries       int     `mapstructure:"retries"`
	Jobs          int     `mapstructure:"jobs"`
	BackoffBase   int64   `mapstructure:"backoff-base"` // milliseconds
	BackoffFactor float64 `mapstructure:"backoff-factor"`
	MaxBackoff    int64   `mapstructure:"max-backoff"` // milliseconds
	Timeout       int64   `mapstructure:"timeout"`     // milliseconds

	UserAgent string `mapstructure:"user-agent"`
	Proxy     string `mapstructure:"proxy"`
	Insecure  bool   `mapstructure:"insecure"`
	NoNetrc   bool   `mapstructure:"no-netrc"`

	LoadCookies        string `mapstructure:"load-cookies"`
	SaveCookies        string `mapstructure:"save-cookies"`
	KeepSessionCookies bool   `mapstructure:"keep-session-cookies"`

	Verbose     bool   `mapstructure:"verbose"`
	Quiet       bool   `mapstructure:"quiet"`
	Debug       bool   `mapstructure:"debug"`
	Log         string `mapstructure:"log"`
	LogJSON     bool   `mapstructure:"log-json"`
	MetricsFile string `mapstructure:"metrics-file"`
	Messages    string `mapstructure:"messages"`

	AWSProfile string `mapstructure:"aws-profile"`
	AWSRegion  string `mapstructure:"aws-region"`
	S3Endpoint string `mapstructure:"s3-endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("retries", retry.DefaultMaxRetries)
	v.SetDefault("jobs", 0)
	v.SetDefault("backoff-base", retry.DefaultBase.Milliseconds())
	v.SetDefault("backoff-factor", retry.DefaultFactor)
	v.SetDefault("max-backoff", retry.DefaultMax.Milliseconds())
	v.SetDefault("timeout", 30000)
	v.SetDefault("user-agent", utils.ToolUserAgent)
	v.SetDefault("log", utils.DefaultFailureLog)
}

// DefaultPath is ~/.rugetrc, or empty when the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultFile)
}

// Load layers defaults, the TOML config file, RUGET_* environment variables
// and changed flags, in increasing precedence. An empty path reads
// ~/.rugetrc when present; an explicit path must exist.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			v.SetConfigFile(path)
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				return nil, errcode.Wrap(errcode.E302, err).With("path", path)
			}
		case explicit && errors.Is(err, fs.ErrNotExist):
			return nil, errcode.Newf(errcode.E301, "config file not found: %s", path).With("path", path)
		case explicit:
			return nil, errcode.FromFS(err, errcode.E300).With("path", path)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows about
	for _, key := range keys() {
		v.BindEnv(key)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, errcode.Wrap(errcode.E300, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errcode.Wrap(errcode.E302, err)
	}
	return &cfg, nil
}

// Validate checks option values and their combination with the number of
// URLs requested on the command line.
func (c *Config) Validate(numURLs int) error {
	switch {
	case c.Retries < 0:
		return invalid("retries", "must not be negative")
	case c.Jobs < 0:
		return invalid("jobs", "must not be negative")
	case c.BackoffBase <= 0:
		return invalid("backoff-base", "must be positive")
	case c.BackoffFactor < 1:
		return invalid("backoff-factor", "must be at least 1")
	case c.MaxBackoff < c.BackoffBase:
		return invalid("max-backoff", "must not be below backoff-base")
	case c.Timeout <= 0:
		return invalid("timeout", "must be positive")
	case c.Verbose && c.Quiet:
		return invalid("quiet", "cannot be combined with verbose")
	}
	if c.Proxy != "" {
		proxy := c.Proxy
		if !strings.Contains(proxy, "://") {
			proxy = "http://" + proxy
		}
		if u, err := url.Parse(proxy); err != nil || u.Host == "" {
			return invalid("proxy", fmt.Sprintf("%q is not a proxy URL", c.Proxy))
		}
	}
	if c.Output != "" && numURLs > 1 {
		return errcode.New(errcode.E303, "--output names a single file but several URLs were given").
			With("key", "output")
	}
	return nil
}

func invalid(key, reason string) error {
	return errcode.Newf(errcode.E304, "%s %s", key, reason).With("key", key)
}

func keys() []string {
	t := reflect.TypeOf(Config{})
	out := make([]string, 0, t.NumField())
	for i := range t.NumField() {
		if tag := t.Field(i).Tag.Get("mapstructure"); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func (c *Config) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Base = time.Duration(c.BackoffBase) * time.Millisecond
	p.Factor = c.BackoffFactor
	p.Max = time.Duration(c.MaxBackoff) * time.Millisecond
	p.MaxRetries = c.Retries
	return p
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}
