package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSocket = "/var/run/miniospfd.sock"
	envPrefix     = "MINIOSPF"
)

// Config is everything miniospfd can be told, from defaults, a YAML file,
// MINIOSPF_* environment variables and flags, in increasing precedence.
type Config struct {
	Version       int    `mapstructure:"version" yaml:"version"`
	Interface     string `mapstructure:"interface" yaml:"interface"`
	Passive       string `mapstructure:"passive" yaml:"passive"`
	RouterID      string `mapstructure:"router-id" yaml:"router-id"`
	HelloInterval int    `mapstructure:"hello-interval" yaml:"hello-interval"`
	DeadInterval  int    `mapstructure:"dead-interval" yaml:"dead-interval"`
	Area          string `mapstructure:"area" yaml:"area"`
	AreaType      string `mapstructure:"area-type" yaml:"area-type"`
	Cost          int    `mapstructure:"cost" yaml:"cost"`
	InstanceID    int    `mapstructure:"instance-id" yaml:"instance-id"`

	Socket        string    `mapstructure:"socket" yaml:"socket"`
	MetricsListen string    `mapstructure:"metrics-listen" yaml:"metrics-listen"`
	Log           LogConfig `mapstructure:"log" yaml:"log"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max-size" yaml:"max-size"`
	MaxBackups int    `mapstructure:"max-backups" yaml:"max-backups"`
	MaxAge     int    `mapstructure:"max-age" yaml:"max-age"`
}

// Flags whose names differ from their keys.
var flagKeys = map[string]string{
	"ospf-version":    "version",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"log-file":        "log.file",
	"log-max-size":    "log.max-size",
	"log-max-backups": "log.max-backups",
	"log-max-age":     "log.max-age",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", 2)
	v.SetDefault("interface", "")
	v.SetDefault("passive", "")
	v.SetDefault("router-id", "0")
	v.SetDefault("hello-interval", 10)
	v.SetDefault("dead-interval", 40)
	v.SetDefault("area", "0.0.0.0")
	v.SetDefault("area-type", "standard")
	v.SetDefault("cost", 10)
	v.SetDefault("instance-id", 0)

	v.SetDefault("socket", DefaultSocket)
	v.SetDefault("metrics-listen", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max-size", 100)
	v.SetDefault("log.max-backups", 3)
	v.SetDefault("log.max-age", 28)
}

// AddFlags defines the daemon's flags on fs. Their defaults are only for
// the help text; unset flags never override the file or the environment.
func AddFlags(fs *pflag.FlagSet) {
	fs.IntP("ospf-version", "V", 2, "OSPF version (2 or 3)")
	fs.StringP("interface", "i", "", "active interface")
	fs.StringP("passive", "p", "", "passive interface whose prefixes are announced")
	fs.StringP("router-id", "r", "0", "router ID, 0 picks the lowest IPv4 address")
	fs.IntP("hello-interval", "e", 10, "hello interval in seconds")
	fs.IntP("dead-interval", "d", 40, "router dead interval in seconds")
	fs.StringP("area", "a", "0.0.0.0", "area ID")
	fs.StringP("area-type", "t", "standard", "area type (standard, stub, nssa)")
	fs.IntP("cost", "c", 10, "interface cost")
	fs.Int("instance-id", 0, "OSPFv3 instance ID")

	fs.String("socket", DefaultSocket, "control socket")
	fs.String("metrics-listen", "", "address for the HTTP metrics and status endpoint")

	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "text", "log format (text, json)")
	fs.String("log-file", "", "also write logs to this file, rotating it")
	fs.Int("log-max-size", 100, "megabytes before the log file is rotated")
	fs.Int("log-max-backups", 3, "rotated log files to keep")
	fs.Int("log-max-age", 28, "days to keep rotated log files")
}

// New returns a viper instance with our defaults, environment binding and
// the flags in fs bound to their keys. path names an optional YAML file.
func New(fs *pflag.FlagSet, path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for _, key := range knownKeys {
			f := fs.Lookup(flagName(key))
			if f == nil {
				continue
			}

			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	return v, nil
}

func flagName(key string) string {
	for name, k := range flagKeys {
		if k == key {
			return name
		}
	}
	return key
}

var knownKeys = []string{
	"version", "interface", "passive", "router-id", "hello-interval",
	"dead-interval", "area", "area-type", "cost", "instance-id", "socket",
	"metrics-listen", "log.level", "log.format", "log.file", "log.max-size",
	"log.max-backups", "log.max-age",
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// YAML renders the configuration the way it would be written in a file.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
