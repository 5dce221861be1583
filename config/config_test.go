package config

import (
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/davidbalbert/miniospf/common"
	"github.com/davidbalbert/miniospf/ospf"
	"github.com/davidbalbert/miniospf/system"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "miniospfd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func load(t *testing.T, args []string, path string) (*Config, error) {
	t.Helper()

	fs := pflag.NewFlagSet("miniospfd", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(args))

	v, err := New(fs, path)
	require.NoError(t, err)

	return Load(v)
}

func valid() Config {
	return Config{
		Version:       2,
		Interface:     "eth0",
		RouterID:      "0",
		HelloInterval: 10,
		DeadInterval:  40,
		Area:          "0.0.0.0",
		AreaType:      "standard",
		Cost:          10,
		Log:           LogConfig{Level: "info", Format: "text"},
	}
}

func TestLoadDefaults(t *testing.T) {
	c, err := load(t, []string{"-i", "eth0"}, "")
	require.NoError(t, err)

	assert.Equal(t, 2, c.Version)
	assert.Equal(t, "eth0", c.Interface)
	assert.Equal(t, "0", c.RouterID)
	assert.Equal(t, 10, c.HelloInterval)
	assert.Equal(t, 40, c.DeadInterval)
	assert.Equal(t, "0.0.0.0", c.Area)
	assert.Equal(t, "standard", c.AreaType)
	assert.Equal(t, 10, c.Cost)
	assert.Equal(t, DefaultSocket, c.Socket)
	assert.Equal(t, "", c.MetricsListen)
	assert.Equal(t, LogConfig{Level: "info", Format: "text", MaxSize: 100, MaxBackups: 3, MaxAge: 28}, c.Log)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
version: 3
interface: eth1
passive: lo
router-id: 1.1.1.1
hello-interval: 5
dead-interval: 20
area: 0.0.0.1
area-type: stub
cost: 100
instance-id: 4
metrics-listen: 127.0.0.1:9101
log:
  level: debug
  format: json
`)

	c, err := load(t, nil, path)
	require.NoError(t, err)

	assert.Equal(t, 3, c.Version)
	assert.Equal(t, "eth1", c.Interface)
	assert.Equal(t, "lo", c.Passive)
	assert.Equal(t, "1.1.1.1", c.RouterID)
	assert.Equal(t, 5, c.HelloInterval)
	assert.Equal(t, 20, c.DeadInterval)
	assert.Equal(t, "0.0.0.1", c.Area)
	assert.Equal(t, "stub", c.AreaType)
	assert.Equal(t, 100, c.Cost)
	assert.Equal(t, 4, c.InstanceID)
	assert.Equal(t, "127.0.0.1:9101", c.MetricsListen)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "json", c.Log.Format)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
interface: eth0
cost: 5
hello-interval: 5
log:
  level: warn
`)

	t.Setenv("MINIOSPF_COST", "7")
	t.Setenv("MINIOSPF_LOG_LEVEL", "error")
	t.Setenv("MINIOSPF_DEAD_INTERVAL", "30")

	c, err := load(t, []string{"--cost", "20", "-V", "3"}, path)
	require.NoError(t, err)

	assert.Equal(t, 20, c.Cost, "flags beat the environment")
	assert.Equal(t, "error", c.Log.Level, "the environment beats the file")
	assert.Equal(t, 30, c.DeadInterval)
	assert.Equal(t, 5, c.HelloInterval, "unset flags don't override the file")
	assert.Equal(t, 3, c.Version)
}

func TestLoadMissingFile(t *testing.T) {
	fs := pflag.NewFlagSet("miniospfd", pflag.ContinueOnError)
	AddFlags(fs)

	_, err := New(fs, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	_, err := load(t, []string{"-i", "eth0", "-a", "0.0.0.0", "-t", "stub"}, "")
	assert.EqualError(t, err, "config: the backbone area can't be a stub area")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		err    string
	}{
		{"version", func(c *Config) { c.Version = 4 }, "config: unsupported OSPF version: 4"},
		{"no interface", func(c *Config) { c.Interface = "" }, "config: interface is required"},
		{"active is passive", func(c *Config) { c.Passive = "eth0" }, "config: eth0 can't be both active and passive"},
		{"router-id", func(c *Config) { c.RouterID = "foo" }, `config: invalid router-id: "foo" must be an IPv4 address or an unsigned 32 bit integer`},
		{"area", func(c *Config) { c.Area = "::1" }, `config: invalid area: "::1" must be an IPv4 address or an unsigned 32 bit integer`},
		{"area type", func(c *Config) { c.AreaType = "totally-stubby" }, `config: unknown area type "totally-stubby"`},
		{"backbone nssa", func(c *Config) { c.AreaType = "nssa" }, "config: the backbone area can't be a nssa area"},
		{"hello too small", func(c *Config) { c.HelloInterval = 0 }, "config: hello-interval too small: 0"},
		{"hello too big", func(c *Config) { c.HelloInterval = 65536 }, "config: hello-interval too big: 65536"},
		{"dead too small", func(c *Config) { c.DeadInterval = 0 }, "config: dead-interval too small: 0"},
		{"hello not below dead", func(c *Config) { c.HelloInterval = 40 }, "config: hello-interval (40) must be less than dead-interval (40)"},
		{"v3 dead too big", func(c *Config) { c.Version = 3; c.DeadInterval = 65536 }, "config: dead-interval too big: 65536"},
		{"cost too small", func(c *Config) { c.Cost = 0 }, "config: cost too small: 0"},
		{"cost too big", func(c *Config) { c.Cost = 65536 }, "config: cost too big: 65536"},
		{"instance id", func(c *Config) { c.InstanceID = 256 }, "config: instance-id too big: 256"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, `config: unknown log format "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(&c)
			assert.EqualError(t, c.Validate(), tt.err)
		})
	}

	t.Run("ok", func(t *testing.T) {
		c := valid()
		assert.NoError(t, c.Validate())

		c.Version = 2
		c.DeadInterval = 100000
		assert.NoError(t, c.Validate(), "only OSPFv3 limits the dead interval to 16 bits")

		c.Area = "1"
		c.AreaType = "nssa"
		assert.NoError(t, c.Validate())
	})
}

type lookup map[string]system.Interface

func (l lookup) InterfaceByName(name string) (system.Interface, bool) {
	iface, ok := l[name]
	return iface, ok
}

func iface(name string, addrs ...string) system.Interface {
	i := system.Interface{Name: name, Flags: net.FlagUp}
	for _, a := range addrs {
		i.Addrs = append(i.Addrs, netip.MustParsePrefix(a))
	}
	return i
}

func TestOSPF(t *testing.T) {
	c := valid()
	c.Version = 3
	c.RouterID = "10.1.1.1"
	c.Area = "5"
	c.AreaType = "NSSA"
	c.Passive = "lo"
	c.Cost = 15
	c.InstanceID = 2

	conf, err := c.OSPF(lookup{})
	require.NoError(t, err)

	assert.Equal(t, ospf.Config{
		Version:       ospf.Version3,
		RouterID:      common.RouterID(0x0a010101),
		AreaID:        common.AreaID(5),
		AreaType:      ospf.AreaNSSA,
		Interface:     "eth0",
		Passive:       "lo",
		HelloInterval: 10,
		DeadInterval:  40,
		Cost:          15,
		InstanceID:    2,
	}, conf)
}

func TestOSPFSelectsRouterID(t *testing.T) {
	c := valid()
	c.Passive = "lo"

	ifaces := lookup{
		"eth0": iface("eth0", "10.0.0.1/24", "fe80::1/64"),
		"lo":   iface("lo", "192.168.1.1/32", "9.9.9.9/32"),
	}

	conf, err := c.OSPF(ifaces)
	require.NoError(t, err)
	assert.Equal(t, "9.9.9.9", conf.RouterID.String())

	_, err = c.OSPF(lookup{"eth0": iface("eth0", "fe80::1/64")})
	assert.EqualError(t, err, "config: no router-id given and no IPv4 address to take one from")
}

func TestSelectRouterID(t *testing.T) {
	assert.Equal(t, common.RouterID(0), SelectRouterID())
	assert.Equal(t, common.RouterID(0), SelectRouterID(iface("eth0", "2001:db8::1/64")))

	// compared as unsigned integers
	rid := SelectRouterID(iface("eth0", "200.0.0.1/24"), iface("lo", "100.0.0.1/32", "128.0.0.1/8"))
	assert.Equal(t, "100.0.0.1", rid.String())
}

func TestYAML(t *testing.T) {
	c := valid()
	c.Passive = "lo"

	b, err := c.YAML()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, yaml.Unmarshal(b, &m))
	assert.Equal(t, "eth0", m["interface"])
	assert.Equal(t, "lo", m["passive"])
	assert.Equal(t, 40, m["dead-interval"])
	assert.Equal(t, "info", m["log"].(map[string]any)["level"])

	// what we print reads back as the same configuration
	path := writeConfig(t, string(b))
	loaded, err := load(t, nil, path)
	require.NoError(t, err)
	assert.Equal(t, c, *loaded)
}

func TestNewLogger(t *testing.T) {
	c := LogConfig{Level: "debug", Format: "json"}
	log, err := c.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.Level)
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	c = LogConfig{Level: "warn", Format: "text", File: filepath.Join(t.TempDir(), "miniospfd.log")}
	log, err = c.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, log.Level)
	assert.True(t, log.Formatter.(*logrus.TextFormatter).DisableColors)

	log.Warn("hello")
	data, err := os.ReadFile(c.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")

	c.Level = "loud"
	_, err = c.NewLogger()
	assert.Error(t, err)
}
