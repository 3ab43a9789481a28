package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "BUNGEESPOOF"

var ErrInvalidConfig = errors.New("invalid config")

// Reader returns the configuration as it currently is.
type Reader func() (Config, error)

// NewFileReader loads path with a fresh Loader on every call, so it never
// shares viper state with a Loader that is watching the same file.
func NewFileReader(path string) Reader {
	return func() (Config, error) {
		return NewLoader(path).Load()
	}
}

func NewLoader(path string) *Loader {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return &Loader{
		path: path,
		v:    v,
	}
}

// Loader reads a config file (yaml, json or toml) with BUNGEESPOOF_*
// environment overrides on top.
type Loader struct {
	path string
	v    *viper.Viper
}

func (loader *Loader) Path() string {
	return loader.path
}

func (loader *Loader) Load() (Config, error) {
	if err := loader.v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", loader.path, err)
	}
	return loader.decode()
}

func (loader *Loader) decode() (Config, error) {
	var cfg Config
	if err := loader.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config file %s: %w", loader.path, err)
	}
	if errs := VerifyConfig(cfg); len(errs) > 0 {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return cfg, nil
}

// Watch calls onChange every time the file changes on disk. cfg is only
// meaningful when err is nil.
func (loader *Loader) Watch(onChange func(cfg Config, err error)) {
	loader.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(loader.decode())
	})
	loader.v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("policy.target_address", d.Policy.TargetAddress)
	v.SetDefault("policy.randomize_last_octet", d.Policy.RandomizeLastOctet)
	v.SetDefault("policy.spoof_port", d.Policy.SpoofPort)
	v.SetDefault("policy.spoofed_port", d.Policy.SpoofedPort)
	v.SetDefault("policy.spoof_hostname", d.Policy.SpoofHostname)
	v.SetDefault("policy.hostname_override", d.Policy.HostnameOverride)
	v.SetDefault("policy.whitelist", d.Policy.Whitelist)
	v.SetDefault("policy.warn_on_skip", d.Policy.WarnOnSkip)

	v.SetDefault("session.username", d.Session.Username)
	v.SetDefault("session.uuid", d.Session.UUID)

	v.SetDefault("lookup.enabled", d.Lookup.Enabled)
	v.SetDefault("lookup.url", d.Lookup.URL)
	v.SetDefault("lookup.timeout", d.Lookup.Timeout)

	v.SetDefault("relay.listen_to", d.Relay.ListenTo)
	v.SetDefault("relay.proxy_to", d.Relay.ProxyTo)
	v.SetDefault("relay.proxy_bind", d.Relay.ProxyBind)
	v.SetDefault("relay.dial_timeout", d.Relay.DialTimeout)
	v.SetDefault("relay.io_timeout", d.Relay.IOTimeout)
	v.SetDefault("relay.send_proxy_protocol", d.Relay.SendProxyProtocol)
	v.SetDefault("relay.accept_proxy_protocol", d.Relay.AcceptProxyProtocol)
	v.SetDefault("relay.use_tableflip", d.Relay.UseTableflip)
	v.SetDefault("relay.pid_file", d.Relay.PidFile)

	v.SetDefault("api.enabled", d.API.Enabled)
	v.SetDefault("api.bind", d.API.Bind)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file.enabled", d.Log.File.Enabled)
	v.SetDefault("log.file.path", d.Log.File.Path)
	v.SetDefault("log.file.max_size", d.Log.File.MaxSize)
	v.SetDefault("log.file.max_backups", d.Log.File.MaxBackups)
	v.SetDefault("log.file.max_age", d.Log.File.MaxAge)
	v.SetDefault("log.file.compress", d.Log.File.Compress)
}

// MarshalYAML renders cfg the way a config file would hold it.
func MarshalYAML(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
