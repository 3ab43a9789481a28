package config

import (
	"time"

	"github.com/google/uuid"
)

const MainConfigFileName = "bungeespoof.yaml"

type Config struct {
	Policy  SpoofPolicy   `mapstructure:"policy" json:"policy" yaml:"policy"`
	Session SessionConfig `mapstructure:"session" json:"session" yaml:"session"`
	Lookup  LookupConfig  `mapstructure:"lookup" json:"lookup" yaml:"lookup"`
	Relay   RelayConfig   `mapstructure:"relay" json:"relay" yaml:"relay"`
	API     APIConfig     `mapstructure:"api" json:"api" yaml:"api"`
	Log     LogConfig     `mapstructure:"log" json:"log" yaml:"log"`
}

// SessionConfig describes the local player. An empty UUID means an
// offline (unauthenticated) account.
type SessionConfig struct {
	Username string `mapstructure:"username" json:"username" yaml:"username"`
	UUID     string `mapstructure:"uuid" json:"uuid" yaml:"uuid"`
}

func (cfg SessionConfig) ParseUUID() (uuid.UUID, error) {
	if cfg.UUID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(cfg.UUID)
}

type LookupConfig struct {
	Enabled bool          `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	URL     string        `mapstructure:"url" json:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
}

type RelayConfig struct {
	ListenTo            string        `mapstructure:"listen_to" json:"listenTo" yaml:"listen_to"`
	ProxyTo             string        `mapstructure:"proxy_to" json:"proxyTo" yaml:"proxy_to"`
	ProxyBind           string        `mapstructure:"proxy_bind" json:"proxyBind" yaml:"proxy_bind"`
	DialTimeout         time.Duration `mapstructure:"dial_timeout" json:"dialTimeout" yaml:"dial_timeout"`
	IOTimeout           time.Duration `mapstructure:"io_timeout" json:"ioTimeout" yaml:"io_timeout"`
	SendProxyProtocol   bool          `mapstructure:"send_proxy_protocol" json:"sendProxyProtocol" yaml:"send_proxy_protocol"`
	AcceptProxyProtocol bool          `mapstructure:"accept_proxy_protocol" json:"acceptProxyProtocol" yaml:"accept_proxy_protocol"`
	UseTableflip        bool          `mapstructure:"use_tableflip" json:"useTableflip" yaml:"use_tableflip"`
	PidFile             string        `mapstructure:"pid_file" json:"pidFile" yaml:"pid_file"`
}

type APIConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Bind    string `mapstructure:"bind" json:"bind" yaml:"bind"`
}

type LogConfig struct {
	Level  string        `mapstructure:"level" json:"level" yaml:"level"`
	Format string        `mapstructure:"format" json:"format" yaml:"format"`
	File   FileLogConfig `mapstructure:"file" json:"file" yaml:"file"`
}

type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" json:"path" yaml:"path"`
	MaxSize    int    `mapstructure:"max_size" json:"maxSize" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" json:"maxBackups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"maxAge" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" json:"compress" yaml:"compress"`
}

func DefaultConfig() Config {
	return Config{
		Policy: DefaultSpoofPolicy(),
		Lookup: LookupConfig{
			Enabled: true,
			URL:     "https://api.mojang.com/users/profiles/minecraft/",
			Timeout: 3 * time.Second,
		},
		Relay: RelayConfig{
			ListenTo:    "127.0.0.1:25566",
			ProxyTo:     "127.0.0.1:25565",
			DialTimeout: time.Second,
			IOTimeout:   5 * time.Second,
			PidFile:     "/run/bungeespoof.pid",
		},
		API: APIConfig{
			Enabled: true,
			Bind:    "127.0.0.1:9190",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File: FileLogConfig{
				Path:       "/var/log/bungeespoof/bungeespoof.log",
				MaxSize:    100,
				MaxBackups: 5,
				MaxAge:     30,
				Compress:   true,
			},
		},
	}
}
