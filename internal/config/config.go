package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
)

const (
	delimiter = "."
	envPrefix = "TTB__"
)

// Server is one named Transmission RPC endpoint.
type Server struct {
	Name     string `koanf:"name"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// URL returns the RPC endpoint for this server.
func (s Server) URL() string {
	return fmt.Sprintf("http://%s:%d/transmission/rpc", s.Host, s.Port)
}

type TelegramConfig struct {
	Token string `koanf:"token"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// Config holds all application configuration, loaded once at startup.
type Config struct {
	Telegram  TelegramConfig `koanf:"telegram"`
	Whitelist []int64        `koanf:"whitelist"`
	Servers   []Server       `koanf:"servers"`
	Log       LogConfig      `koanf:"log"`
}

// Load reads the yaml config file and overlays TTB__ environment variables.
// A missing bot token or an empty whitelist is a fatal configuration error.
func Load(path string) (*Config, error) {
	k := koanf.New(delimiter)

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, "load config file")
		}
	}

	if err := k.Load(env.Provider(envPrefix, delimiter, func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "_", ".", -1)
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env")
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if cfg.Telegram.Token == "" {
		return nil, errors.New("telegram.token is required")
	}
	if len(cfg.Whitelist) == 0 {
		return nil, errors.New("whitelist must contain at least one user id")
	}

	if len(cfg.Servers) == 0 {
		cfg.Servers = []Server{{Name: "Default"}}
	}
	for i := range cfg.Servers {
		if cfg.Servers[i].Name == "" {
			cfg.Servers[i].Name = fmt.Sprintf("Server %d", i+1)
		}
		if cfg.Servers[i].Host == "" {
			cfg.Servers[i].Host = "127.0.0.1"
		}
		if cfg.Servers[i].Port == 0 {
			cfg.Servers[i].Port = 9091
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// Authorized reports whether a user id is in the whitelist.
func (c *Config) Authorized(userID int64) bool {
	for _, id := range c.Whitelist {
		if id == userID {
			return true
		}
	}
	return false
}
