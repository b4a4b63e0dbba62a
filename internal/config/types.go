package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds every server-level option plus the backend service registry.
type Config struct {
	Server ServerConfig `koanf:"server"`

	// Services maps a service key (auth, qa, search, ...) to the base URL its
	// requests are forwarded to. The registry can also come from, and be
	// hot-reloaded out of, server.rpc.servicesFile.
	Services map[string]string `koanf:"services"`
}

// ServerConfig collects the bootstrap knobs for the gateway process.
type ServerConfig struct {
	Listen  ListenConfig      `koanf:"listen"`
	Logging LoggingConfig     `koanf:"logging"`
	Cache   ServerCacheConfig `koanf:"cache"`
	RPC     RPCConfig         `koanf:"rpc"`
	Session SessionConfig     `koanf:"session"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ServerCacheConfig selects and tunes the object cache backend.
type ServerCacheConfig struct {
	Backend    string                 `koanf:"backend"`
	TTLSeconds int                    `koanf:"ttlSeconds"`
	Redis      ServerRedisCacheConfig `koanf:"redis"`
}

type ServerRedisCacheConfig struct {
	Address  string               `koanf:"address"`
	Username string               `koanf:"username"`
	Password string               `koanf:"password"`
	DB       int                  `koanf:"db"`
	TLS      ServerRedisTLSConfig `koanf:"tls"`
}

type ServerRedisTLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// RPCConfig tunes backend service calls.
type RPCConfig struct {
	TimeoutSeconds int `koanf:"timeoutSeconds"`
	// ServicesFile optionally points at a JSON service registry that is
	// watched for changes at runtime.
	ServicesFile string `koanf:"servicesFile"`
}

// SessionConfig tunes the login session cookie.
type SessionConfig struct {
	Cookie     string `koanf:"cookie"`
	TTLSeconds int    `koanf:"ttlSeconds"`
}

// CacheTTL returns the object cache lifetime as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Server.Cache.TTLSeconds) * time.Second
}

// RPCTimeout returns the per-call backend deadline as a duration.
func (c Config) RPCTimeout() time.Duration {
	return time.Duration(c.Server.RPC.TimeoutSeconds) * time.Second
}

// SessionTTL returns the idle login lifetime as a duration.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Server.Session.TTLSeconds) * time.Second
}

// Validate enforces invariants that keep the runtime predictable before serving traffic.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.Server.Listen.Port <= 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen.port invalid: %d", c.Server.Listen.Port)
	}
	if c.Server.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("config: server.cache.ttlSeconds invalid: %d", c.Server.Cache.TTLSeconds)
	}
	if c.Server.RPC.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: server.rpc.timeoutSeconds invalid: %d", c.Server.RPC.TimeoutSeconds)
	}
	if c.Server.Session.TTLSeconds <= 0 {
		return fmt.Errorf("config: server.session.ttlSeconds invalid: %d", c.Server.Session.TTLSeconds)
	}
	backend := strings.TrimSpace(strings.ToLower(c.Server.Cache.Backend))
	switch backend {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(c.Server.Cache.Redis.Address) == "" {
			return errors.New("config: server.cache.redis.address required for redis backend")
		}
	default:
		return fmt.Errorf("config: server.cache.backend unsupported: %s", c.Server.Cache.Backend)
	}
	for svc, base := range c.Services {
		if err := validateServiceURL(svc, base); err != nil {
			return err
		}
	}
	return nil
}

func validateServiceURL(svc, base string) error {
	if strings.TrimSpace(svc) == "" {
		return errors.New("config: services contains an empty service key")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("config: services.%s url invalid: %q", svc, base)
	}
	return nil
}

// DefaultConfig returns the baseline values that align with the design defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: ListenConfig{
				Address: "0.0.0.0",
				Port:    8008,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
			Cache: ServerCacheConfig{
				Backend:    "memory",
				TTLSeconds: 60,
			},
			RPC: RPCConfig{
				TimeoutSeconds: 5,
			},
			Session: SessionConfig{
				Cookie:     "soc_login",
				TTLSeconds: 3600,
			},
		},
		Services: map[string]string{
			"auth":   "http://127.0.0.1:8001",
			"email":  "http://127.0.0.1:8002",
			"media":  "http://127.0.0.1:8003",
			"qa":     "http://127.0.0.1:8004",
			"reg":    "http://127.0.0.1:8005",
			"search": "http://127.0.0.1:8006",
			"user":   "http://127.0.0.1:8007",
		},
	}
}
