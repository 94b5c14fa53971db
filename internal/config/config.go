package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Auth     AuthConfig     `envconfig:"AUTH"`
	Store    StoreConfig    `envconfig:"STORE"`
	Realtime RealtimeConfig `envconfig:"REALTIME"`
	Log      LogConfig      `envconfig:"LOG"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"4000"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// AuthConfig 描述令牌校验配置。
type AuthConfig struct {
	Secret   string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"168h"`
}

// StoreConfig 描述消息存储配置。
type StoreConfig struct {
	Driver      string `envconfig:"DRIVER" default:"mysql"`
	Host        string `envconfig:"DB_HOST" default:"127.0.0.1"`
	Port        int    `envconfig:"DB_PORT" default:"3306"`
	Name        string `envconfig:"DB_NAME"`
	User        string `envconfig:"DB_USER"`
	Password    string `envconfig:"DB_PASS"`
	BadgerPath  string `envconfig:"BADGER_PATH" default:"data/messages"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`
}

// RealtimeConfig 描述 websocket 连接参数。
type RealtimeConfig struct {
	MaxContentLength int           `envconfig:"MAX_CONTENT_LENGTH" default:"4096"`
	MaxFrameSize     int64         `envconfig:"MAX_FRAME_SIZE" default:"65536"`
	SendQueueSize    int           `envconfig:"SEND_QUEUE_SIZE" default:"256"`
	InboxSize        int           `envconfig:"INBOX_SIZE" default:"32"`
	PongWait         time.Duration `envconfig:"PONG_WAIT" default:"60s"`
	WriteWait        time.Duration `envconfig:"WRITE_WAIT" default:"10s"`
	PersistTimeout   time.Duration `envconfig:"PERSIST_TIMEOUT" default:"0s"`
	EvictSuperseded  bool          `envconfig:"EVICT_SUPERSEDED" default:"false"`
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadAuth 只加载令牌配置，供开发工具使用。
func LoadAuth() (AuthConfig, error) {
	var cfg AuthConfig
	if err := envconfig.Process("AUTH", &cfg); err != nil {
		return AuthConfig{}, fmt.Errorf("load auth config: %w", err)
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return AuthConfig{}, errors.New("JWT_SECRET must not be blank")
	}
	return cfg, nil
}

// Validate checks values envconfig cannot express with tags.
func (c *Config) Validate() error {
	if _, err := c.Server.Addr(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("JWT_SECRET must not be blank")
	}

	switch c.Store.Driver {
	case "mysql":
		if c.Store.Name == "" || c.Store.User == "" {
			return errors.New("mysql store requires DB_NAME and DB_USER")
		}
	case "badger":
		if c.Store.BadgerPath == "" {
			return errors.New("badger store requires BADGER_PATH")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	if c.Realtime.MaxContentLength < 1 {
		return fmt.Errorf("invalid MAX_CONTENT_LENGTH %d", c.Realtime.MaxContentLength)
	}
	if c.Realtime.SendQueueSize < 1 || c.Realtime.InboxSize < 1 {
		return errors.New("SEND_QUEUE_SIZE and INBOX_SIZE must be positive")
	}
	if c.Realtime.PongWait <= 0 || c.Realtime.WriteWait <= 0 {
		return errors.New("PONG_WAIT and WRITE_WAIT must be positive")
	}
	if c.Realtime.PersistTimeout < 0 {
		return errors.New("PERSIST_TIMEOUT must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Addr 解析服务器监听地址。
func (c ServerConfig) Addr() (string, error) {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "4000"
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":4000" 或 "127.0.0.1:4000"。
		return port, nil
	}

	return ":" + port, nil
}

// PingPeriod must stay below PongWait so the peer answers before the read deadline.
func (c RealtimeConfig) PingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// MySQLDSN builds the go-sql-driver DSN; parseTime keeps created_at a time.Time.
func (c StoreConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// SlogLevel maps LOG_LEVEL onto slog.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(c.Level)))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.Level, err)
	}
	return level, nil
}
