// Package config loads server configuration from a TOML file, an optional .env
// file and GOPHCHAT_* environment variables, on top of embedded defaults.
package config

import (
	"bytes"
	_ "embed" // default configuration
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

//go:embed defaults.toml
var defaultConfig []byte

// EnvPrefix prefixes every environment override, e.g. GOPHCHAT_AUTH_JWT_KEY.
const EnvPrefix = "GOPHCHAT"

// Config is the server configuration.
type Config struct {
	Addr      string    `mapstructure:"addr"`
	Debug     bool      `mapstructure:"debug"`
	Dev       bool      `mapstructure:"dev"`
	Database  Database  `mapstructure:"database"`
	Auth      Auth      `mapstructure:"auth"`
	Session   Session   `mapstructure:"session"`
	Channels  Channels  `mapstructure:"channels"`
	TLS       TLS       `mapstructure:"tls"`
	NATS      NATS      `mapstructure:"nats"`
	S3        S3        `mapstructure:"s3"`
	Telemetry Telemetry `mapstructure:"telemetry"`
}

// Database selects the message store.
type Database struct {
	DSN    string `mapstructure:"dsn"`
	Memory bool   `mapstructure:"memory"` // in-process store, nothing survives a restart
}

// Auth configures tokens and login throttling.
type Auth struct {
	JWTKey        string        `mapstructure:"jwt_key"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	LoginWindow   time.Duration `mapstructure:"login_window"`
	LoginMaxFails int           `mapstructure:"login_max_fails"`
	LoginBlockFor time.Duration `mapstructure:"login_block_for"`
}

// Session tunes live connections.
type Session struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	OutboundBuffer   int           `mapstructure:"outbound_buffer"`
	WriterGrace      time.Duration `mapstructure:"writer_grace"`
}

// Channels bounds channel management.
type Channels struct {
	MaxMembers int `mapstructure:"max_members"`
}

// TLS holds the server certificate. Both empty serves plaintext (dev only).
type TLS struct {
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
}

// NATS configures the downstream event publisher. An empty URL disables it.
type NATS struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// S3 configures attachment uploads. An empty bucket disables them.
type S3 struct {
	Region        string        `mapstructure:"region"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Endpoint      string        `mapstructure:"endpoint"`
	Bucket        string        `mapstructure:"bucket"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	PresignTTL    time.Duration `mapstructure:"presign_ttl"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
}

// DefaultFile is the config file used when none is given: $XDG_CONFIG_HOME/goph-chat/server.toml.
func DefaultFile() string {
	return filepath.Join(xdg.ConfigHome, "goph-chat", "server.toml")
}

// Load builds the configuration. Precedence, highest first: environment
// (including a .env file in the working directory), file, embedded defaults.
// A missing file is not an error.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewReader(defaultConfig)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	if file == "" {
		file = DefaultFile()
	}
	if _, err := os.Stat(file); err == nil {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat config %s: %w", file, err)
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

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.Auth.JWTKey == "" {
		errs = append(errs, errors.New("auth.jwt_key is required"))
	}
	if c.Auth.AccessTTL <= 0 {
		errs = append(errs, errors.New("auth.access_ttl must be positive"))
	}
	if !c.Database.Memory && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required unless database.memory is set"))
	}
	if (c.TLS.Cert == "") != (c.TLS.Key == "") {
		errs = append(errs, errors.New("tls.cert and tls.key must be set together"))
	}
	if c.TLS.Cert == "" && !c.Dev {
		errs = append(errs, errors.New("plaintext serving requires dev mode"))
	}
	if c.Session.OutboundBuffer < 0 {
		errs = append(errs, errors.New("session.outbound_buffer must not be negative"))
	}
	return errors.Join(errs...)
}
