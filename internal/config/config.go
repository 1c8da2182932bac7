// Package config loads the six7 process configuration.
//
// YAML example:
//
//	server:
//	  host: 127.0.0.1
//	  port: 9000
//	  admin_address: ":9090"   # optional metrics/health listener
//	  region: us-east-1
//	storage:
//	  path: ./data
//	auth:
//	  mode: sigv4              # "none" or "sigv4" (sigv4 also accepts Basic)
//	logging:
//	  level: info
//	tracing:
//	  enabled: false
//	  endpoint: localhost:4318
//	buckets:
//	  - name: test-bucket
//	    access_key: minioadmin
//	    secret_key: minioadmin
//	    region: us-east-1
//
// Environment overrides:
//
//	SIX7_HOST, SIX7_PORT, SIX7_ADMIN_ADDRESS, SIX7_STORAGE_PATH,
//	SIX7_AUTH_MODE, SIX7_LOG_LEVEL
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"six7/internal/auth"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	AuthModeNone  = "none"
	AuthModeSigV4 = "sigv4"

	// DefaultPath is read when no config path is given.
	DefaultPath = "six7.yaml"
)

type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Storage StorageConfig  `yaml:"storage"`
	Auth    AuthConfig     `yaml:"auth"`
	Logging LoggingConfig  `yaml:"logging"`
	Tracing TracingConfig  `yaml:"tracing"`
	Buckets []BucketConfig `yaml:"buckets"`
}

type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	AdminAddress string `yaml:"admin_address,omitempty"` // empty disables the admin listener
	Region       string `yaml:"region"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	Mode string `yaml:"mode"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`                // OTLP/HTTP collector, host:port
	SampleRatio float64 `yaml:"sample_ratio,omitempty"`  // 0.0 - 1.0
	ServiceName string  `yaml:"service_name,omitempty"`
}

// BucketConfig declares a bucket that is created at startup together with
// the credentials allowed to access the server.
type BucketConfig struct {
	Name      string `yaml:"name"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region,omitempty"`
}

// Default returns a Config with safe, local defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:   "127.0.0.1",
			Port:   9000,
			Region: "us-east-1",
		},
		Storage: StorageConfig{
			Path: "./data",
		},
		Auth: AuthConfig{
			Mode: AuthModeSigV4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			SampleRatio: 1.0,
			ServiceName: "six7",
		},
	}
}

// Load reads configuration from path, falling back to DefaultPath when path
// is empty. A missing file yields the defaults. Environment overrides are
// applied last.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return applyEnvOverrides(cfg), nil
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	return applyEnvOverrides(cfg), nil
}

func applyEnvOverrides(cfg Config) Config {
	if v := os.Getenv("SIX7_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SIX7_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SIX7_ADMIN_ADDRESS"); v != "" {
		cfg.Server.AdminAddress = v
	}
	if v := os.Getenv("SIX7_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("SIX7_AUTH_MODE"); v != "" {
		mode := strings.ToLower(strings.TrimSpace(v))
		switch mode {
		case AuthModeNone, AuthModeSigV4:
			cfg.Auth.Mode = mode
		default:
			// ignore invalid value; keep existing
		}
	}
	if v := os.Getenv("SIX7_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}
	return cfg
}

// Validate reports the first problem found in cfg.
func (c Config) Validate() error {
	if c.Storage.Path == "" {
		return errors.New("storage.path must not be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Auth.Mode {
	case AuthModeNone:
	case AuthModeSigV4:
		if len(c.Credentials()) == 0 {
			return errors.New("auth.mode sigv4 requires at least one bucket with access_key and secret_key")
		}
	default:
		return fmt.Errorf("auth.mode %q must be %q or %q", c.Auth.Mode, AuthModeNone, AuthModeSigV4)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio %v must be within [0, 1]", c.Tracing.SampleRatio)
	}

	seen := make(map[string]struct{}, len(c.Buckets))
	for i, b := range c.Buckets {
		if b.Name == "" {
			return fmt.Errorf("buckets[%d]: name must not be empty", i)
		}
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("buckets[%d]: duplicate bucket %q", i, b.Name)
		}
		seen[b.Name] = struct{}{}

		if (b.AccessKey == "") != (b.SecretKey == "") {
			return fmt.Errorf("buckets[%d]: access_key and secret_key must be set together", i)
		}
	}
	return nil
}

// Address returns the host:port the S3 listener binds to.
func (c Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// GetBucket returns the configuration for the named bucket.
func (c Config) GetBucket(name string) (BucketConfig, bool) {
	for _, b := range c.Buckets {
		if b.Name == name {
			return b, true
		}
	}
	return BucketConfig{}, false
}

// FindBucketByAccessKey returns the first bucket configured with accessKey.
func (c Config) FindBucketByAccessKey(accessKey string) (BucketConfig, bool) {
	for _, b := range c.Buckets {
		if b.AccessKey != "" && b.AccessKey == accessKey {
			return b, true
		}
	}
	return BucketConfig{}, false
}

// Credentials collects the access/secret key pairs of all configured
// buckets. When two buckets share an access key, the first one wins.
func (c Config) Credentials() auth.Credentials {
	creds := auth.Credentials{}
	for _, b := range c.Buckets {
		if b.AccessKey == "" {
			continue
		}
		if _, ok := creds[b.AccessKey]; ok {
			continue
		}
		creds[b.AccessKey] = b.SecretKey
	}
	return creds
}
