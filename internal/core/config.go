package core

import (
	"six7/internal/auth"
	"six7/internal/metrics"
	"six7/internal/storage"
)

const DefaultRegion = "us-east-1"

type Config struct {
	DataDir string
	Region  string
	Engine  storage.StorageEngine

	// Authenticator verifies request credentials. When nil, requests are
	// not authenticated.
	Authenticator auth.AuthEngine

	// Metrics, when set, receives HTTP and storage observations.
	Metrics *metrics.Metrics
}

type ConfigOption func(*Config)

func WithStorageEngine(engine storage.StorageEngine) ConfigOption {
	return func(cfg *Config) {
		cfg.Engine = engine
	}
}

func WithAuthEngine(authenticator auth.AuthEngine) ConfigOption {
	return func(cfg *Config) {
		cfg.Authenticator = authenticator
	}
}

func WithRegion(region string) ConfigOption {
	return func(cfg *Config) {
		cfg.Region = region
	}
}

func WithDataDir(dataDir string) ConfigOption {
	return func(cfg *Config) {
		cfg.DataDir = dataDir
	}
}

func WithMetrics(m *metrics.Metrics) ConfigOption {
	return func(cfg *Config) {
		cfg.Metrics = m
	}
}

func NewConfig(opts ...ConfigOption) Config {
	cfg := Config{Region: DefaultRegion}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
