package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthanhphan/go-shard-ring/pkg/resilience"
	"github.com/anthanhphan/go-shard-ring/pkg/ring"
	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

const (
	DriverZookeeper = "zookeeper"
	DriverEtcd      = "etcd"
	DriverGossip    = "gossip"

	StoreMongo  = "mongo"
	StoreRedis  = "redis"
	StoreMemory = "memory"
	StoreLog    = "log"

	ClockSystem = "system"
	ClockRedis  = "redis"
)

// Config holds shard node configuration
type Config struct {
	Server       ServerConfig       `json:"server" yaml:"server"`
	App          AppConfig          `json:"app" yaml:"app"`
	Coordination CoordinationConfig `json:"coordination" yaml:"coordination"`
	Storage      StorageConfig      `json:"storage" yaml:"storage"`
	Redis        RedisConfig        `json:"redis" yaml:"redis"`
	Forwarding   ForwardingConfig   `json:"forwarding" yaml:"forwarding"`
	Health       HealthConfig       `json:"health" yaml:"health"`
	Metrics      MetricsConfig      `json:"metrics" yaml:"metrics"`
	Logger       logger.Config      `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	Name string `json:"name" yaml:"name"`
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	// RingKey pins the node's ring position; -1 derives it from name, host and port.
	RingKey int `json:"ring_key" yaml:"ring_key"`
}

type AppConfig struct {
	RingSize int    `json:"ring_size" yaml:"ring_size"`
	Hash     string `json:"hash" yaml:"hash"`         // "sha256", "murmur3"
	IDClock  string `json:"id_clock" yaml:"id_clock"` // "system", "redis"
}

type CoordinationConfig struct {
	Driver             string       `json:"driver" yaml:"driver"` // "zookeeper", "etcd", "gossip"
	Servers            []string     `json:"servers" yaml:"servers"`
	Directory          string       `json:"directory" yaml:"directory"`
	SessionTimeoutMS   int          `json:"session_timeout_ms" yaml:"session_timeout_ms"`
	OperationTimeoutMS int          `json:"operation_timeout_ms" yaml:"operation_timeout_ms"`
	FetchConcurrency   int          `json:"fetch_concurrency" yaml:"fetch_concurrency"`
	Retry              RetryConfig  `json:"retry" yaml:"retry"`
	Gossip             GossipConfig `json:"gossip" yaml:"gossip"`
}

type RetryConfig struct {
	MaxAttempts      int `json:"max_attempts" yaml:"max_attempts"`
	InitialBackoffMS int `json:"initial_backoff_ms" yaml:"initial_backoff_ms"`
	MaxBackoffMS     int `json:"max_backoff_ms" yaml:"max_backoff_ms"`
}

type GossipConfig struct {
	BindAddr string   `json:"bind_addr" yaml:"bind_addr"`
	Port     int      `json:"port" yaml:"port"`
	Seeds    []string `json:"seeds" yaml:"seeds"`
}

type StorageConfig struct {
	Driver   string      `json:"driver" yaml:"driver"` // "mongo", "redis", "log", "memory"
	Mongo    MongoConfig `json:"mongo" yaml:"mongo"`
	RedisKey string      `json:"redis_key" yaml:"redis_key"`
	Log      LogConfig   `json:"log" yaml:"log"`
}

type LogConfig struct {
	DataDir          string `json:"data_dir" yaml:"data_dir"`
	FSync            bool   `json:"fsync" yaml:"fsync"`
	MaxSegmentSizeMB int    `json:"max_segment_size_mb" yaml:"max_segment_size_mb"`
}

type MongoConfig struct {
	URI        string `json:"uri" yaml:"uri"`
	Database   string `json:"database" yaml:"database"`
	Collection string `json:"collection" yaml:"collection"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type ForwardingConfig struct {
	TimeoutMS               int `json:"timeout_ms" yaml:"timeout_ms"`
	BreakerFailureThreshold int `json:"breaker_failure_threshold" yaml:"breaker_failure_threshold"`
	BreakerOpenTimeoutMS    int `json:"breaker_open_timeout_ms" yaml:"breaker_open_timeout_ms"`
}

type HealthConfig struct {
	GRPCPort int `json:"grpc_port" yaml:"grpc_port"` // 0 disables the gRPC health service
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:    "node-1",
			Host:    "localhost",
			Port:    3001,
			RingKey: -1,
		},
		App: AppConfig{
			RingSize: ring.DefaultSize,
			Hash:     ring.HashSHA256,
			IDClock:  ClockSystem,
		},
		Coordination: CoordinationConfig{
			Driver:             DriverZookeeper,
			Servers:            []string{"localhost:2181"},
			Directory:          "/data",
			SessionTimeoutMS:   10000,
			OperationTimeoutMS: 5000,
			FetchConcurrency:   8,
			Retry: RetryConfig{
				MaxAttempts:      5,
				InitialBackoffMS: 500,
				MaxBackoffMS:     10000,
			},
			Gossip: GossipConfig{
				BindAddr: "0.0.0.0",
				Port:     7946,
			},
		},
		Storage: StorageConfig{
			Driver: StoreMongo,
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "shardring",
				Collection: "records",
			},
			RedisKey: "shard:records",
			Log: LogConfig{
				DataDir:          "./data",
				MaxSegmentSizeMB: 16,
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Forwarding: ForwardingConfig{
			TimeoutMS:               5000,
			BreakerFailureThreshold: 3,
			BreakerOpenTimeoutMS:    10000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// Load loads configuration from file. conflux rejects absolute paths, so path
// is relative to the working directory.
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "node", "config", env+".yaml")
	}

	cfg := DefaultConfig()

	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		log.Printf("Config file not found or failed to parse, using defaults if file not specified. Path: %s, Error: %v", configPath, err)
		if path != "" {
			return nil, err
		}
		return cfg, nil
	}

	return parsedCfg, nil
}

// MustLoad loads configuration or exits on error
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects settings the node cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Name) == "" {
		errs = append(errs, errors.New("server.name must not be empty"))
	}
	if strings.Contains(c.Server.Name, "/") {
		errs = append(errs, fmt.Errorf("server.name %q must not contain '/'", c.Server.Name))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.App.RingSize <= 0 {
		errs = append(errs, fmt.Errorf("app.ring_size must be positive, got %d", c.App.RingSize))
	}
	if c.Server.RingKey >= c.App.RingSize || c.Server.RingKey < -1 {
		errs = append(errs, fmt.Errorf("server.ring_key %d outside [0, %d)", c.Server.RingKey, c.App.RingSize))
	}
	switch c.App.Hash {
	case ring.HashSHA256, ring.HashMurmur3:
	default:
		errs = append(errs, fmt.Errorf("unknown app.hash %q", c.App.Hash))
	}
	switch c.App.IDClock {
	case ClockSystem, ClockRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown app.id_clock %q", c.App.IDClock))
	}

	switch c.Coordination.Driver {
	case DriverZookeeper, DriverEtcd:
		if len(c.Coordination.Servers) == 0 {
			errs = append(errs, fmt.Errorf("coordination.servers required for %s", c.Coordination.Driver))
		}
	case DriverGossip:
	default:
		errs = append(errs, fmt.Errorf("unknown coordination.driver %q", c.Coordination.Driver))
	}
	if !strings.HasPrefix(c.Coordination.Directory, "/") {
		errs = append(errs, fmt.Errorf("coordination.directory %q must be absolute", c.Coordination.Directory))
	}

	switch c.Storage.Driver {
	case StoreMongo:
		if c.Storage.Mongo.URI == "" {
			errs = append(errs, errors.New("storage.mongo.uri required"))
		}
	case StoreLog:
		if c.Storage.Log.DataDir == "" {
			errs = append(errs, errors.New("storage.log.data_dir required"))
		}
	case StoreRedis, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	return errors.Join(errs...)
}

// SessionTimeout returns the coordination session timeout.
func (c *CoordinationConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMS) * time.Millisecond
}

// OperationTimeout returns the per-call coordination timeout.
func (c *CoordinationConfig) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutMS) * time.Millisecond
}

// RetryPolicy converts the retry settings.
func (r RetryConfig) RetryPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: time.Duration(r.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(r.MaxBackoffMS) * time.Millisecond,
	}
}

// MaxSegmentSize returns the segment rotation threshold in bytes.
func (l *LogConfig) MaxSegmentSize() int64 {
	return int64(l.MaxSegmentSizeMB) * 1024 * 1024
}

// Timeout returns the forwarding timeout.
func (f *ForwardingConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutMS) * time.Millisecond
}

// Breaker returns the per-peer circuit breaker template.
func (f *ForwardingConfig) Breaker() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold: f.BreakerFailureThreshold,
		OpenTimeout:      time.Duration(f.BreakerOpenTimeoutMS) * time.Millisecond,
	}
}
