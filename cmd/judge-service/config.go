package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ojjudge/internal/common/cache"
	"ojjudge/internal/common/db"
	"ojjudge/internal/common/mq"
	"ojjudge/internal/common/storage"
	"ojjudge/internal/judge/sandbox"
	"ojjudge/pkg/utils/logger"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultStatusTopic     = "judge.status.final"
	defaultStatusTimeout   = 3 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" toml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout" toml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" toml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout" toml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" toml:"shutdownTimeout"`
}

// QueueConfig selects the message driver. StatusTopic receives final-status events
// (a Kafka topic or an SQS queue URL); empty disables them.
type QueueConfig struct {
	Driver      string            `yaml:"driver" toml:"driver"` // kafka, sqs
	Kafka       mq.KafkaConfig    `yaml:"kafka" toml:"kafka"`
	SQS         mq.SQSConfig      `yaml:"sqs" toml:"sqs"`
	Consume     mq.ConsumeOptions `yaml:"consume" toml:"consume"`
	StatusTopic string            `yaml:"statusTopic" toml:"statusTopic"`
}

// DatabaseConfig selects the SQL store.
type DatabaseConfig struct {
	Driver   string        `yaml:"driver" toml:"driver"` // mysql, postgres
	MySQL    db.PoolConfig `yaml:"mysql" toml:"mysql"`
	Postgres db.PoolConfig `yaml:"postgres" toml:"postgres"`
}

func (d DatabaseConfig) pool() db.PoolConfig {
	if db.Dialect(d.Driver) == db.DialectPostgres || d.Driver == "postgresql" {
		return d.Postgres
	}
	return d.MySQL
}

// StorageConfig selects the object store; an empty driver disables report archiving.
type StorageConfig struct {
	Driver string              `yaml:"driver" toml:"driver"` // minio, s3
	MinIO  storage.MinIOConfig `yaml:"minio" toml:"minio"`
	S3     storage.S3Config    `yaml:"s3" toml:"s3"`
}

// ReportConfig holds report archive settings.
type ReportConfig struct {
	Bucket string `yaml:"bucket" toml:"bucket"`
	Prefix string `yaml:"prefix" toml:"prefix"`
}

// WorkerConfig bounds judging concurrency.
type WorkerConfig struct {
	PoolSize     int           `yaml:"poolSize" toml:"poolSize"`
	JudgeTimeout time.Duration `yaml:"judgeTimeout" toml:"judgeTimeout"`
	LockTTL      time.Duration `yaml:"lockTTL" toml:"lockTTL"`
	LockPoll     time.Duration `yaml:"lockPoll" toml:"lockPoll"`
}

// StatusConfig holds status cache settings.
type StatusConfig struct {
	TTL     time.Duration `yaml:"ttl" toml:"ttl"`
	MissTTL time.Duration `yaml:"missTTL" toml:"missTTL"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	Server    ServerConfig           `yaml:"server" toml:"server"`
	Logger    logger.Config          `yaml:"logger" toml:"logger"`
	Queue     QueueConfig            `yaml:"queue" toml:"queue"`
	Database  DatabaseConfig         `yaml:"database" toml:"database"`
	Redis     cache.RedisConfig      `yaml:"redis" toml:"redis"`
	Storage   StorageConfig          `yaml:"storage" toml:"storage"`
	Report    ReportConfig           `yaml:"report" toml:"report"`
	Worker    WorkerConfig           `yaml:"worker" toml:"worker"`
	Status    StatusConfig           `yaml:"status" toml:"status"`
	Sandbox   sandbox.Config         `yaml:"sandbox" toml:"sandbox"`
	Languages []sandbox.LanguageSpec `yaml:"languages" toml:"languages"`
}

// loadEnvFile populates the environment from path; a missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file failed: %w", err)
	}
	return nil
}

// decodeConfig expands ${VAR} references and decodes YAML, or TOML for .toml paths.
func decodeConfig(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	expanded := []byte(os.ExpandEnv(string(data)))
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(expanded, out)
	} else {
		err = yaml.Unmarshal(expanded, out)
	}
	if err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := decodeConfig(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultHTTPAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = defaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = defaultWriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = defaultIdleTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Queue.Driver == "" {
		c.Queue.Driver = "kafka"
	}
	if c.Queue.StatusTopic == "" && c.Queue.Driver == "kafka" {
		c.Queue.StatusTopic = defaultStatusTopic
	}
	c.Queue.Consume.SetDefaults()
	if c.Database.Driver == "" {
		c.Database.Driver = string(db.DialectMySQL)
	}
	if c.Worker.PoolSize <= 0 {
		c.Worker.PoolSize = 1
	}
	if c.Status.Timeout == 0 {
		c.Status.Timeout = defaultStatusTimeout
	}
}

func (c *AppConfig) validate() error {
	if c.Database.pool().DSN == "" {
		return fmt.Errorf("database dsn is required for driver %q", c.Database.Driver)
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	switch c.Queue.Driver {
	case "kafka":
		if len(c.Queue.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required")
		}
		if len(c.Queue.Kafka.Topics) == 0 {
			return fmt.Errorf("kafka topics are required")
		}
	case "sqs":
		if c.Queue.SQS.QueueURL == "" {
			return fmt.Errorf("sqs queueURL is required")
		}
	default:
		return fmt.Errorf("unsupported queue driver %q", c.Queue.Driver)
	}
	switch c.Storage.Driver {
	case "":
	case "minio", "s3":
		if c.Report.Bucket == "" {
			return fmt.Errorf("report bucket is required when storage is enabled")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	return nil
}
