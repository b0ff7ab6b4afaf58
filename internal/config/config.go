package config

import (
	"time"
)

// Config is the complete partitioner configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Migration MigrationConfig `yaml:"migration" json:"migration"`
	Lock      LockConfig      `yaml:"lock" json:"lock"`
	Events    EventsConfig    `yaml:"events" json:"events"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

// DatabaseConfig contains the database connection and pool settings.
type DatabaseConfig struct {
	// URL is mysql://, postgres:// or sqlite://. The CLI's first argument
	// overrides it.
	URL               string        `yaml:"url" json:"url"`
	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// MigrationConfig controls how rows are moved.
type MigrationConfig struct {
	BatchSize           int     `yaml:"batch_size" json:"batch_size"`
	AbortOnBatchFailure bool    `yaml:"abort_on_batch_failure" json:"abort_on_batch_failure"`
	BatchesPerSecond    float64 `yaml:"batches_per_second" json:"batches_per_second"` // 0 disables throttling
	EmptyRangeIsError   bool    `yaml:"empty_range_is_error" json:"empty_range_is_error"`
	Timezone            string  `yaml:"timezone" json:"timezone"`
}

// LockConfig selects the backend of the per-table run lock.
type LockConfig struct {
	Type           string         `yaml:"type" json:"type"` // none, memory, redis, dynamodb
	TTL            time.Duration  `yaml:"ttl" json:"ttl"`
	KeyPrefix      string         `yaml:"key_prefix" json:"key_prefix"`
	RedisConfig    RedisConfig    `yaml:"redis_config,omitempty" json:"redis_config,omitempty"`
	DynamoDBConfig DynamoDBConfig `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty"`
}

// RedisConfig contains Redis-specific configuration.
type RedisConfig struct {
	Endpoints    []string      `yaml:"endpoints" json:"endpoints"`
	Password     string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int           `yaml:"db" json:"db"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" json:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// DynamoDBConfig contains DynamoDB-specific configuration.
type DynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// EventsConfig selects where migration events are published.
type EventsConfig struct {
	Type        string      `yaml:"type" json:"type"` // log, kafka, none
	KafkaConfig KafkaConfig `yaml:"kafka_config" json:"kafka_config"`
}

// KafkaConfig contains Kafka-specific configuration.
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers"`
	Topic           string        `yaml:"topic" json:"topic"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // text or json
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxOpenConns:      4,
			MaxIdleConns:      2,
			ConnMaxLifetime:   5 * time.Minute,
			ConnMaxIdleTime:   10 * time.Minute,
			ConnectionTimeout: 10 * time.Second,
		},
		Migration: MigrationConfig{
			BatchSize: 100,
			Timezone:  "UTC",
		},
		Lock: LockConfig{
			Type:      "memory",
			TTL:       5 * time.Minute,
			KeyPrefix: "partitioner:lock:",
			RedisConfig: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     4,
				MinIdleConns: 1,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
		},
		Events: EventsConfig{
			Type: "log",
			KafkaConfig: KafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "table-partitioner-events",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				RequiredAcks:    -1,      // All replicas
				MaxMessageBytes: 1000000, // 1MB
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Location resolves Migration.Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Migration.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Migration.Timezone)
}
