package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Logging struct {
		Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format    string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Interval       time.Duration `yaml:"interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Storage struct {
		Type     string `yaml:"type" default:"memory" validate:"oneof=memory postgres"`
		Postgres struct {
			DSN             string        `yaml:"dsn"`
			MaxOpenConns    int           `yaml:"max_open_conns" default:"20"`
			MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
			InitSchema      bool          `yaml:"init_schema" default:"true"`
		} `yaml:"postgres"`
	} `yaml:"storage"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"powerledger"`
		PoolSize     int    `yaml:"pool_size" default:"10"`
		MinIdleConns int    `yaml:"min_idle_conns" default:"2"`
		// MemoryMaxKeys bounds the in-process fallback used when Redis is disabled.
		MemoryMaxKeys int `yaml:"memory_max_keys" default:"10000"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled     bool     `yaml:"enabled"`
		Brokers     []string `yaml:"brokers"`
		AuditTopic  string   `yaml:"audit_topic" default:"powerledger.audit"`
		LogTopic    string   `yaml:"log_topic" default:"powerledger.logs"`
		Compression string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer    struct {
			RequiredAcks int           `yaml:"required_acks" default:"-1"`
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"powerledger"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Scheduler struct {
		Enabled    bool          `yaml:"enabled" default:"true"`
		RunAt      string        `yaml:"run_at" default:"08:00"`
		Timezone   string        `yaml:"timezone" default:"UTC"`
		RunOnStart bool          `yaml:"run_on_start" default:"true"`
		LockTTL    time.Duration `yaml:"lock_ttl" default:"10m"`
	} `yaml:"scheduler"`
	Snapshot struct {
		ListLimit        int     `yaml:"list_limit" default:"100"`
		RateCapacity     float64 `yaml:"rate_capacity" default:"5"`
		RateRefillPerSec float64 `yaml:"rate_refill_per_sec" default:"0.1"`
	} `yaml:"snapshot"`
	Seed struct {
		Enabled       bool          `yaml:"enabled" default:"true"`
		CapacityKW    string        `yaml:"capacity_kw" default:"1000"`
		BarCapacityKW string        `yaml:"bar_capacity_kw" default:"500"`
		BarCapacityA  string        `yaml:"bar_capacity_a" default:"800"`
		Stations      []SeedStation `yaml:"stations" validate:"dive"`
	} `yaml:"seed"`
}

type SeedStation struct {
	Code       string `yaml:"code" validate:"required"`
	Name       string `yaml:"name" validate:"required"`
	OrderIndex int    `yaml:"order_index"`
}

// Load reads and parses a YAML configuration file. Missing keys take the
// values from the default tags.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates YAML bytes.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Type = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Storage.Postgres.DSN = v
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("SCHEDULER_TZ"); v != "" {
		c.Scheduler.Timezone = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Storage.Type == "postgres" && c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn is required when storage.type is postgres")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	var h, m int
	if _, err := fmt.Sscanf(c.Scheduler.RunAt, "%d:%d", &h, &m); err != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return fmt.Errorf("scheduler.run_at must be HH:MM, got '%s'", c.Scheduler.RunAt)
	}
	return nil
}

// Location resolves scheduler.timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}
