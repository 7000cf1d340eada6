package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		BasePath        string        `yaml:"base_path"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Logger struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		Output    string `yaml:"output"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval"`
			Threshold int           `yaml:"threshold"`
			Topic     string        `yaml:"topic"`
		} `yaml:"collector"`
	} `yaml:"logger"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Models   ModelsConfig   `yaml:"models"`
	Training TrainingConfig `yaml:"training"`
	Cache    struct {
		Enabled    bool          `yaml:"enabled"`
		TTL        time.Duration `yaml:"ttl"`
		MemorySize int           `yaml:"memory_size"`
	} `yaml:"cache"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled               bool     `yaml:"enabled"`
		Brokers               []string `yaml:"brokers"`
		JobEventsTopic        string   `yaml:"job_events_topic"`
		TrainingRequestsTopic string   `yaml:"training_requests_topic"`
		RequiredAcks          int      `yaml:"required_acks"`
		Compression           string   `yaml:"compression"`
		Producer              struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// ModelsConfig locates the three model artifacts and the optional remote model server.
type ModelsConfig struct {
	ServiceURL string        `yaml:"service_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Strict     bool          `yaml:"strict"`
	Yield      struct {
		Path           string `yaml:"path"`
		SequenceLength int    `yaml:"sequence_length"`
	} `yaml:"yield"`
	Price struct {
		Path           string `yaml:"path"`
		SequenceLength int    `yaml:"sequence_length"`
	} `yaml:"price"`
	Anomaly struct {
		Path          string  `yaml:"path"`
		Contamination float64 `yaml:"contamination"`
	} `yaml:"anomaly"`
	Breaker struct {
		MaxFailures uint32        `yaml:"max_failures"`
		OpenTimeout time.Duration `yaml:"open_timeout"`
	} `yaml:"breaker"`
}

type TrainingConfig struct {
	DefaultEpochs     int           `yaml:"default_epochs"`
	MaxEpochs         int           `yaml:"max_epochs"`
	EpochDelay        time.Duration `yaml:"epoch_delay"`
	EstimatedDuration int           `yaml:"estimated_duration"`
	StreamInterval    time.Duration `yaml:"stream_interval"`
	Dispatch          string        `yaml:"dispatch"`
}

// Default returns a configuration matching a standalone deployment:
// built-in models, in-memory job table, no external infrastructure.
func Default() *Config {
	c := &Config{Environment: "development"}
	c.applyDefaults()
	return c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

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

	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("MODEL_SERVICE_URL"); v != "" {
		c.Models.ServiceURL = v
	}
	if v := os.Getenv("YIELD_MODEL_PATH"); v != "" {
		c.Models.Yield.Path = v
	}
	if v := os.Getenv("PRICE_MODEL_PATH"); v != "" {
		c.Models.Price.Path = v
	}
	if v := os.Getenv("ANOMALY_MODEL_PATH"); v != "" {
		c.Models.Anomaly.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			p, err := strconv.Atoi(port)
			if err != nil {
				return nil, fmt.Errorf("REDIS_ADDR: %w", err)
			}
			c.Redis.Port = p
		}
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/api/v1"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.RateLimit.RPS > 0 && c.Server.RateLimit.Burst == 0 {
		c.Server.RateLimit.Burst = int(c.Server.RateLimit.RPS) + 1
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "console"
	}
	if c.Logger.Output == "" {
		c.Logger.Output = "stdout"
	}
	if c.Logger.Collector.Interval == 0 {
		c.Logger.Collector.Interval = 30 * time.Second
	}
	if c.Logger.Collector.Threshold == 0 {
		c.Logger.Collector.Threshold = 100
	}
	if c.Logger.Collector.Topic == "" {
		c.Logger.Collector.Topic = "agricast.logs.errors"
	}

	if c.Models.Timeout == 0 {
		c.Models.Timeout = 5 * time.Second
	}
	if c.Models.Yield.Path == "" {
		c.Models.Yield.Path = "./models/yield_predictor.yaml"
	}
	if c.Models.Yield.SequenceLength == 0 {
		c.Models.Yield.SequenceLength = 30
	}
	if c.Models.Price.Path == "" {
		c.Models.Price.Path = "./models/price_forecaster.yaml"
	}
	if c.Models.Price.SequenceLength == 0 {
		c.Models.Price.SequenceLength = 60
	}
	if c.Models.Anomaly.Path == "" {
		c.Models.Anomaly.Path = "./models/anomaly_detector.yaml"
	}
	if c.Models.Anomaly.Contamination == 0 {
		c.Models.Anomaly.Contamination = 0.1
	}
	if c.Models.Breaker.MaxFailures == 0 {
		c.Models.Breaker.MaxFailures = 5
	}
	if c.Models.Breaker.OpenTimeout == 0 {
		c.Models.Breaker.OpenTimeout = 30 * time.Second
	}

	if c.Training.DefaultEpochs == 0 {
		c.Training.DefaultEpochs = 100
	}
	if c.Training.MaxEpochs == 0 {
		c.Training.MaxEpochs = 10000
	}
	if c.Training.EpochDelay == 0 {
		c.Training.EpochDelay = 100 * time.Millisecond
	}
	if c.Training.EstimatedDuration == 0 {
		c.Training.EstimatedDuration = 600
	}
	if c.Training.StreamInterval == 0 {
		c.Training.StreamInterval = time.Second
	}
	if c.Training.Dispatch == "" {
		c.Training.Dispatch = "goroutine"
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Cache.MemorySize == 0 {
		c.Cache.MemorySize = 1000
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "agricast"
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.RetryDelay == 0 {
		c.Queue.RetryDelay = 10 * time.Second
	}

	if c.Kafka.JobEventsTopic == "" {
		c.Kafka.JobEventsTopic = "agricast.training.events"
	}
	if c.Kafka.TrainingRequestsTopic == "" {
		c.Kafka.TrainingRequestsTopic = "agricast.training.requests"
	}
	if c.Kafka.RequiredAcks == 0 {
		c.Kafka.RequiredAcks = -1
	}
	if c.Kafka.Compression == "" {
		c.Kafka.Compression = "gzip"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "agricast-ml"
	}

	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = 9000
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "agricast"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.RateLimit.RPS < 0 {
		return fmt.Errorf("server.rate_limit.rps cannot be negative")
	}
	if c.Models.Yield.SequenceLength < 1 || c.Models.Price.SequenceLength < 1 {
		return fmt.Errorf("models sequence_length must be positive")
	}
	if c.Models.Anomaly.Contamination <= 0 || c.Models.Anomaly.Contamination >= 0.5 {
		return fmt.Errorf("models.anomaly.contamination must be in (0, 0.5), got %v", c.Models.Anomaly.Contamination)
	}
	if c.Training.DefaultEpochs < 1 || c.Training.DefaultEpochs > c.Training.MaxEpochs {
		return fmt.Errorf("training.default_epochs must be in [1, %d]", c.Training.MaxEpochs)
	}
	switch c.Training.Dispatch {
	case "goroutine":
	case "queue":
		if !c.Redis.Enabled {
			return fmt.Errorf("training.dispatch 'queue' requires redis.enabled")
		}
	default:
		return fmt.Errorf("training.dispatch must be 'goroutine' or 'queue', got '%s'", c.Training.Dispatch)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}
