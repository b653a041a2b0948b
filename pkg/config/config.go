package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Instrument is a statically configured registry entry.
type Instrument struct {
	Symbol  string   `yaml:"symbol" validate:"required"`
	Names   []string `yaml:"names" validate:"required,min=1,dive,required"`
	Sectors []string `yaml:"sectors"`
}

type Config struct {
	Environment string `yaml:"environment" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging struct {
		Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format    string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"macrochain.logs"`
			FlushInterval  time.Duration `yaml:"flush_interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Store struct {
		Backend string `yaml:"backend" default:"sqlite" validate:"oneof=sqlite clickhouse"`
	} `yaml:"store"`
	SQLite struct {
		Path         string        `yaml:"path" default:"macrochain.db"`
		BusyTimeout  time.Duration `yaml:"busy_timeout" default:"5s"`
		MaxOpenConns int           `yaml:"max_open_conns" default:"4" validate:"gte=1"`
	} `yaml:"sqlite"`
	Kafka struct {
		Enabled        bool     `yaml:"enabled"`
		Brokers        []string `yaml:"brokers"`
		DocumentsTopic string   `yaml:"documents_topic" default:"macrochain.documents"`
		ChainsTopic    string   `yaml:"chains_topic" default:"macrochain.chains"`
		RequiredAcks   int      `yaml:"required_acks" default:"-1"`
		Compression    string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled         bool          `yaml:"enabled"`
			GroupID         string        `yaml:"group_id" default:"macrochain-extractor"`
			AutoOffsetReset string        `yaml:"auto_offset_reset" default:"earliest" validate:"oneof=earliest latest"`
			Workers         int           `yaml:"workers" default:"2"`
			BufferSize      int           `yaml:"buffer_size" default:"64"`
			RetryMax        int           `yaml:"retry_max" default:"3"`
			BackoffMin      time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax      time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic        string        `yaml:"dlq_topic"`
			MinBytes        int           `yaml:"min_bytes" default:"10000"`
			MaxBytes        int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"macrochain"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Source struct {
		Type    string `yaml:"type" default:"none" validate:"oneof=none finnhub rss"`
		Routing string `yaml:"routing" default:"direct" validate:"oneof=kafka direct"`
	} `yaml:"source"`
	Finnhub struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"finnhub"`
	RSS struct {
		Feeds        []string      `yaml:"feeds" validate:"dive,url"`
		PollInterval time.Duration `yaml:"poll_interval" default:"5m"`
		Timeout      time.Duration `yaml:"timeout" default:"20s"`
	} `yaml:"rss"`
	Pipeline struct {
		ThrottleInterval time.Duration `yaml:"throttle_interval" default:"200ms"`
		DedupWindow      time.Duration `yaml:"dedup_window" default:"10m"`
		BufferSize       int           `yaml:"buffer_size" default:"1000"`
	} `yaml:"pipeline"`
	Registry struct {
		Source          string        `yaml:"source" default:"static" validate:"oneof=static http"`
		URL             string        `yaml:"url" validate:"omitempty,url"`
		RefreshInterval time.Duration `yaml:"refresh_interval" default:"10m"`
		Timeout         time.Duration `yaml:"timeout" default:"5s"`
		Attempts        int           `yaml:"attempts" default:"3"`
		Instruments     []Instrument  `yaml:"instruments" validate:"dive"`
	} `yaml:"registry"`
	Patterns struct {
		File string `yaml:"file"`
	} `yaml:"patterns"`
	Extraction struct {
		QualityThreshold float64       `yaml:"quality_threshold" default:"0.6" validate:"gt=0,lte=1"`
		MinRelevance     float64       `yaml:"min_relevance" default:"0.3" validate:"gt=0,lte=1"`
		LockTTL          time.Duration `yaml:"lock_ttl" default:"2m"`
		BatchConcurrency int           `yaml:"batch_concurrency" default:"4" validate:"gte=1"`
		MaxPerRole       int           `yaml:"max_per_role" default:"2" validate:"gte=1"`
		MaxCandidates    int           `yaml:"max_candidates" default:"5" validate:"gte=1"`
		MinStepLength    int           `yaml:"min_step_length" default:"20" validate:"gte=0"`
		MaxStepLength    int           `yaml:"max_step_length" default:"200" validate:"gtfield=MinStepLength"`
		RateLimit        struct {
			Capacity     float64 `yaml:"capacity" default:"10"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"1"`
		} `yaml:"rate_limit"`
	} `yaml:"extraction"`
	Cache struct {
		ListTTL time.Duration `yaml:"list_ttl" default:"30s"`
	} `yaml:"cache"`
	Queue struct {
		Name          string        `yaml:"name" default:"extract"`
		Workers       int           `yaml:"workers" default:"2"`
		PollInterval  time.Duration `yaml:"poll_interval" default:"1s"`
		MaxRetries    int           `yaml:"max_retries" default:"3"`
		RetryDelay    time.Duration `yaml:"retry_delay" default:"10s"`
		MaxRetryDelay time.Duration `yaml:"max_retry_delay" default:"5m"`
	} `yaml:"queue"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	// Validate required fields
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

	// Override with environment variables
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.SQLite.Path = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REGISTRY_URL"); v != "" {
		c.Registry.URL = v
	}
	if v := os.Getenv("PATTERNS_FILE"); v != "" {
		c.Patterns.File = v
	}
	if v := os.Getenv("QUALITY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("QUALITY_THRESHOLD: %w", err)
		}
		c.Extraction.QualityThreshold = f
	}

	return c, c.Validate()
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Store.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for the clickhouse store")
	}
	if (c.Kafka.Enabled || c.Kafka.Consumer.Enabled || c.Source.Routing == "kafka") && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is in use")
	}
	if c.Source.Type == "finnhub" && c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required")
	}
	if c.Source.Type == "rss" && len(c.RSS.Feeds) == 0 {
		return fmt.Errorf("rss.feeds cannot be empty")
	}
	if c.Registry.Source == "http" && c.Registry.URL == "" {
		return fmt.Errorf("registry.url is required for the http registry")
	}
	return nil
}
